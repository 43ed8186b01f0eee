package chat

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
)

// Event types pushed to clients.
const (
	EventMessage  = "message"
	EventPresence = "presence"
	EventError    = "error"
)

// Event is one frame on a chat connection.
type Event struct {
	Type    string              `json:"type"`
	Channel string              `json:"channel,omitempty"`
	Message *entity.ChatMessage `json:"message,omitempty"`
	Roster  []string            `json:"roster,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Client is one connected user on one channel.
type Client struct {
	ID       uuid.UUID
	User     string
	Channel  string
	Outbound chan Event
}

// Hub fans chat messages and roster changes out to the clients of a channel.
// Slow clients lose events instead of blocking the hub.
type Hub struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	messages repository.ChatMessageRepository
	cfg      common.ChatConfig
	channels map[string]map[*Client]struct{}
	now      func() time.Time
}

func NewHub(messages repository.ChatMessageRepository, cfg common.ChatConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	return &Hub{
		logger:   logger.With("component", "chat.hub"),
		messages: messages,
		cfg:      cfg,
		channels: make(map[string]map[*Client]struct{}),
		now:      time.Now,
	}
}

// ValidateIdentity checks the user and channel a client connects with.
// An empty channel means the default one.
func ValidateIdentity(user, channel string) (string, string, error) {
	user = strings.TrimSpace(user)
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = constants.DefaultChatChannel
	}
	err := common.NewValidator().
		Field("user", user, common.Required, common.MaxLength(64)).
		Field("channel", channel, common.ChannelName).
		Err()
	return user, channel, err
}

func (h *Hub) NewClient(user, channel string) *Client {
	return &Client{
		ID:       uuid.New(),
		User:     user,
		Channel:  channel,
		Outbound: make(chan Event, h.cfg.SendBuffer),
	}
}

// Join subscribes the client and broadcasts the new roster.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	subs, ok := h.channels[c.Channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[c.Channel] = subs
	}
	subs[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("chat.join", "client_id", c.ID, "user", c.User, "channel", c.Channel)
	h.broadcastPresence(c.Channel)
}

// Leave unsubscribes the client, closes its outbound queue and broadcasts the new roster.
// Calling it twice is harmless.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	subs, ok := h.channels[c.Channel]
	if ok {
		if _, member := subs[c]; !member {
			ok = false
		}
	}
	if ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, c.Channel)
		}
		close(c.Outbound)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.logger.Info("chat.leave", "client_id", c.ID, "user", c.User, "channel", c.Channel)
	h.broadcastPresence(c.Channel)
}

// Post persists a message and then pushes it to everyone on the channel, the author included.
func (h *Hub) Post(ctx context.Context, channel, author, body string) (*entity.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if err := common.NewValidator().
		Field("body", body, common.Required, common.MaxLength(h.cfg.MaxMessageLength)).
		Err(); err != nil {
		return nil, err
	}
	msg, err := h.messages.Create(ctx, &entity.ChatMessage{
		Channel:   channel,
		Author:    author,
		Body:      body,
		CreatedAt: h.now().UTC(),
	})
	if err != nil {
		return nil, common.DatabaseError("failed to save chat message", err)
	}
	h.broadcast(channel, Event{Type: EventMessage, Channel: channel, Message: msg})
	return msg, nil
}

// Roster returns the distinct users connected to a channel, sorted.
func (h *Hub) Roster(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for c := range h.channels[channel] {
		if _, dup := seen[c.User]; dup {
			continue
		}
		seen[c.User] = struct{}{}
		out = append(out, c.User)
	}
	slices.Sort(out)
	return out
}

// History returns up to limit recent messages, oldest first.
func (h *Hub) History(ctx context.Context, channel string, limit int) ([]*entity.ChatMessage, error) {
	if limit <= 0 || limit > h.cfg.HistoryLimit {
		limit = h.cfg.HistoryLimit
	}
	msgs, err := h.messages.ListRecent(ctx, channel, limit)
	if err != nil {
		return nil, common.DatabaseError("failed to load chat history", err)
	}
	return msgs, nil
}

func (h *Hub) broadcastPresence(channel string) {
	h.broadcast(channel, Event{Type: EventPresence, Channel: channel, Roster: h.Roster(channel)})
}

func (h *Hub) broadcast(channel string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		select {
		case c.Outbound <- ev:
		default:
			h.logger.Warn("chat.drop", "client_id", c.ID, "channel", channel, "type", ev.Type)
		}
	}
}

// Shutdown disconnects every client. Their sessions end once the writers drain.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, subs := range h.channels {
		for c := range subs {
			close(c.Outbound)
		}
		delete(h.channels, ch)
	}
	h.logger.Info("chat.shutdown")
}
