package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 8 << 10
)

// inbound is what clients send over the socket.
type inbound struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

// Serve runs one websocket session until the peer goes away or ctx ends.
// It owns conn and closes it before returning.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, c *Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Join(c)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, conn, c)
		// unblocks readPump when the writer gives up first
		_ = conn.Close()
	}()

	h.readPump(ctx, conn, c)
	h.Leave(c)
	cancel()
	<-done
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, c *Client) {
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("chat.read_error", "client_id", c.ID, "error", err)
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type != EventMessage {
			h.reply(c, Event{Type: EventError, Error: "expected {\"type\":\"message\",\"body\":...}"})
			continue
		}
		if _, err := h.Post(ctx, c.Channel, c.User, in.Body); err != nil {
			h.reply(c, Event{Type: EventError, Error: err.Error()})
		}
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-c.Outbound:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("chat.write_error", "client_id", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply sends an event to one client only, dropping it if the queue is full.
func (h *Hub) reply(c *Client, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.channels[c.Channel][c]; !ok {
		return
	}
	select {
	case c.Outbound <- ev:
	default:
	}
}
