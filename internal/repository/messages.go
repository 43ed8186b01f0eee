package repository

import (
	"context"
	"log/slog"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, m *entity.ChatMessage) (*entity.ChatMessage, error)
	// ListRecent returns up to limit messages of a channel, oldest first.
	ListRecent(ctx context.Context, channel string, limit int) ([]*entity.ChatMessage, error)
}

type chatMessageRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewChatMessageRepository(drv *entsql.Driver, logger *slog.Logger) ChatMessageRepository {
	return &chatMessageRepo{
		drv:    drv,
		logger: logger,
	}
}

func (r *chatMessageRepo) Create(ctx context.Context, m *entity.ChatMessage) (*entity.ChatMessage, error) {
	out := *m
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	q, args := entsql.Dialect(r.drv.Dialect()).Insert(tableChatMessages).
		Columns("id", "channel", "author", "body", "created_at").
		Values(out.ID, out.Channel, out.Author, out.Body, out.CreatedAt).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to create chat message", "channel", out.Channel, "author", out.Author, "error", err)
		return nil, err
	}
	return &out, nil
}

func (r *chatMessageRepo) ListRecent(ctx context.Context, channel string, limit int) ([]*entity.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	b := entsql.Dialect(r.drv.Dialect())
	q, args := b.Select("id", "channel", "author", "body", "created_at").
		From(b.Table(tableChatMessages)).
		Where(entsql.EQ("channel", channel)).
		OrderBy(entsql.Desc("created_at")).
		Limit(limit).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to list chat messages", "channel", channel, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ChatMessage
	for rows.Next() {
		var m entity.ChatMessage
		var createdAt dbTime
		if err := rows.Scan(&m.ID, &m.Channel, &m.Author, &m.Body, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = createdAt.T
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
