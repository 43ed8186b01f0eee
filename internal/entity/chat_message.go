package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one persisted team-chat line.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Channel   string    `json:"channel"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
