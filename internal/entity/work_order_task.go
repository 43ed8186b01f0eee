package entity

import (
	"time"

	"github.com/google/uuid"
)

// WorkOrderTask is a derived, user-actionable task created from an analysis.
type WorkOrderTask struct {
	ID          uuid.UUID `json:"id"`
	WorkOrderID uuid.UUID `json:"workOrderId"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}
