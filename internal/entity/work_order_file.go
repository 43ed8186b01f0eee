package entity

import (
	"time"

	"github.com/google/uuid"
)

// WorkOrderFile is one uploaded artifact owned by a WorkOrder.
type WorkOrderFile struct {
	ID          uuid.UUID `json:"id"`
	WorkOrderID uuid.UUID `json:"workOrderId"`
	FileURL     string    `json:"fileUrl"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	MIMEType    string    `json:"mimeType"`
	CreatedAt   time.Time `json:"createdAt"`
}
