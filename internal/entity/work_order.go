package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WorkOrder represents a job record for data transfer between layers.
// Optional columns are pointers (or nil slices) so "never populated" is distinguishable from empty.
type WorkOrder struct {
	ID                uuid.UUID       `json:"id"`
	Processed         bool            `json:"processed"`
	Analysis          json.RawMessage `json:"analysis,omitempty"`
	WorkOrderNumber   *string         `json:"workOrderNumber,omitempty"`
	SiteAddress       *string         `json:"siteAddress,omitempty"`
	WorkOrderDate     *string         `json:"workOrderDate,omitempty"` // YYYY-MM-DD
	PlannedDate       *string         `json:"plannedDate,omitempty"`   // YYYY-MM-DD
	RequiredSkills    []string        `json:"requiredSkills,omitempty"`
	RequiredPermits   []string        `json:"requiredPermits,omitempty"`
	RequiredEquipment []string        `json:"requiredEquipment,omitempty"`
	RequiredMaterials []string        `json:"requiredMaterials,omitempty"`
	ScopeOfWork       *string         `json:"scopeOfWork,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
