package llm

import (
	"context"
	"encoding/json"

	"github.com/joseph-ayodele/workorders-tracker/constants"
)

// Part is one downloaded file handed to a vision provider.
type Part struct {
	Name     string
	MIMEType string
	Kind     constants.FileKind
	Data     []byte
}

// Provider is the only boundary the pipeline crosses to reach a model.
// Adapters differ in request shape and model id, never in the contract.
type Provider interface {
	Name() string
	Model() string
	// SupportsPDF reports whether PDFs can be sent as inline document parts.
	SupportsPDF() bool
	Template() Template
	// Extract returns the model's raw text; every failure is an extraction service error.
	Extract(ctx context.Context, prompt string, parts []Part) (string, error)
}

// WorkOrderFields is the validated partial record pulled out of an analysis.
// A nil pointer or nil slice means the model did not supply a usable value.
type WorkOrderFields struct {
	WorkOrderNumber   *string  `json:"work_order_number,omitempty"`
	SiteAddress       *string  `json:"site_address,omitempty"`
	WorkOrderDate     *string  `json:"work_order_date,omitempty"` // YYYY-MM-DD
	PlannedDate       *string  `json:"planned_date,omitempty"`    // YYYY-MM-DD
	RequiredSkills    []string `json:"required_skills,omitempty"`
	RequiredPermits   []string `json:"required_permits,omitempty"`
	RequiredEquipment []string `json:"required_equipment,omitempty"`
	RequiredMaterials []string `json:"required_materials,omitempty"`
	ScopeOfWork       *string  `json:"scope_of_work,omitempty"`
}

// SuggestedTask is one sanitized entry of suggested_tasks.
type SuggestedTask struct {
	Name        string             `json:"name"`
	Description *string            `json:"description,omitempty"`
	Priority    constants.Priority `json:"priority"`
}

// Analysis is the normalizer output. Raw is the model's JSON object, compacted but otherwise untouched.
type Analysis struct {
	Raw     json.RawMessage
	Fields  WorkOrderFields
	Tasks   []SuggestedTask
	Dropped []string
}
