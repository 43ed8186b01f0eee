package constants

// Priority is the fixed enum stored in work_order_tasks.priority.
type Priority string

const (
	PriorityLow       Priority = "Low"
	PriorityMedium    Priority = "Medium"
	PriorityHigh      Priority = "High"
	PriorityEmergency Priority = "Emergency"
)

// DefaultPriority is used whenever the model suggests something outside the enum.
const DefaultPriority = PriorityMedium

var allPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency}

// ParsePriority is an exact, case-sensitive match against the enum.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range allPriorities {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// PrioritiesAsStrings returns the enum in prompt order.
func PrioritiesAsStrings() []string {
	out := make([]string, len(allPriorities))
	for i, p := range allPriorities {
		out[i] = string(p)
	}
	return out
}

// TaskStatus is the canonical status for rows in work_order_tasks.
type TaskStatus string

// Stable values (store these exact strings in DB).
const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)
