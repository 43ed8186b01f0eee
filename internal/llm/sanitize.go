package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/workorders-tracker/constants"
)

// aliases are alternate keys models use for our canonical fields.
// They only apply when the canonical key is absent.
var aliases = map[string][]string{
	"work_order_number":  {"workOrderNumber", "wo_number", "work_order_no", "order_number"},
	"site_address":       {"siteAddress", "address", "job_address"},
	"work_order_date":    {"workOrderDate", "order_date", "issue_date"},
	"planned_date":       {"plannedDate", "scheduled_date", "install_date"},
	"scope_of_work":      {"scopeOfWork", "scope"},
	"required_skills":    {"requiredSkills", "skills"},
	"required_permits":   {"requiredPermits", "permits"},
	"required_equipment": {"requiredEquipment", "equipment"},
	"required_materials": {"requiredMaterials", "materials"},
	"suggested_tasks":    {"suggestedTasks", "tasks"},
}

var taskNameKeys = []string{"name", "title", "task"}

type sanitizer struct {
	m       map[string]any
	dropped []string
}

func (s *sanitizer) lookup(key string) (any, string, bool) {
	if v, ok := s.m[key]; ok {
		return v, key, true
	}
	for _, alt := range aliases[key] {
		if v, ok := s.m[alt]; ok {
			return v, alt, true
		}
	}
	return nil, "", false
}

func (s *sanitizer) drop(key, why string) {
	s.dropped = append(s.dropped, key+"("+why+")")
}

// str coerces numbers and bools to their string form. Blank strings count as absent.
func (s *sanitizer) str(key string) *string {
	v, from, ok := s.lookup(key)
	if !ok || v == nil {
		return nil
	}
	out, ok := scalarString(v)
	if !ok {
		s.drop(from, "type")
		return nil
	}
	if out == "" {
		return nil
	}
	return &out
}

// siteAddress falls back to location.address when no top-level address was given.
func (s *sanitizer) siteAddress() *string {
	if v := s.str("site_address"); v != nil {
		return v
	}
	loc, ok := s.m["location"].(map[string]any)
	if !ok {
		return nil
	}
	if out, ok := scalarString(loc["address"]); ok && out != "" {
		return &out
	}
	return nil
}

// date keeps the YYYY-MM-DD prefix and drops anything else, leading whitespace included.
// There is no fallback parsing.
func (s *sanitizer) date(key string) *string {
	v, from, ok := s.lookup(key)
	if !ok || v == nil {
		return nil
	}
	raw, isStr := v.(string)
	if !isStr {
		s.drop(from, "type")
		return nil
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, ok := AnchorDate(raw)
	if !ok {
		s.drop(from, "date")
		return nil
	}
	return &d
}

// list accepts only real arrays. Scalars become strings; blanks, nested values and repeats are dropped.
// An empty result is treated as absent so a stored list is never cleared by a vague response.
func (s *sanitizer) list(key string) []string {
	v, from, ok := s.lookup(key)
	if !ok || v == nil {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		s.drop(from, "not_array")
		return nil
	}
	out := CleanStringList(arr)
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *sanitizer) tasks(key string) []SuggestedTask {
	v, from, ok := s.lookup(key)
	if !ok || v == nil {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		s.drop(from, "not_array")
		return nil
	}
	var out []SuggestedTask
	for i, item := range arr {
		t, ok := sanitizeTask(item)
		if !ok {
			s.drop(from+"["+strconv.Itoa(i)+"]", "no_name")
			continue
		}
		out = append(out, t)
	}
	return out
}

func sanitizeTask(item any) (SuggestedTask, bool) {
	var name string
	var desc *string
	priority := constants.DefaultPriority

	switch t := item.(type) {
	case string:
		name = strings.TrimSpace(t)
	case map[string]any:
		for _, k := range taskNameKeys {
			if n, ok := scalarString(t[k]); ok && n != "" {
				name = n
				break
			}
		}
		if d, ok := scalarString(t["description"]); ok && d != "" {
			desc = &d
		}
		if p, ok := t["priority"].(string); ok {
			if parsed, ok := constants.ParsePriority(p); ok {
				priority = parsed
			}
		}
	}
	if name == "" {
		return SuggestedTask{}, false
	}
	return SuggestedTask{
		Name:        Truncate(name, constants.MaxTaskNameLength),
		Description: desc,
		Priority:    priority,
	}, true
}

// AnchorDate returns the leading YYYY-MM-DD of s.
func AnchorDate(s string) (string, bool) {
	if len(s) < 10 {
		return "", false
	}
	for i := 0; i < 10; i++ {
		c := s[i]
		switch i {
		case 4, 7:
			if c != '-' {
				return "", false
			}
		default:
			if c < '0' || c > '9' {
				return "", false
			}
		}
	}
	return s[:10], true
}

// CleanStringList maps scalar elements to trimmed strings, dropping blanks and repeats (first wins).
func CleanStringList(arr []any) []string {
	seen := make(map[string]struct{}, len(arr))
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		s, ok := scalarString(el)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// scalarString is the string form of a JSON scalar, trimmed. Objects, arrays and null are rejected.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
