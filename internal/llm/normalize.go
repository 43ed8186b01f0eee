package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

// ParseError means the model output could not be read as a JSON object.
// Raw holds the first constants.RawResponsePreviewLength characters for diagnosis.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets callers match with errors.Is(err, common.ErrParse).
func (e *ParseError) Is(target error) bool { return target == common.ErrParse }

// Normalize turns raw model text into an Analysis:
// strip fences, take the outermost {...}, parse, validate, sanitize each field.
func Normalize(raw string, logger *slog.Logger) (*Analysis, error) {
	if logger == nil {
		logger = slog.Default()
	}

	text := StripCodeFences(raw)
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return nil, &ParseError{
			Raw: Truncate(raw, constants.RawResponsePreviewLength),
			Err: fmt.Errorf("no JSON object found"),
		}
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return nil, &ParseError{Raw: Truncate(raw, constants.RawResponsePreviewLength), Err: err}
	}
	if m == nil {
		return nil, &ParseError{Raw: Truncate(raw, constants.RawResponsePreviewLength), Err: fmt.Errorf("response is null")}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(obj)); err != nil {
		return nil, &ParseError{Raw: Truncate(raw, constants.RawResponsePreviewLength), Err: err}
	}

	if err := validateAnalysis(m); err != nil {
		// advisory only: sanitizers below drop whatever does not fit
		logger.Warn("llm.normalize.schema_violation", "error", err)
	}

	s := &sanitizer{m: m}
	out := &Analysis{Raw: json.RawMessage(compact.Bytes())}
	out.Fields = WorkOrderFields{
		WorkOrderNumber:   s.str("work_order_number"),
		SiteAddress:       s.siteAddress(),
		WorkOrderDate:     s.date("work_order_date"),
		PlannedDate:       s.date("planned_date"),
		RequiredSkills:    s.list("required_skills"),
		RequiredPermits:   s.list("required_permits"),
		RequiredEquipment: s.list("required_equipment"),
		RequiredMaterials: s.list("required_materials"),
		ScopeOfWork:       s.str("scope_of_work"),
	}
	out.Tasks = s.tasks("suggested_tasks")
	out.Dropped = s.dropped

	if len(out.Dropped) > 0 {
		logger.Warn("llm.normalize.sanitized", "dropped", out.Dropped)
	}
	logger.Debug("llm.normalize.ok", "keys", len(m), "tasks", len(out.Tasks))
	return out, nil
}

// StripCodeFences removes a leading ``` or ```json line and a trailing ``` if present.
func StripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		// language tag, e.g. ```json
		if i := strings.IndexByte(t, '\n'); i >= 0 && !strings.ContainsAny(t[:i], "{}") {
			t = t[i+1:]
		} else {
			t = strings.TrimLeft(t, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		}
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// ExtractJSONObject returns the substring from the first '{' to the last '}'.
// Greedy: commentary around one object survives, several objects do not.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
