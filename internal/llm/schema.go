package llm

import "github.com/joseph-ayodele/workorders-tracker/constants"

// BuildAnalysisJSONSchema describes the analysis object we ask for.
// It is deliberately open (extra keys allowed, nothing required): violations are
// logged and the sanitizers decide what survives.
func BuildAnalysisJSONSchema() map[string]any {
	scalar := map[string]any{"type": []string{"string", "number"}}
	date := map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}`}
	list := map[string]any{"type": "array", "items": map[string]any{"type": []string{"string", "number"}}}
	obj := map[string]any{"type": "object"}

	task := map[string]any{
		"oneOf": []any{
			map[string]any{"type": "string", "minLength": 1},
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": []string{"string", "number"}, "minLength": 1},
					"description": map[string]any{"type": []string{"string", "null"}},
					"priority":    map[string]any{"enum": constants.PrioritiesAsStrings()},
				},
				"required": []string{"name"},
			},
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"work_order_number":     scalar,
			"site_address":          scalar,
			"work_order_date":       date,
			"planned_date":          date,
			"job_type":              scalar,
			"client_name":           scalar,
			"contact_info":          obj,
			"location":              obj,
			"scope_of_work":         scalar,
			"required_skills":       list,
			"required_permits":      list,
			"required_equipment":    list,
			"required_materials":    list,
			"resource_requirements": obj,
			"risk_factors":          list,
			"suggested_tasks":       map[string]any{"type": "array", "items": task},
		},
	}
}
