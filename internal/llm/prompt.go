package llm

import (
	"strings"

	"github.com/joseph-ayodele/workorders-tracker/constants"
)

// Template is a fixed, versioned extraction instruction for one provider.
type Template struct {
	Provider string
	Version  string
	Body     string
}

// Prompt is what actually gets sent, tagged with the template version for the logs and the response.
type Prompt struct {
	Version string
	Text    string
}

// fieldSpec lists every key we ask for and its shape. Shared by all provider templates.
var fieldSpec = strings.Join([]string{
	`- "work_order_number": string, the work order / job / PO number exactly as printed`,
	`- "site_address": string, full street address of the installation site`,
	`- "work_order_date": string, date the work order was issued, formatted YYYY-MM-DD`,
	`- "planned_date": string, scheduled installation or service date, formatted YYYY-MM-DD`,
	`- "job_type": string, e.g. "installation", "removal", "repair", "survey", "maintenance"`,
	`- "client_name": string`,
	`- "contact_info": object {"name": string, "phone": string, "email": string}`,
	`- "location": object {"address": string, "city": string, "state": string, "postal_code": string, "access_notes": string}`,
	`- "scope_of_work": string, a concise plain-text summary of the work to perform`,
	`- "required_skills": array of strings (e.g. "electrical", "welding", "crane operation")`,
	`- "required_permits": array of strings`,
	`- "required_equipment": array of strings (e.g. "bucket truck", "scissor lift")`,
	`- "required_materials": array of strings`,
	`- "resource_requirements": object {"technicians": number, "estimated_hours": number, "vehicles": array of strings, "equipment": array of strings}`,
	`- "staffing_estimate": string, short justification of crew size`,
	`- "risk_factors": array of strings (height, traffic, weather, electrical, permits pending)`,
	`- "suggested_tasks": array of objects {"name": string, "description": string, "priority": one of ` +
		quoteJoin(constants.PrioritiesAsStrings()) + `}`,
}, "\n")

var outputRules = strings.Join([]string{
	"Output rules:",
	"- Respond with a single JSON object and nothing else.",
	"- Do NOT wrap the JSON in markdown or code fences. No commentary before or after it.",
	"- Omit any field you cannot determine from the documents. Never invent values.",
	"- Dates must be YYYY-MM-DD. If a date is not legible, omit it.",
	"- Arrays contain plain strings only; no nested objects unless the field says object.",
}, "\n")

// OpenAITemplate is the chat/completions instruction.
var OpenAITemplate = Template{
	Provider: constants.ProviderOpenAI,
	Version:  "openai-v3",
	Body: "You are an operations assistant for a signage installation company. " +
		"Analyze the attached work order images and extract the job details a dispatcher needs " +
		"to schedule crews, equipment and permits.\n\n" +
		"Extract these fields:\n" + fieldSpec + "\n\n" + outputRules,
}

// GeminiTemplate is the generateContent instruction. Gemini reads PDFs natively, so it refers to documents.
var GeminiTemplate = Template{
	Provider: constants.ProviderGemini,
	Version:  "gemini-v2",
	Body: "You are an operations assistant for a signage installation company. " +
		"Read every attached work order document and image and extract the job details a dispatcher needs " +
		"to schedule crews, equipment and permits. Combine information across pages and files.\n\n" +
		"Extract these fields:\n" + fieldSpec + "\n\n" + outputRules,
}

// BuildPrompt appends advisory notes, if any, to the fixed template.
func BuildPrompt(tmpl Template, notes []string) Prompt {
	var b strings.Builder
	b.WriteString(tmpl.Body)
	var kept []string
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) > 0 {
		b.WriteString("\n\nNotes about the uploaded files:")
		for _, n := range kept {
			b.WriteString("\n- ")
			b.WriteString(n)
		}
	}
	return Prompt{Version: tmpl.Version, Text: b.String()}
}

// PDFAdvisory explains why some uploads are missing from the visual payload.
func PDFAdvisory(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "The following PDF documents were uploaded but cannot be visually inspected: " +
		strings.Join(names, ", ") +
		". Use their filenames as context only and do not guess their contents."
}

func quoteJoin(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = `"` + v + `"`
	}
	return strings.Join(q, ", ")
}
