package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

func sp(s string) *string { return &s }

func TestNormalize_FullResponse(t *testing.T) {
	raw := `{
		"work_order_number": 48213,
		"site_address": " 12 Main St, Springfield ",
		"work_order_date": "2024-03-05T10:00:00Z",
		"planned_date": "next Tuesday",
		"required_skills": ["electrical", "", "electrical", {"x":1}, 3, true],
		"required_permits": "city permit",
		"required_equipment": ["bucket truck"],
		"scope_of_work": "Replace channel letters",
		"suggested_tasks": [
			"Pull permit",
			{"title": "Install letters", "priority": "Emergency", "description": "night shift"},
			{"name": "Cleanup", "priority": "low"},
			{"description": "no name"}
		]
	}`
	a, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := WorkOrderFields{
		WorkOrderNumber:   sp("48213"),
		SiteAddress:       sp("12 Main St, Springfield"),
		WorkOrderDate:     sp("2024-03-05"),
		RequiredSkills:    []string{"electrical", "3", "true"},
		RequiredEquipment: []string{"bucket truck"},
		ScopeOfWork:       sp("Replace channel letters"),
	}
	if diff := cmp.Diff(want, a.Fields); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}

	wantTasks := []SuggestedTask{
		{Name: "Pull permit", Priority: constants.PriorityMedium},
		{Name: "Install letters", Description: sp("night shift"), Priority: constants.PriorityEmergency},
		{Name: "Cleanup", Priority: constants.PriorityMedium},
	}
	if diff := cmp.Diff(wantTasks, a.Tasks); diff != "" {
		t.Fatalf("tasks (-want +got):\n%s", diff)
	}
	if len(a.Dropped) == 0 {
		t.Fatalf("expected dropped fields to be reported")
	}
}

func TestNormalize_FencesAndCommentary(t *testing.T) {
	obj := `{"work_order_number":"WO-1"}`
	inputs := []string{
		obj,
		"```json\n" + obj + "\n```",
		"```\n" + obj + "\n```",
		"```json " + obj + "```",
		"Here is the data:\n" + obj + "\nHope this helps!",
	}
	for _, in := range inputs {
		a, err := Normalize(in, nil)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if string(a.Raw) != obj {
			t.Fatalf("%q: raw=%s", in, a.Raw)
		}
		if a.Fields.WorkOrderNumber == nil || *a.Fields.WorkOrderNumber != "WO-1" {
			t.Fatalf("%q: number=%v", in, a.Fields.WorkOrderNumber)
		}
	}
}

func TestNormalize_ParseFailures(t *testing.T) {
	long := strings.Repeat("x", 1500)
	for _, in := range []string{"", "no json here", "{not json}", "null", long} {
		_, err := Normalize(in, nil)
		if !errors.Is(err, common.ErrParse) {
			t.Fatalf("%q: expected parse error, got %v", Truncate(in, 20), err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *ParseError")
		}
		if n := len([]rune(pe.Raw)); n > constants.RawResponsePreviewLength {
			t.Fatalf("raw preview too long: %d", n)
		}
	}
}

func TestNormalize_AliasesOnlyWhenCanonicalAbsent(t *testing.T) {
	a, err := Normalize(`{"wo_number":"A-1","address":"1 Elm","scope":"paint","tasks":["Paint"],"work_order_number":"B-2"}`, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if *a.Fields.WorkOrderNumber != "B-2" {
		t.Fatalf("canonical key must win, got %s", *a.Fields.WorkOrderNumber)
	}
	if *a.Fields.SiteAddress != "1 Elm" || *a.Fields.ScopeOfWork != "paint" || len(a.Tasks) != 1 {
		t.Fatalf("aliases not honoured: %+v %+v", a.Fields, a.Tasks)
	}
}

func TestNormalize_LocationAddressFallback(t *testing.T) {
	a, err := Normalize(`{"location":{"address":"9 Oak Ave"}}`, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if a.Fields.SiteAddress == nil || *a.Fields.SiteAddress != "9 Oak Ave" {
		t.Fatalf("site address=%v", a.Fields.SiteAddress)
	}
}

func TestNormalize_TaskNameTruncated(t *testing.T) {
	name := strings.Repeat("é", 300)
	a, err := Normalize(`{"suggested_tasks":[{"name":"`+name+`","priority":"High"}]}`, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if n := len([]rune(a.Tasks[0].Name)); n != constants.MaxTaskNameLength {
		t.Fatalf("name length=%d", n)
	}
}

func TestAnchorDate(t *testing.T) {
	cases := map[string]string{
		"2024-01-15":            "2024-01-15",
		"2024-01-15T08:00:00Z":  "2024-01-15",
		"2024-01-15 and beyond": "2024-01-15",
		"15/01/2024":            "",
		"2024-1-15":             "",
		"":                      "",
	}
	for in, want := range cases {
		got, ok := AnchorDate(in)
		if got != want || ok != (want != "") {
			t.Fatalf("AnchorDate(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
}

func TestNormalize_DateMustStartWithDate(t *testing.T) {
	cases := []struct {
		raw  string
		want *string
	}{
		{`{"work_order_date":"2024-01-05"}`, sp("2024-01-05")},
		{`{"work_order_date":" 2024-01-05"}`, nil},
		{`{"work_order_date":"\t2024-01-05T09:00"}`, nil},
		{`{"work_order_date":20240105}`, nil},
		{`{"work_order_date":"   "}`, nil},
	}
	for _, tc := range cases {
		a, err := Normalize(tc.raw, nil)
		if err != nil {
			t.Fatalf("normalize %s: %v", tc.raw, err)
		}
		if diff := cmp.Diff(tc.want, a.Fields.WorkOrderDate); diff != "" {
			t.Fatalf("%s: work_order_date (-want +got):\n%s", tc.raw, diff)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{}\n```":        "{}",
		"```{}```":                "{}",
		"  {}  ":                  "{}",
		"```JSON\n{\"a\":1}\n```": `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripCodeFences(in); got != want {
			t.Fatalf("StripCodeFences(%q)=%q want %q", in, got, want)
		}
	}
}
