package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
)

const minimalResponse = `{"work_order_number":"WO-1","suggested_tasks":[{"name":"Install","priority":"High"}]}`

func strPtr(s string) *string { return &s }

func TestProcess_MinimalWorkOrder(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "front.jpg")

	res, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.AlreadyProcessed {
		t.Fatalf("expected a fresh run")
	}
	if res.TasksCreated != 1 {
		t.Fatalf("tasksCreated=%d want 1", res.TasksCreated)
	}
	if res.Provider != constants.ProviderOpenAI || res.PromptVersion != "openai-v3" {
		t.Fatalf("unexpected provider/version: %s %s", res.Provider, res.PromptVersion)
	}
	if string(res.Analysis) != minimalResponse {
		t.Fatalf("analysis not verbatim: %s", res.Analysis)
	}

	wo := h.workOrder(t, id)
	if !wo.Processed {
		t.Fatalf("expected processed=true")
	}
	if wo.WorkOrderNumber == nil || *wo.WorkOrderNumber != "WO-1" {
		t.Fatalf("work_order_number=%v", wo.WorkOrderNumber)
	}
	if wo.SiteAddress != nil || wo.RequiredSkills != nil {
		t.Fatalf("absent fields must stay null: %+v", wo)
	}

	got := h.tasks(t, id)
	want := []*entity.WorkOrderTask{{WorkOrderID: id, Name: "Install", Priority: "High", Status: "Pending"}}
	if diff := cmp.Diff(want, got, ignoreTaskIdentity); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
}

var ignoreTaskIdentity = cmp.Transformer("taskView", func(t *entity.WorkOrderTask) entity.WorkOrderTask {
	v := *t
	v.ID = uuid.Nil
	v.CreatedAt = time.Time{}
	return v
})

func TestProcess_BogusPriorityDefaultsToMedium(t *testing.T) {
	h := newHarness(t, "```json\n"+`{"suggested_tasks":[{"name":"Survey site","priority":"urgent"},{"name":"Remove sign","priority":"high"}]}`+"\n```")
	id := h.seed(t, "a.png")

	if _, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()}); err != nil {
		t.Fatalf("process: %v", err)
	}
	for _, task := range h.tasks(t, id) {
		if task.Priority != "Medium" || task.Status != "Pending" {
			t.Fatalf("task %q: priority=%s status=%s", task.Name, task.Priority, task.Status)
		}
	}
}

func TestProcess_ZeroFilesIsNotFound(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t)

	_, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ae, _ := common.AsAppError(err); ae == nil || ae.Code != common.CodeFilesNotFound {
		t.Fatalf("unexpected error: %#v", err)
	}
	if h.openai.callCount() != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestProcess_UnknownWorkOrder(t *testing.T) {
	h := newHarness(t, minimalResponse)
	_, err := h.proc.Process(context.Background(), Request{WorkOrderID: uuid.NewString()})
	ae, ok := common.AsAppError(err)
	if !ok || ae.Code != common.CodeWorkOrderNotFound {
		t.Fatalf("expected WORK_ORDER_NOT_FOUND, got %v", err)
	}
}

func TestProcess_InvalidID(t *testing.T) {
	h := newHarness(t, minimalResponse)
	for _, id := range []string{"", "not-a-uuid"} {
		_, err := h.proc.Process(context.Background(), Request{WorkOrderID: id})
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("id %q: expected invalid input, got %v", id, err)
		}
	}
}

func TestProcess_OnlyUnsupportedFiles(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "notes.docx", "sheet.xlsx")

	_, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	ae, ok := common.AsAppError(err)
	if !ok || ae.Code != common.CodeNoSupportedFiles || !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected NO_SUPPORTED_FILES, got %v", err)
	}
}

func TestProcess_AllDownloadsFail(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "a.jpg", "b.jpg")
	h.store.fail["uploads/a.jpg"] = true
	delete(h.store.objects, "uploads/b.jpg")

	_, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	ae, ok := common.AsAppError(err)
	if !ok || ae.Code != common.CodeDownloadFailed || !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected DOWNLOAD_FAILED, got %v", err)
	}
	if h.workOrder(t, id).Processed {
		t.Fatalf("processed must stay false")
	}
	if h.openai.callCount() != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestProcess_SkipsFailedDownloadAndReportsIt(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "a.jpg", "b.jpg", "c.txt")
	h.store.fail["uploads/b.jpg"] = true

	res, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(h.openai.parts[0]) != 1 || h.openai.parts[0][0].Name != "a.jpg" {
		t.Fatalf("unexpected parts sent: %+v", h.openai.parts[0])
	}
	want := []string{
		`skipped "c.txt": ` + SkipUnsupported,
		`skipped "b.jpg": ` + SkipDownloadFailed,
	}
	if diff := cmp.Diff(want, res.Warnings); diff != "" {
		t.Fatalf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestProcess_AlreadyProcessed(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "a.jpg")
	if _, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	res, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.AlreadyProcessed {
		t.Fatalf("expected already processed")
	}
	if string(res.Analysis) != minimalResponse {
		t.Fatalf("stored analysis not returned: %s", res.Analysis)
	}
	if h.openai.callCount() != 1 {
		t.Fatalf("provider called %d times", h.openai.callCount())
	}
	if n := len(h.tasks(t, id)); n != 1 {
		t.Fatalf("tasks=%d want 1", n)
	}
}

func TestProcess_ForceAppendsTasks(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "a.jpg")
	for i := 0; i < 2; i++ {
		if _, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String(), Force: i > 0}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if n := len(h.tasks(t, id)); n != 2 {
		t.Fatalf("tasks=%d want 2", n)
	}
}

func TestProcess_ConcurrentCallsCreateOneTaskSet(t *testing.T) {
	h := newHarness(t, minimalResponse)
	h.openai.delay = 50 * time.Millisecond
	id := h.seed(t, "a.jpg")

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	results := make([]*Result, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
		}()
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < n; i++ {
		switch {
		case errs[i] == nil && !results[i].AlreadyProcessed:
			fresh++
		case errs[i] == nil:
		case errors.Is(errs[i], common.ErrConflict):
		default:
			t.Fatalf("call %d: unexpected error %v", i, errs[i])
		}
	}
	if fresh != 1 {
		t.Fatalf("fresh runs=%d want 1", fresh)
	}
	if got := len(h.tasks(t, id)); got != 1 {
		t.Fatalf("tasks=%d want 1", got)
	}
	if h.openai.callCount() != 1 {
		t.Fatalf("provider called %d times", h.openai.callCount())
	}
}

func TestProcess_ParseFailureLeavesRowUntouched(t *testing.T) {
	h := newHarness(t, "Sorry, I cannot read these images.")
	id := h.seed(t, "a.jpg")

	_, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	if !errors.Is(err, common.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	ae, _ := common.AsAppError(err)
	if ae == nil || ae.RawResponse != "Sorry, I cannot read these images." {
		t.Fatalf("raw response not attached: %#v", ae)
	}
	wo := h.workOrder(t, id)
	if wo.Processed || wo.Analysis != nil {
		t.Fatalf("row modified: %+v", wo)
	}

	// claim was released, so a retry with a good response goes through
	h.openai.raw = minimalResponse
	if _, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()}); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestProcess_ProviderFailure(t *testing.T) {
	h := newHarness(t, "")
	h.openai.err = errors.New("non-2xx status 429: rate limited")
	id := h.seed(t, "a.jpg")

	_, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	if !errors.Is(err, common.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	ae, _ := common.AsAppError(err)
	if ae == nil || !strings.Contains(ae.Details, "429") {
		t.Fatalf("details missing: %#v", ae)
	}
	if h.workOrder(t, id).Processed {
		t.Fatalf("processed must stay false")
	}
}

func TestProcess_TaskInsertFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, minimalResponse)
	h.build(failingTasks{h.repos.Tasks}, h.openai)
	id := h.seed(t, "a.jpg")

	res, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.TasksCreated != 0 {
		t.Fatalf("tasksCreated=%d", res.TasksCreated)
	}
	if diff := cmp.Diff([]string{WarnTasksNotCreated}, res.Warnings); diff != "" {
		t.Fatalf("warnings (-want +got):\n%s", diff)
	}
	// the work-order update is kept
	if !h.workOrder(t, id).Processed {
		t.Fatalf("expected processed=true")
	}
}

func TestProcess_PartialUpdateKeepsExistingValues(t *testing.T) {
	h := newHarness(t, `{"planned_date":"2024-05-01T08:00:00Z","site_address":"  ","required_skills":[]}`)
	ctx := context.Background()
	wo, err := h.repos.WorkOrders.Create(ctx, &entity.WorkOrder{
		SiteAddress:    strPtr("12 Main St"),
		RequiredSkills: []string{"electrical"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.repos.Files.Create(ctx, &entity.WorkOrderFile{WorkOrderID: wo.ID, FileURL: "https://x/uploads/a.jpg", FileName: "a.jpg"}); err != nil {
		t.Fatalf("create file: %v", err)
	}
	h.store.put("uploads/a.jpg", []byte("img"))

	res, err := h.proc.Process(ctx, Request{WorkOrderID: wo.ID.String()})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.TasksCreated != 0 {
		t.Fatalf("tasksCreated=%d", res.TasksCreated)
	}
	got := h.workOrder(t, wo.ID)
	if got.SiteAddress == nil || *got.SiteAddress != "12 Main St" {
		t.Fatalf("site_address overwritten: %v", got.SiteAddress)
	}
	if diff := cmp.Diff([]string{"electrical"}, got.RequiredSkills); diff != "" {
		t.Fatalf("required_skills (-want +got):\n%s", diff)
	}
	if got.PlannedDate == nil || *got.PlannedDate != "2024-05-01" {
		t.Fatalf("planned_date=%v", got.PlannedDate)
	}
}

func TestProcess_PDFBecomesAdvisoryWithoutNativeSupport(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "photo.jpg", "permit.pdf")

	if _, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String()}); err != nil {
		t.Fatalf("process: %v", err)
	}
	parts := h.openai.parts[0]
	if len(parts) != 1 || parts[0].Kind != constants.IMAGE {
		t.Fatalf("pdf must not be sent: %+v", parts)
	}
	if !strings.Contains(h.openai.prompts[0], "permit.pdf") {
		t.Fatalf("prompt has no advisory:\n%s", h.openai.prompts[0])
	}
}

func TestProcess_GeminiReceivesPDF(t *testing.T) {
	h := newHarness(t, minimalResponse)
	gemini := &stubProvider{name: constants.ProviderGemini, pdf: true, raw: minimalResponse}
	h.build(h.repos.Tasks, h.openai, gemini)
	id := h.seed(t, "permit.pdf")

	res, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String(), Provider: constants.ProviderGemini})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.PromptVersion != "gemini-v2" {
		t.Fatalf("prompt version=%s", res.PromptVersion)
	}
	if len(gemini.parts[0]) != 1 || gemini.parts[0][0].MIMEType != "application/pdf" {
		t.Fatalf("unexpected parts: %+v", gemini.parts[0])
	}
	if strings.Contains(gemini.prompts[0], "cannot be visually inspected") {
		t.Fatalf("gemini must not get the pdf advisory")
	}
}

func TestProcess_ProviderSelection(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "a.jpg")

	_, err := h.proc.Process(context.Background(), Request{WorkOrderID: id.String(), Provider: constants.ProviderGemini})
	if !errors.Is(err, common.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	_, err = h.proc.Process(context.Background(), Request{WorkOrderID: id.String(), Provider: "claude"})
	if !errors.Is(err, common.ErrInternal) {
		t.Fatalf("expected unknown provider, got %v", err)
	}
}

func TestProcess_ExpiredClaimCanBeTakenOver(t *testing.T) {
	h := newHarness(t, minimalResponse)
	id := h.seed(t, "a.jpg")
	ctx := context.Background()

	stale, ok, err := h.repos.WorkOrders.TryClaim(ctx, id, time.Now().Add(-time.Hour), time.Minute, false)
	if err != nil || !ok {
		t.Fatalf("stale claim: ok=%v err=%v", ok, err)
	}
	if _, err := h.proc.Process(ctx, Request{WorkOrderID: id.String()}); err != nil {
		t.Fatalf("process over expired claim: %v", err)
	}
	if err := h.repos.WorkOrders.ApplyAnalysis(ctx, stale, repository.AnalysisUpdate{}, time.Now()); !errors.Is(err, repository.ErrClaimLost) {
		t.Fatalf("stale holder must lose its write, got %v", err)
	}
}
