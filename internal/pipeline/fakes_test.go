package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
	"github.com/joseph-ayodele/workorders-tracker/internal/testutil"
)

// memStore serves objects from a map. Keys listed in fail return an error.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    map[string]bool
	calls   []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, fail: map[string]bool{}}
}

func (s *memStore) put(key string, data []byte) { s.objects[key] = data }

func (s *memStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, key)
	if s.fail[key] {
		return nil, errors.New("connection reset")
	}
	b, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, common.ErrNotFound)
	}
	return b, nil
}

func (s *memStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

// stubProvider returns a canned response and records what it was sent.
type stubProvider struct {
	name  string
	pdf   bool
	raw   string
	err   error
	delay time.Duration

	mu      sync.Mutex
	calls   int
	prompts []string
	parts   [][]llm.Part
}

func (p *stubProvider) Name() string      { return p.name }
func (p *stubProvider) Model() string     { return "stub-model" }
func (p *stubProvider) SupportsPDF() bool { return p.pdf }
func (p *stubProvider) Template() llm.Template {
	if p.name == constants.ProviderGemini {
		return llm.GeminiTemplate
	}
	return llm.OpenAITemplate
}

func (p *stubProvider) Extract(ctx context.Context, prompt string, parts []llm.Part) (string, error) {
	p.mu.Lock()
	p.calls++
	p.prompts = append(p.prompts, prompt)
	p.parts = append(p.parts, parts)
	p.mu.Unlock()
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.raw, p.err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// failingTasks makes every bulk insert fail.
type failingTasks struct {
	repository.WorkOrderTaskRepository
}

func (failingTasks) CreateBulk(context.Context, []entity.WorkOrderTask) ([]entity.WorkOrderTask, error) {
	return nil, errors.New("insert or update on table violates foreign key constraint")
}

type harness struct {
	repos  testutil.Repos
	store  *memStore
	proc   *Processor
	openai *stubProvider
}

func newHarness(t *testing.T, raw string) *harness {
	t.Helper()
	repos := testutil.NewRepos(t)
	store := newMemStore()
	openai := &stubProvider{name: constants.ProviderOpenAI, raw: raw}
	h := &harness{repos: repos, store: store, openai: openai}
	h.build(repos.Tasks, openai)
	return h
}

func (h *harness) build(tasks repository.WorkOrderTaskRepository, providers ...llm.Provider) {
	l := testutil.Logger()
	collector := NewCollector(h.repos.Files, h.store, "uploads", 2, l)
	writer := NewWriter(h.repos.WorkOrders, tasks, l)
	h.proc = NewProcessor(l, h.repos.WorkOrders, collector, writer, providers, Options{
		DefaultProvider: constants.ProviderOpenAI,
		ClaimTTL:        time.Minute,
		Timeout:         10 * time.Second,
	})
}

// seed creates a work order whose files are all present in the store.
func (h *harness) seed(t *testing.T, names ...string) uuid.UUID {
	t.Helper()
	wo := h.repos.SeedWorkOrder(t, names...)
	for _, n := range names {
		h.store.put("uploads/"+n, []byte("img"))
	}
	return wo.ID
}

func (h *harness) workOrder(t *testing.T, id uuid.UUID) *entity.WorkOrder {
	t.Helper()
	wo, err := h.repos.WorkOrders.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get work order: %v", err)
	}
	return wo
}

func (h *harness) tasks(t *testing.T, id uuid.UUID) []*entity.WorkOrderTask {
	t.Helper()
	ts, err := h.repos.Tasks.ListByWorkOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	return ts
}
