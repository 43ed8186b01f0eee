package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
)

// Request is one call to the extraction endpoint.
type Request struct {
	WorkOrderID string `json:"workOrderId"`
	Provider    string `json:"provider,omitempty"`
	Force       bool   `json:"force,omitempty"`
}

// Result is the outcome of a successful (or already-processed) run.
type Result struct {
	AlreadyProcessed bool
	Analysis         json.RawMessage
	TasksCreated     int
	Provider         string
	PromptVersion    string
	Warnings         []string
}

// Options tune a Processor.
type Options struct {
	DefaultProvider string
	ClaimTTL        time.Duration
	Timeout         time.Duration
}

// Processor coordinates collect → prompt → model → normalize → persist for one work order.
type Processor struct {
	Logger     *slog.Logger
	WorkOrders repository.WorkOrderRepository
	Collector  *Collector
	Writer     *Writer
	Providers  map[string]llm.Provider
	Opts       Options
	now        func() time.Time
}

func NewProcessor(logger *slog.Logger, workOrders repository.WorkOrderRepository, collector *Collector, writer *Writer, providers []llm.Provider, opts Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = constants.ProviderOpenAI
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 5 * time.Minute
	}
	byName := make(map[string]llm.Provider, len(providers))
	for _, p := range providers {
		if p != nil {
			byName[p.Name()] = p
		}
	}
	return &Processor{
		Logger:     logger,
		WorkOrders: workOrders,
		Collector:  collector,
		Writer:     writer,
		Providers:  byName,
		Opts:       opts,
		now:        time.Now,
	}
}

func (p *Processor) provider(name string) (llm.Provider, error) {
	if name == "" {
		name = p.Opts.DefaultProvider
	}
	if name != constants.ProviderOpenAI && name != constants.ProviderGemini {
		return nil, common.NewAppError(common.CodeConfigError, fmt.Sprintf("unknown provider %q", name), common.ErrInternal)
	}
	prov, ok := p.Providers[name]
	if !ok {
		return nil, common.NewAppError(common.CodeMissingCredentials,
			fmt.Sprintf("%s API key is not configured", name), common.ErrMissingCredentials)
	}
	return prov, nil
}

// Process runs the extraction pipeline once. It never retries.
// Any failure after the claim is taken releases the claim and leaves the row untouched.
func (p *Processor) Process(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, p.Logger)

	if err := common.NewValidator().
		Field("workOrderId", req.WorkOrderID, common.Required, common.UUID).
		Err(); err != nil {
		return nil, err
	}
	id := uuid.MustParse(strings.TrimSpace(req.WorkOrderID))
	logger = logger.With("work_order_id", id)
	ctx = common.WithLogger(ctx, logger)

	prov, err := p.provider(req.Provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := common.WithTimeout(ctx, p.Opts.Timeout)
	defer cancel()

	logger.Info("pipeline.process.start", "provider", prov.Name(), "force", req.Force)

	wo, err := p.WorkOrders.GetByID(ctx, id)
	if err != nil {
		return nil, p.lookupError(err)
	}
	if wo.Processed && !req.Force {
		logger.Info("pipeline.process.already_processed")
		return &Result{AlreadyProcessed: true, Analysis: wo.Analysis}, nil
	}

	claim, ok, err := p.WorkOrders.TryClaim(ctx, id, p.now(), p.Opts.ClaimTTL, req.Force)
	if err != nil {
		return nil, common.DatabaseError("failed to claim work order", err)
	}
	if !ok {
		// lost the race: it may have finished in the meantime
		if cur, gerr := p.WorkOrders.GetByID(ctx, id); gerr == nil && cur.Processed && !req.Force {
			return &Result{AlreadyProcessed: true, Analysis: cur.Analysis}, nil
		}
		logger.Warn("pipeline.process.claim_busy")
		return nil, common.NewAppError(common.CodeAlreadyProcessing, "work order is already being processed", common.ErrConflict)
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := p.WorkOrders.ReleaseClaim(context.WithoutCancel(ctx), claim); rerr != nil {
			logger.Error("pipeline.process.release_failed", "error", rerr)
		}
		logger.Error("pipeline.process.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
	}()

	parts, skipped, err := p.Collector.Collect(ctx, id)
	if err != nil {
		return nil, err
	}

	parts, prompt := PreparePrompt(prov, parts)

	raw, err := prov.Extract(ctx, prompt.Text, parts)
	if err != nil {
		return nil, common.NewAppError(common.CodeProviderError, "extraction service error", errors.Join(common.ErrProvider, err)).
			WithDetails(err.Error())
	}

	analysis, err := llm.Normalize(raw, logger)
	if err != nil {
		ae := common.NewAppError(common.CodeParseError, "failed to parse model response", err)
		var pe *llm.ParseError
		if errors.As(err, &pe) {
			ae = ae.WithRawResponse(pe.Raw)
		}
		return nil, ae
	}

	wr, err := p.Writer.Apply(ctx, claim, analysis)
	if err != nil {
		return nil, err
	}

	warnings := wr.Warnings
	for _, s := range skipped {
		warnings = append(warnings, fmt.Sprintf("skipped %q: %s", s.FileName, s.Reason))
	}

	logger.Info("pipeline.process.ok",
		"provider", prov.Name(),
		"prompt_version", prompt.Version,
		"parts", len(parts),
		"tasks_created", wr.TasksCreated,
		"dropped_fields", len(analysis.Dropped),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Result{
		Analysis:      analysis.Raw,
		TasksCreated:  wr.TasksCreated,
		Provider:      prov.Name(),
		PromptVersion: prompt.Version,
		Warnings:      warnings,
	}, nil
}

// PreparePrompt drops the PDFs a provider cannot read, names them in an
// advisory note, and builds the versioned prompt.
func PreparePrompt(prov llm.Provider, parts []llm.Part) ([]llm.Part, llm.Prompt) {
	var notes []string
	if !prov.SupportsPDF() {
		var pdfs []string
		kept := parts[:0:0]
		for _, part := range parts {
			if part.Kind == constants.PDF {
				pdfs = append(pdfs, part.Name)
				continue
			}
			kept = append(kept, part)
		}
		if len(pdfs) > 0 {
			notes = append(notes, llm.PDFAdvisory(pdfs))
		}
		parts = kept
	}
	return parts, llm.BuildPrompt(prov.Template(), notes)
}

func (p *Processor) lookupError(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFoundError(common.CodeWorkOrderNotFound, "work order not found")
	}
	return common.DatabaseError("failed to load work order", err)
}
