package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
)

// WarnTasksNotCreated is surfaced when the work order was updated but its tasks were not inserted.
const WarnTasksNotCreated = "work order updated but suggested tasks could not be created"

// WriteResult is what the persistence step reports back to the orchestrator.
type WriteResult struct {
	TasksCreated int
	Tasks        []entity.WorkOrderTask
	Warnings     []string
}

// Writer applies a normalized analysis to the work order and derives its tasks.
type Writer struct {
	WorkOrders repository.WorkOrderRepository
	Tasks      repository.WorkOrderTaskRepository
	Logger     *slog.Logger
	now        func() time.Time
}

func NewWriter(workOrders repository.WorkOrderRepository, tasks repository.WorkOrderTaskRepository, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{WorkOrders: workOrders, Tasks: tasks, Logger: logger, now: time.Now}
}

// UpdateFromAnalysis maps the present fields of an analysis onto a partial update.
func UpdateFromAnalysis(a *llm.Analysis) repository.AnalysisUpdate {
	f := a.Fields
	return repository.AnalysisUpdate{
		Analysis:          a.Raw,
		WorkOrderNumber:   f.WorkOrderNumber,
		SiteAddress:       f.SiteAddress,
		WorkOrderDate:     f.WorkOrderDate,
		PlannedDate:       f.PlannedDate,
		RequiredSkills:    f.RequiredSkills,
		RequiredPermits:   f.RequiredPermits,
		RequiredEquipment: f.RequiredEquipment,
		RequiredMaterials: f.RequiredMaterials,
		ScopeOfWork:       f.ScopeOfWork,
	}
}

// TasksFromAnalysis builds the rows for work_order_tasks, all Pending.
func TasksFromAnalysis(claim *repository.Claim, a *llm.Analysis) []entity.WorkOrderTask {
	if len(a.Tasks) == 0 {
		return nil
	}
	out := make([]entity.WorkOrderTask, 0, len(a.Tasks))
	for _, t := range a.Tasks {
		out = append(out, entity.WorkOrderTask{
			WorkOrderID: claim.WorkOrderID,
			Name:        t.Name,
			Description: t.Description,
			Priority:    string(t.Priority),
			Status:      string(constants.TaskStatusPending),
		})
	}
	return out
}

// Apply runs the work-order UPDATE and then, separately, the task INSERT.
// A failed task insert does not undo the update; it is reported as a warning.
func (w *Writer) Apply(ctx context.Context, claim *repository.Claim, a *llm.Analysis) (WriteResult, error) {
	logger := common.LoggerFromContext(ctx, w.Logger)
	start := time.Now()

	if err := w.WorkOrders.ApplyAnalysis(ctx, claim, UpdateFromAnalysis(a), w.now()); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			return WriteResult{}, common.NewAppError(common.CodeAlreadyProcessing, "work order claim was lost before the update", common.ErrConflict)
		}
		return WriteResult{}, common.DatabaseError("failed to update work order", err)
	}

	var res WriteResult
	rows := TasksFromAnalysis(claim, a)
	if len(rows) > 0 {
		created, err := w.Tasks.CreateBulk(ctx, rows)
		if err != nil {
			logger.Error("pipeline.persist.tasks_failed",
				"work_order_id", claim.WorkOrderID,
				"count", len(rows),
				"error", err,
			)
			res.Warnings = append(res.Warnings, WarnTasksNotCreated)
		} else {
			res.Tasks = created
			res.TasksCreated = len(created)
		}
	}

	logger.Info("pipeline.persist.ok",
		"work_order_id", claim.WorkOrderID,
		"tasks_created", res.TasksCreated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
