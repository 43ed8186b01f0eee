package repository

import (
	"context"
	stdsql "database/sql"
	"database/sql/driver"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
)

var taskColumns = []string{"id", "work_order_id", "seq", "name", "description", "priority", "status", "created_at"}

type WorkOrderTaskRepository interface {
	// CreateBulk inserts all tasks in one statement and returns them with IDs assigned.
	CreateBulk(ctx context.Context, tasks []entity.WorkOrderTask) ([]entity.WorkOrderTask, error)
	ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]*entity.WorkOrderTask, error)
	ListByWorkOrders(ctx context.Context, workOrderIDs []uuid.UUID) ([]*entity.WorkOrderTask, error)
}

type workOrderTaskRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewWorkOrderTaskRepository(drv *entsql.Driver, logger *slog.Logger) WorkOrderTaskRepository {
	return &workOrderTaskRepo{
		drv:    drv,
		logger: logger,
	}
}

func (r *workOrderTaskRepo) CreateBulk(ctx context.Context, tasks []entity.WorkOrderTask) ([]entity.WorkOrderTask, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	out := make([]entity.WorkOrderTask, len(tasks))
	ins := entsql.Dialect(r.drv.Dialect()).Insert(tableWorkOrderTasks).Columns(taskColumns...)
	for i, t := range tasks {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		ins = ins.Values(t.ID, t.WorkOrderID, i, t.Name, t.Description, t.Priority, t.Status, t.CreatedAt)
		out[i] = t
	}
	q, args := ins.Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to bulk insert tasks", "work_order_id", tasks[0].WorkOrderID, "count", len(tasks), "error", err)
		return nil, err
	}
	return out, nil
}

func (r *workOrderTaskRepo) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]*entity.WorkOrderTask, error) {
	return r.list(ctx, entsql.EQ("work_order_id", workOrderID))
}

func (r *workOrderTaskRepo) ListByWorkOrders(ctx context.Context, workOrderIDs []uuid.UUID) ([]*entity.WorkOrderTask, error) {
	if len(workOrderIDs) == 0 {
		return nil, nil
	}
	ids := make([]driver.Value, len(workOrderIDs))
	for i, id := range workOrderIDs {
		ids[i] = id
	}
	return r.list(ctx, entsql.InValues("work_order_id", ids...))
}

func (r *workOrderTaskRepo) list(ctx context.Context, pred *entsql.Predicate) ([]*entity.WorkOrderTask, error) {
	b := entsql.Dialect(r.drv.Dialect())
	q, args := b.Select(taskColumns...).
		From(b.Table(tableWorkOrderTasks)).
		Where(pred).
		OrderBy(entsql.Asc("work_order_id"), entsql.Asc("created_at"), entsql.Asc("seq")).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to list tasks", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.WorkOrderTask
	for rows.Next() {
		var t entity.WorkOrderTask
		var seq int
		var desc stdsql.NullString
		var createdAt dbTime
		if err := rows.Scan(&t.ID, &t.WorkOrderID, &seq, &t.Name, &desc, &t.Priority, &t.Status, &createdAt); err != nil {
			return nil, err
		}
		t.Description = nullStringPtr(desc)
		t.CreatedAt = createdAt.T
		out = append(out, &t)
	}
	return out, rows.Err()
}
