package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
)

type WorkOrderFileRepository interface {
	Create(ctx context.Context, f *entity.WorkOrderFile) (*entity.WorkOrderFile, error)
	ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]*entity.WorkOrderFile, error)
}

type workOrderFileRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewWorkOrderFileRepository(drv *entsql.Driver, logger *slog.Logger) WorkOrderFileRepository {
	return &workOrderFileRepo{
		drv:    drv,
		logger: logger,
	}
}

func (r *workOrderFileRepo) Create(ctx context.Context, f *entity.WorkOrderFile) (*entity.WorkOrderFile, error) {
	out := *f
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	q, args := entsql.Dialect(r.drv.Dialect()).Insert(tableWorkOrderFiles).
		Columns("id", "work_order_id", "file_url", "file_name", "file_size", "mime_type", "created_at").
		Values(out.ID, out.WorkOrderID, out.FileURL, out.FileName, out.FileSize, out.MIMEType, out.CreatedAt).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to create work order file", "work_order_id", out.WorkOrderID, "file_name", out.FileName, "error", err)
		return nil, err
	}
	return &out, nil
}

func (r *workOrderFileRepo) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]*entity.WorkOrderFile, error) {
	b := entsql.Dialect(r.drv.Dialect())
	q, args := b.Select("id", "work_order_id", "file_url", "file_name", "file_size", "mime_type", "created_at").
		From(b.Table(tableWorkOrderFiles)).
		Where(entsql.EQ("work_order_id", workOrderID)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("file_name")).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to list work order files", "work_order_id", workOrderID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.WorkOrderFile
	for rows.Next() {
		var f entity.WorkOrderFile
		var createdAt dbTime
		if err := rows.Scan(&f.ID, &f.WorkOrderID, &f.FileURL, &f.FileName, &f.FileSize, &f.MIMEType, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt = createdAt.T
		out = append(out, &f)
	}
	return out, rows.Err()
}
