package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
)

// ErrClaimLost is returned when a write is conditioned on a claim the caller no longer holds.
var ErrClaimLost = errors.New("work order claim lost")

var workOrderColumns = []string{
	"id", "processed", "analysis",
	"work_order_number", "site_address", "work_order_date", "planned_date",
	"required_skills", "required_permits", "required_equipment", "required_materials",
	"scope_of_work", "created_at", "updated_at",
}

// AnalysisUpdate is a partial update of a work order.
// Nil pointers and nil slices mean "leave the column untouched".
type AnalysisUpdate struct {
	Analysis          json.RawMessage
	WorkOrderNumber   *string
	SiteAddress       *string
	WorkOrderDate     *string
	PlannedDate       *string
	RequiredSkills    []string
	RequiredPermits   []string
	RequiredEquipment []string
	RequiredMaterials []string
	ScopeOfWork       *string
}

// ListFilter narrows ListWorkOrders.
type ListFilter struct {
	Processed *bool
	Limit     int
	Offset    int
}

// Claim identifies an exclusive processing lease on one work order.
type Claim struct {
	WorkOrderID uuid.UUID
	Token       string
}

type WorkOrderRepository interface {
	Create(ctx context.Context, wo *entity.WorkOrder) (*entity.WorkOrder, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.WorkOrder, error)
	List(ctx context.Context, f ListFilter) ([]*entity.WorkOrder, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// TryClaim takes the processing lease if nobody holds a live one.
	// Unless force is set it also requires processed=false.
	TryClaim(ctx context.Context, id uuid.UUID, now time.Time, ttl time.Duration, force bool) (*Claim, bool, error)
	ReleaseClaim(ctx context.Context, c *Claim) error
	// ApplyAnalysis writes the present fields, sets processed=true and drops the claim.
	ApplyAnalysis(ctx context.Context, c *Claim, upd AnalysisUpdate, now time.Time) error
}

type workOrderRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewWorkOrderRepository(drv *entsql.Driver, logger *slog.Logger) WorkOrderRepository {
	return &workOrderRepository{
		drv:    drv,
		logger: logger,
	}
}

func (r *workOrderRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *workOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) (*entity.WorkOrder, error) {
	out := *wo
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := time.Now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = out.CreatedAt

	lists := make([]any, 0, 4)
	for _, l := range [][]string{out.RequiredSkills, out.RequiredPermits, out.RequiredEquipment, out.RequiredMaterials} {
		v, err := encodeList(l)
		if err != nil {
			return nil, err
		}
		lists = append(lists, v)
	}
	var analysis any
	if len(out.Analysis) > 0 {
		analysis = string(out.Analysis)
	}

	q, args := r.builder().Insert(tableWorkOrders).
		Columns(workOrderColumns...).
		Values(
			out.ID, out.Processed, analysis,
			out.WorkOrderNumber, out.SiteAddress, out.WorkOrderDate, out.PlannedDate,
			lists[0], lists[1], lists[2], lists[3],
			out.ScopeOfWork, out.CreatedAt, out.UpdatedAt,
		).Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to create work order", "work_order_id", out.ID, "error", err)
		return nil, err
	}
	return &out, nil
}

func (r *workOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.WorkOrder, error) {
	b := r.builder()
	q, args := b.Select(workOrderColumns...).
		From(b.Table(tableWorkOrders)).
		Where(entsql.EQ("id", id)).
		Query()
	list, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to get work order", "work_order_id", id, "error", err)
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("work order %s: %w", id, common.ErrNotFound)
	}
	return list[0], nil
}

func (r *workOrderRepository) List(ctx context.Context, f ListFilter) ([]*entity.WorkOrder, error) {
	b := r.builder()
	sel := b.Select(workOrderColumns...).
		From(b.Table(tableWorkOrders)).
		OrderBy(entsql.Desc("created_at"))
	if f.Processed != nil {
		sel = sel.Where(entsql.EQ("processed", *f.Processed))
	}
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel = sel.Offset(f.Offset)
	}
	q, args := sel.Query()
	list, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list work orders", "error", err)
		return nil, err
	}
	return list, nil
}

func (r *workOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, args := r.builder().Delete(tableWorkOrders).Where(entsql.EQ("id", id)).Query()
	var res stdsql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to delete work order", "work_order_id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("work order %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *workOrderRepository) TryClaim(ctx context.Context, id uuid.UUID, now time.Time, ttl time.Duration, force bool) (*Claim, bool, error) {
	token := uuid.NewString()
	pred := entsql.And(
		entsql.EQ("id", id),
		entsql.Or(
			entsql.IsNull("claim_expires_at"),
			entsql.LT("claim_expires_at", now.UnixMilli()),
		),
	)
	if !force {
		pred = entsql.And(pred, entsql.EQ("processed", false))
	}
	q, args := r.builder().Update(tableWorkOrders).
		Set("claim_token", token).
		Set("claim_expires_at", now.Add(ttl).UnixMilli()).
		Where(pred).
		Query()

	var res stdsql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to claim work order", "work_order_id", id, "error", err)
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		r.logger.Debug("work order claim not acquired", "work_order_id", id, "force", force)
		return nil, false, nil
	}
	return &Claim{WorkOrderID: id, Token: token}, true, nil
}

func (r *workOrderRepository) ReleaseClaim(ctx context.Context, c *Claim) error {
	if c == nil {
		return nil
	}
	q, args := r.builder().Update(tableWorkOrders).
		SetNull("claim_token").
		SetNull("claim_expires_at").
		Where(entsql.And(entsql.EQ("id", c.WorkOrderID), entsql.EQ("claim_token", c.Token))).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to release work order claim", "work_order_id", c.WorkOrderID, "error", err)
		return err
	}
	return nil
}

func (r *workOrderRepository) ApplyAnalysis(ctx context.Context, c *Claim, upd AnalysisUpdate, now time.Time) error {
	if c == nil {
		return fmt.Errorf("apply analysis: %w", ErrClaimLost)
	}
	u := r.builder().Update(tableWorkOrders).
		Set("processed", true).
		Set("updated_at", now.UTC()).
		SetNull("claim_token").
		SetNull("claim_expires_at")
	if len(upd.Analysis) > 0 {
		u = u.Set("analysis", string(upd.Analysis))
	}

	setStr := func(col string, v *string) {
		if v != nil {
			u = u.Set(col, *v)
		}
	}
	setStr("work_order_number", upd.WorkOrderNumber)
	setStr("site_address", upd.SiteAddress)
	setStr("work_order_date", upd.WorkOrderDate)
	setStr("planned_date", upd.PlannedDate)
	setStr("scope_of_work", upd.ScopeOfWork)

	lists := []struct {
		col string
		v   []string
	}{
		{"required_skills", upd.RequiredSkills},
		{"required_permits", upd.RequiredPermits},
		{"required_equipment", upd.RequiredEquipment},
		{"required_materials", upd.RequiredMaterials},
	}
	for _, l := range lists {
		if l.v == nil {
			continue
		}
		enc, err := encodeList(l.v)
		if err != nil {
			return err
		}
		u = u.Set(l.col, enc)
	}

	q, args := u.Where(entsql.And(
		entsql.EQ("id", c.WorkOrderID),
		entsql.EQ("claim_token", c.Token),
	)).Query()

	var res stdsql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to apply analysis", "work_order_id", c.WorkOrderID, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("work order %s: %w", c.WorkOrderID, ErrClaimLost)
	}
	return nil
}

func (r *workOrderRepository) query(ctx context.Context, q string, args []any) ([]*entity.WorkOrder, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.WorkOrder
	for rows.Next() {
		var wo entity.WorkOrder
		var analysis, skills, permits, equip, mats []byte
		var number, site, woDate, planned, scope stdsql.NullString
		var createdAt, updatedAt dbTime
		if err := rows.Scan(
			&wo.ID, &wo.Processed, &analysis,
			&number, &site, &woDate, &planned,
			&skills, &permits, &equip, &mats,
			&scope, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		wo.Analysis = copyBytes(analysis)
		wo.WorkOrderNumber = nullStringPtr(number)
		wo.SiteAddress = nullStringPtr(site)
		wo.WorkOrderDate = nullStringPtr(woDate)
		wo.PlannedDate = nullStringPtr(planned)
		wo.ScopeOfWork = nullStringPtr(scope)
		var err error
		if wo.RequiredSkills, err = decodeList(skills); err != nil {
			return nil, err
		}
		if wo.RequiredPermits, err = decodeList(permits); err != nil {
			return nil, err
		}
		if wo.RequiredEquipment, err = decodeList(equip); err != nil {
			return nil, err
		}
		if wo.RequiredMaterials, err = decodeList(mats); err != nil {
			return nil, err
		}
		wo.CreatedAt = createdAt.T
		wo.UpdatedAt = updatedAt.T
		out = append(out, &wo)
	}
	return out, rows.Err()
}
