package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
)

const (
	SheetWorkOrders = "Work Orders"
	SheetTasks      = "Tasks"
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	workOrders repository.WorkOrderRepository
	tasks      repository.WorkOrderTaskRepository
	logger     *slog.Logger
}

func NewService(workOrders repository.WorkOrderRepository, tasks repository.WorkOrderTaskRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{workOrders: workOrders, tasks: tasks, logger: logger}
}

// ExportWorkOrdersXLSX returns a workbook with one row per work order and one row per derived task.
// processed narrows the export when set.
func (s *Service) ExportWorkOrdersXLSX(ctx context.Context, processed *bool) ([]byte, error) {
	start := time.Now()

	orders, err := s.workOrders.List(ctx, repository.ListFilter{Processed: processed})
	if err != nil {
		return nil, common.DatabaseError("query work orders", err)
	}
	ids := make([]uuid.UUID, len(orders))
	numbers := make(map[uuid.UUID]string, len(orders))
	for i, wo := range orders {
		ids[i] = wo.ID
		numbers[wo.ID] = deref(wo.WorkOrderNumber)
	}
	tasks, err := s.tasks.ListByWorkOrders(ctx, ids)
	if err != nil {
		return nil, common.DatabaseError("query tasks", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), SheetWorkOrders); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetTasks); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeHeader(f, SheetWorkOrders, []string{
		"Work Order ID",
		"Work Order #",
		"Site Address",
		"Work Order Date",
		"Planned Date",
		"Processed",
		"Scope of Work",
		"Required Skills",
		"Required Permits",
		"Required Equipment",
		"Required Materials",
		"Created At",
	})
	for i, wo := range orders {
		writeRow(f, SheetWorkOrders, i+2, []any{
			wo.ID.String(),
			deref(wo.WorkOrderNumber),
			deref(wo.SiteAddress),
			deref(wo.WorkOrderDate),
			deref(wo.PlannedDate),
			yesNo(wo.Processed),
			truncate(deref(wo.ScopeOfWork), 500),
			strings.Join(wo.RequiredSkills, ", "),
			strings.Join(wo.RequiredPermits, ", "),
			strings.Join(wo.RequiredEquipment, ", "),
			strings.Join(wo.RequiredMaterials, ", "),
			wo.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeHeader(f, SheetTasks, []string{
		"Work Order ID",
		"Work Order #",
		"Task",
		"Description",
		"Priority",
		"Status",
		"Created At",
	})
	for i, t := range tasks {
		writeRow(f, SheetTasks, i+2, []any{
			t.WorkOrderID.String(),
			numbers[t.WorkOrderID],
			t.Name,
			truncate(deref(t.Description), 500),
			t.Priority,
			t.Status,
			t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetWorkOrders, "A", "A", 38) // id
	_ = f.SetColWidth(SheetWorkOrders, "B", "B", 16)
	_ = f.SetColWidth(SheetWorkOrders, "C", "C", 40) // address
	_ = f.SetColWidth(SheetWorkOrders, "D", "F", 14)
	_ = f.SetColWidth(SheetWorkOrders, "G", "G", 60) // scope
	_ = f.SetColWidth(SheetWorkOrders, "H", "K", 30)
	_ = f.SetColWidth(SheetTasks, "A", "A", 38)
	_ = f.SetColWidth(SheetTasks, "C", "D", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"work_orders", len(orders),
		"tasks", len(tasks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, vals []any) {
	for i, v := range vals {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
