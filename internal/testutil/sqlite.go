// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenDB returns a private in-memory sqlite database with the schema applied.
func OpenDB(t testing.TB) *entsql.Driver {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	drv, err := repository.OpenSQLite(ctx, dsn, Logger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = drv.Close() })
	if err := repository.EnsureSchema(ctx, drv, Logger()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return drv
}

// Repos bundles the repositories over one database.
type Repos struct {
	Drv        *entsql.Driver
	WorkOrders repository.WorkOrderRepository
	Files      repository.WorkOrderFileRepository
	Tasks      repository.WorkOrderTaskRepository
	Messages   repository.ChatMessageRepository
}

func NewRepos(t testing.TB) Repos {
	drv := OpenDB(t)
	l := Logger()
	return Repos{
		Drv:        drv,
		WorkOrders: repository.NewWorkOrderRepository(drv, l),
		Files:      repository.NewWorkOrderFileRepository(drv, l),
		Tasks:      repository.NewWorkOrderTaskRepository(drv, l),
		Messages:   repository.NewChatMessageRepository(drv, l),
	}
}

// SeedWorkOrder inserts an unprocessed work order with one file row per name.
// File URLs look like https://files.example.com/uploads/<name>.
func (r Repos) SeedWorkOrder(t testing.TB, fileNames ...string) *entity.WorkOrder {
	t.Helper()
	ctx := context.Background()
	wo, err := r.WorkOrders.Create(ctx, &entity.WorkOrder{})
	if err != nil {
		t.Fatalf("create work order: %v", err)
	}
	base := time.Now().UTC()
	for i, name := range fileNames {
		_, err := r.Files.Create(ctx, &entity.WorkOrderFile{
			WorkOrderID: wo.ID,
			FileURL:     "https://files.example.com/uploads/" + name,
			FileName:    name,
			FileSize:    3,
			CreatedAt:   base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("create file %s: %v", name, err)
		}
	}
	return wo
}
