package repository

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Table names.
const (
	tableWorkOrders     = "work_orders"
	tableWorkOrderFiles = "work_order_files"
	tableWorkOrderTasks = "work_order_tasks"
	tableChatMessages   = "chat_messages"
)

// EnsureSchema creates missing tables and indexes. Every statement is idempotent,
// so it is safe to call on each start.
func EnsureSchema(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) error {
	name := "schema/postgres.sql"
	if drv.Dialect() == dialect.SQLite {
		name = "schema/sqlite.sql"
	}
	ddl, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	n := 0
	for _, stmt := range strings.Split(string(ddl), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			logger.Error("repository.schema.exec_failed", "file", name, "error", err)
			return fmt.Errorf("apply schema: %w", err)
		}
		n++
	}
	logger.Info("repository.schema.ok", "dialect", drv.Dialect(), "statements", n)
	return nil
}
