package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// SlowQueryHook logs queries slower than Threshold, and failed queries other
// than unique violations, which callers translate into conflicts.
type SlowQueryHook struct {
	Threshold time.Duration
	Logger    *zap.Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	switch {
	case event.Err != nil && !isExpected(event.Err):
		h.Logger.Warn("query failed",
			zap.String("operation", event.Operation()),
			zap.Duration("elapsed", elapsed),
			zap.Error(event.Err),
		)
	case h.Threshold > 0 && elapsed >= h.Threshold:
		h.Logger.Warn("slow query",
			zap.String("operation", event.Operation()),
			zap.Duration("elapsed", elapsed),
			zap.String("query", event.Query),
		)
	}
}

func isExpected(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || IsUniqueViolation(err)
}
