package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSlowQueryHook(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hook := &SlowQueryHook{Threshold: 100 * time.Millisecond, Logger: zap.New(core)}
	ctx := context.Background()

	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Zero(t, logs.Len(), "fast queries are quiet")

	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "SELECT * FROM orders", StartTime: time.Now().Add(-time.Second)})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: sql.ErrNoRows})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "INSERT INTO numbers", StartTime: time.Now(), Err: errors.New("UNIQUE constraint failed: numbers.number")})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "UPDATE orders", StartTime: time.Now(), Err: errors.New("connection reset")})

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "slow query", entries[0].Message)
		assert.Equal(t, "query failed", entries[1].Message)
	}
}

func TestNormalizeDriver(t *testing.T) {
	assert.Equal(t, "postgres", normalizeDriver(" PG "))
	assert.Equal(t, "sqlite", normalizeDriver("sqlite3"))
	assert.Equal(t, "mysql", normalizeDriver("mysql"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: wallet_transactions.user_id")))
	assert.False(t, IsUniqueViolation(errors.New("syntax error")))
}
