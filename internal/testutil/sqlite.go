package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/dialtone/internal/database"
)

// SQLite opens a private in-memory database for repository tests. The pool
// is pinned to one connection so every query sees the same database.
func SQLite(t testing.TB) *database.Connections {
	t.Helper()
	sqldb, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return &database.Connections{Writer: db, Reader: db}
}
