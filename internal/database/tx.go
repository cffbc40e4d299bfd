package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Transactor runs a function inside a single atomic unit of work.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type unitOfWork struct {
	tx *bun.Tx
}

// RunInTx executes fn inside a writer transaction. Nested calls reuse the
// outer transaction and leave commit/rollback to it.
func (c *Connections) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	return c.Writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, unitOfWork{tx: &tx}))
	})
}

// MarkUnitOfWork flags ctx as running inside a unit of work that has no bun
// transaction behind it. Alternative Transactor implementations use it so
// nesting behaves the same as with RunInTx.
func MarkUnitOfWork(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, unitOfWork{})
}

// InTx reports whether ctx is inside a unit of work.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(unitOfWork)
	return ok
}

// TxFromContext returns the transaction bound to ctx, if any.
func TxFromContext(ctx context.Context) (bun.Tx, bool) {
	uow, ok := ctx.Value(txKey{}).(unitOfWork)
	if !ok || uow.tx == nil {
		return bun.Tx{}, false
	}
	return *uow.tx, true
}

// Querier returns the active transaction when present, otherwise fallback.
func Querier(ctx context.Context, fallback bun.IDB) bun.IDB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return fallback
}

// IsUniqueViolation reports whether err is a unique/primary key violation
// for any of the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
