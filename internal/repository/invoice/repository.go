package invoice

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/dialtone/repository/invoice")

// Store persists invoices.
type Store interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	GetByOrderPeriod(ctx context.Context, orderID int64, period string) (*entity.Invoice, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*entity.Invoice, error)
	UpdateAmounts(ctx context.Context, invoice *entity.Invoice) error
}

// Repository is the bun-backed invoice store.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires an invoice repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts an invoice; an existing (order, period) pair yields ErrDuplicate.
func (r *Repository) Create(ctx context.Context, invoice *entity.Invoice) error {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.Create", trace.WithAttributes(
		attribute.Int64("order.id", invoice.OrderID),
		attribute.String("invoice.period", invoice.Period),
	))
	defer span.End()

	if _, err := database.Querier(ctx, r.writer).NewInsert().Model(invoice).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return repository.RecordError(span, err, "insert failed")
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.GetByID", trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	invoice := new(entity.Invoice)
	err := database.Querier(ctx, r.reader).NewSelect().Model(invoice).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return invoice, nil
}

func (r *Repository) GetByOrderPeriod(ctx context.Context, orderID int64, period string) (*entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.GetByOrderPeriod", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("invoice.period", period),
	))
	defer span.End()

	invoice := new(entity.Invoice)
	err := database.Querier(ctx, r.reader).NewSelect().Model(invoice).
		Where("order_id = ?", orderID).
		Where("period = ?", period).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return invoice, nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.ListByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var invoices []*entity.Invoice
	err := database.Querier(ctx, r.reader).NewSelect().Model(&invoices).
		Where("order_id = ?", orderID).
		Order("from_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return invoices, nil
}

// UpdateAmounts writes usage_amount and amount together in one statement.
func (r *Repository) UpdateAmounts(ctx context.Context, invoice *entity.Invoice) error {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.UpdateAmounts", trace.WithAttributes(attribute.Int64("invoice.id", invoice.ID)))
	defer span.End()

	res, err := database.Querier(ctx, r.writer).NewUpdate().Model(invoice).
		Column("usage_amount", "amount", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return repository.RecordError(span, err, "update failed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
