package disconnection

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

var repoTracer = otel.Tracer("github.com/Additional-Code/dialtone/repository/disconnection")

// Store persists disconnection requests.
type Store interface {
	Create(ctx context.Context, req *entity.DisconnectionRequest) error
	GetByID(ctx context.Context, id int64) (*entity.DisconnectionRequest, error)
	FindPending(ctx context.Context, numberID int64) (*entity.DisconnectionRequest, error)
	ListByStatus(ctx context.Context, status entity.DisconnectionStatus, limit int) ([]*entity.DisconnectionRequest, error)
	Decide(ctx context.Context, req *entity.DisconnectionRequest) error
}

// Repository is the bun-backed disconnection request store.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a disconnection repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

func (r *Repository) Create(ctx context.Context, req *entity.DisconnectionRequest) error {
	ctx, span := repoTracer.Start(ctx, "DisconnectionRepository.Create", trace.WithAttributes(attribute.Int64("number.id", req.NumberID)))
	defer span.End()

	if _, err := database.Querier(ctx, r.writer).NewInsert().Model(req).Exec(ctx); err != nil {
		// One pending request per number is enforced by a partial unique index.
		if database.IsUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return repository.RecordError(span, err, "insert failed")
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.DisconnectionRequest, error) {
	ctx, span := repoTracer.Start(ctx, "DisconnectionRepository.GetByID", trace.WithAttributes(attribute.Int64("request.id", id)))
	defer span.End()

	req := new(entity.DisconnectionRequest)
	err := database.Querier(ctx, r.reader).NewSelect().Model(req).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return req, nil
}

// FindPending returns the open request for a number, if any.
func (r *Repository) FindPending(ctx context.Context, numberID int64) (*entity.DisconnectionRequest, error) {
	ctx, span := repoTracer.Start(ctx, "DisconnectionRepository.FindPending", trace.WithAttributes(attribute.Int64("number.id", numberID)))
	defer span.End()

	req := new(entity.DisconnectionRequest)
	err := database.Querier(ctx, r.reader).NewSelect().Model(req).
		Where("number_id = ?", numberID).
		Where("status = ?", entity.DisconnectionPending).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return req, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status entity.DisconnectionStatus, limit int) ([]*entity.DisconnectionRequest, error) {
	ctx, span := repoTracer.Start(ctx, "DisconnectionRepository.ListByStatus", trace.WithAttributes(attribute.String("request.status", string(status))))
	defer span.End()

	var reqs []*entity.DisconnectionRequest
	q := database.Querier(ctx, r.reader).NewSelect().Model(&reqs).
		Where("status = ?", status).
		Order("requested_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return reqs, nil
}

// Decide records a decision on a request that is still pending.
func (r *Repository) Decide(ctx context.Context, req *entity.DisconnectionRequest) error {
	ctx, span := repoTracer.Start(ctx, "DisconnectionRepository.Decide", trace.WithAttributes(
		attribute.Int64("request.id", req.ID),
		attribute.String("request.status", string(req.Status)),
	))
	defer span.End()

	res, err := database.Querier(ctx, r.writer).NewUpdate().Model(req).
		Column("status", "notes", "decided_at").
		Where("id = ?", req.ID).
		Where("status = ?", entity.DisconnectionPending).
		Exec(ctx)
	if err != nil {
		return repository.RecordError(span, err, "update failed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrStaleState
	}
	return nil
}
