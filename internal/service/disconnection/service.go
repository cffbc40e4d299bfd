package disconnection

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/messaging"
	"github.com/Additional-Code/dialtone/internal/repository"
	disconnectionrepo "github.com/Additional-Code/dialtone/internal/repository/disconnection"
	numberrepo "github.com/Additional-Code/dialtone/internal/repository/number"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/dialtone/service/disconnection")

// RequestInput is a customer's disconnection request.
type RequestInput struct {
	NumberID   int64
	CustomerID int64
	Notes      string
}

// Service runs the request → approve/reject flow for numbers.
type Service struct {
	store     disconnectionrepo.Store
	numbers   numberrepo.Store
	tx        database.Transactor
	locker    lock.Locker
	clock     clock.Clock
	publisher messaging.Client
	logger    *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store      disconnectionrepo.Store
	Numbers    numberrepo.Store
	Transactor database.Transactor
	Locker     lock.Locker
	Clock      clock.Clock
	Publisher  messaging.Client
	Logger     *zap.Logger
}

// NewService wires a new disconnection Service.
func NewService(p Params) *Service {
	return &Service{
		store:     p.Store,
		numbers:   p.Numbers,
		tx:        p.Transactor,
		locker:    p.Locker,
		clock:     p.Clock,
		publisher: p.Publisher,
		logger:    p.Logger,
	}
}

// Request opens a disconnection request on an active number the customer owns.
func (s *Service) Request(ctx context.Context, in RequestInput) (*entity.DisconnectionRequest, error) {
	ctx, span := serviceTracer.Start(ctx, "DisconnectionService.Request", trace.WithAttributes(attribute.Int64("number.id", in.NumberID)))
	defer span.End()

	if in.NumberID <= 0 || in.CustomerID <= 0 {
		return nil, errorbank.Validation("number_id and customer_id are required")
	}

	release, err := s.locker.Acquire(ctx, lock.Key("number", in.NumberID))
	if err != nil {
		return nil, errorbank.Conflict("number is being modified", errorbank.WithCause(err))
	}
	defer release()

	var created *entity.DisconnectionRequest
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		number, err := s.number(ctx, in.NumberID)
		if err != nil {
			return err
		}
		// Undelivered and foreign numbers look the same to the caller.
		if number.CustomerID == nil || *number.CustomerID != in.CustomerID {
			return errorbank.NotFound("number not found", errorbank.WithDetail("number_id", number.ID))
		}
		if number.Status != entity.NumberActive {
			return errorbank.InvalidTransition("only active numbers can be disconnected",
				errorbank.WithDetails(map[string]any{"number_id": number.ID, "status": number.Status}))
		}

		open, err := s.store.FindPending(ctx, number.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return errorbank.Internal("failed to check pending requests", errorbank.WithCause(err))
		}
		if open != nil {
			return errorbank.InvalidTransition("a disconnection request is already pending",
				errorbank.WithDetails(map[string]any{"number_id": number.ID, "request_id": open.ID}))
		}

		now := s.clock.Now()
		req := &entity.DisconnectionRequest{
			NumberID:    number.ID,
			CustomerID:  in.CustomerID,
			Status:      entity.DisconnectionPending,
			Notes:       in.Notes,
			RequestedAt: now,
		}
		if err := s.store.Create(ctx, req); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errorbank.Conflict("a disconnection request was opened concurrently",
					errorbank.WithDetail("number_id", number.ID), errorbank.WithCause(err))
			}
			return errorbank.Internal("failed to create disconnection request", errorbank.WithCause(err))
		}
		number.DisconnectionStatus = entity.DisconnectionPending
		number.UpdatedAt = now
		if err := s.numbers.UpdateStatus(ctx, number); err != nil {
			return errorbank.Internal("failed to update number", errorbank.WithCause(err))
		}
		created = req
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return created, nil
}

// Approve disconnects the number. Disconnection is final.
func (s *Service) Approve(ctx context.Context, requestID int64) (*entity.DisconnectionRequest, error) {
	req, number, err := s.decide(ctx, "DisconnectionService.Approve", requestID, entity.DisconnectionApproved, nil, func(n *entity.Number) {
		n.Status = entity.NumberDisconnected
		n.DisconnectionStatus = entity.DisconnectionCompleted
	})
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("number-%d", number.ID)
	if err := messaging.PublishEvent(ctx, s.publisher, messaging.EventNumberDisconnect, key, s.clock.Now(), number); err != nil {
		s.logger.Warn("publish number disconnected failed", zap.Int64("number_id", number.ID), zap.Error(err))
	}
	return req, nil
}

// Reject closes the request and leaves the number active.
func (s *Service) Reject(ctx context.Context, requestID int64, notes string) (*entity.DisconnectionRequest, error) {
	req, _, err := s.decide(ctx, "DisconnectionService.Reject", requestID, entity.DisconnectionRejected, &notes, func(n *entity.Number) {
		n.DisconnectionStatus = entity.DisconnectionRejected
	})
	return req, err
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.DisconnectionRequest, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("disconnection request not found", errorbank.WithDetail("request_id", id))
		}
		return nil, errorbank.Internal("failed to load disconnection request", errorbank.WithCause(err))
	}
	return req, nil
}

// ListPending returns requests awaiting a decision, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*entity.DisconnectionRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	reqs, err := s.store.ListByStatus(ctx, entity.DisconnectionPending, limit)
	if err != nil {
		return nil, errorbank.Internal("failed to list disconnection requests", errorbank.WithCause(err))
	}
	return reqs, nil
}

func (s *Service) decide(ctx context.Context, name string, requestID int64, outcome entity.DisconnectionStatus, notes *string, apply func(*entity.Number)) (*entity.DisconnectionRequest, *entity.Number, error) {
	ctx, span := serviceTracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("disconnection.id", requestID)))
	defer span.End()

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.Key("number", req.NumberID))
	if err != nil {
		return nil, nil, errorbank.Conflict("number is being modified", errorbank.WithCause(err))
	}
	defer release()

	var number *entity.Number
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if current.Status != entity.DisconnectionPending {
			return errorbank.InvalidTransition("request already decided",
				errorbank.WithDetails(map[string]any{"request_id": requestID, "status": current.Status}))
		}
		now := s.clock.Now()
		current.Status = outcome
		current.DecidedAt = &now
		if notes != nil && *notes != "" {
			current.Notes = *notes
		}
		if err := s.store.Decide(ctx, current); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return errorbank.Conflict("request changed concurrently, retry", errorbank.WithDetail("request_id", requestID))
			}
			return errorbank.Internal("failed to update request", errorbank.WithCause(err))
		}

		n, err := s.number(ctx, current.NumberID)
		if err != nil {
			return err
		}
		apply(n)
		n.UpdatedAt = now
		if err := s.numbers.UpdateStatus(ctx, n); err != nil {
			return errorbank.Internal("failed to update number", errorbank.WithCause(err))
		}
		req, number = current, n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	s.logger.Info("disconnection decided",
		zap.Int64("request_id", requestID), zap.Int64("number_id", number.ID), zap.String("outcome", string(outcome)))
	return req, number, nil
}

func (s *Service) number(ctx context.Context, id int64) (*entity.Number, error) {
	number, err := s.numbers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("number not found", errorbank.WithDetail("number_id", id))
		}
		return nil, errorbank.Internal("failed to load number", errorbank.WithCause(err))
	}
	return number, nil
}
