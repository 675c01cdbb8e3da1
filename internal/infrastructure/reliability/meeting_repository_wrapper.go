package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/core/ports"
	"meetrelay/pkg/circuitbreaker"
	"meetrelay/pkg/tracing"

	"go.uber.org/zap"
)

// StoreObserver receives the outcome of every store call.
type StoreObserver interface {
	ObserveStoreOperation(operation string, duration time.Duration, err error)
}

// MeetingRepositoryWrapper guards a MeetingRepository with a circuit breaker
// and a per-call timeout. Transport failures surface as
// domain.ErrStoreUnavailable; every call reaches the store at most once and
// retrying is left to directory clients.
type MeetingRepositoryWrapper struct {
	repo    ports.MeetingRepository
	backend string
	timeout time.Duration
	logger  *zap.SugaredLogger

	circuitBreaker *circuitbreaker.CircuitBreaker
	observer       StoreObserver
}

// NewMeetingRepositoryWrapper wraps repo. observer may be nil.
func NewMeetingRepositoryWrapper(
	repo ports.MeetingRepository,
	backend string,
	timeout time.Duration,
	cbConfig circuitbreaker.Config,
	observer StoreObserver,
	logger *zap.SugaredLogger,
) *MeetingRepositoryWrapper {
	cbConfig.IsFailure = isStoreFailure

	w := &MeetingRepositoryWrapper{
		repo:           repo,
		backend:        backend,
		timeout:        timeout,
		logger:         logger,
		circuitBreaker: circuitbreaker.New(cbConfig),
		observer:       observer,
	}

	w.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("meeting store circuit breaker state changed",
			"backend", backend,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return w
}

// isStoreFailure reports whether err says something about store health.
// Domain outcomes such as a missing meeting are answers, not failures.
func isStoreFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, domain.ErrMeetingNotFound) &&
		!errors.Is(err, domain.ErrMeetingExists)
}

func (w *MeetingRepositoryWrapper) Create(ctx context.Context, record *domain.MeetingRecord) error {
	err := w.call(ctx, "create", func(ctx context.Context) error {
		return w.repo.Create(ctx, record)
	})
	return w.translate(err, "create", record.ID)
}

func (w *MeetingRepositoryWrapper) GetByID(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error) {
	var record *domain.MeetingRecord
	err := w.call(ctx, "get", func(ctx context.Context) error {
		var err error
		record, err = w.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, w.translate(err, "get", id)
	}
	return record, nil
}

// State exposes the breaker state for readiness checks.
func (w *MeetingRepositoryWrapper) State() circuitbreaker.State {
	return w.circuitBreaker.State()
}

func (w *MeetingRepositoryWrapper) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.TraceStoreOperation(ctx, operation, w.backend)
	defer span.End()

	start := time.Now()
	err := w.circuitBreaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		return fn(callCtx)
	})

	if w.observer != nil {
		w.observer.ObserveStoreOperation(operation, time.Since(start), err)
	}
	if isStoreFailure(err) {
		tracing.RecordError(ctx, err)
	}
	return err
}

func (w *MeetingRepositoryWrapper) translate(err error, operation string, id domain.MeetingID) error {
	if err == nil || !isStoreFailure(err) {
		return err
	}
	w.logger.Warnw("meeting store operation failed",
		"operation", operation,
		"meeting_id", id,
		"backend", w.backend,
		"error", err,
	)
	return fmt.Errorf("%w: %s %s: %v", domain.ErrStoreUnavailable, operation, id, err)
}
