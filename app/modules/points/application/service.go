package pointsservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	pointsmetrics "github.com/Black-And-White-Club/points-ledger/app/shared/observability/metrics/points"
	"github.com/Black-And-White-Club/points-ledger/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "PointsService"

// DefaultMaxBatchSize bounds mutation and honor lists when no limit is configured.
const DefaultMaxBatchSize = 100

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	MaxBatchSize int
	// Defaults maps a policy category such as "honors.award" to its value
	// when an organization sets no override.
	Defaults map[string]int
	Now      func() time.Time
}

// PointsService implements the Service interface.
type PointsService struct {
	repo       pointsdb.Repository
	directory  MembershipDirectory
	attendance AttendanceOracle
	policy     *PolicyResolver
	events     EventPublisher
	logger     *slog.Logger
	metrics    pointsmetrics.PointsMetrics
	tracer     trace.Tracer
	db         *bun.DB

	maxBatchSize int
	now          func() time.Time
}

// NewPointsService creates a new PointsService.
func NewPointsService(
	repo pointsdb.Repository,
	directory MembershipDirectory,
	attendance AttendanceOracle,
	settings SettingsStore,
	events EventPublisher,
	logger *slog.Logger,
	metrics pointsmetrics.PointsMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	opts Options,
) *PointsService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PointsService{
		repo:         repo,
		directory:    directory,
		attendance:   attendance,
		policy:       NewPolicyResolver(settings, opts.Defaults),
		events:       events,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
		db:           db,
		maxBatchSize: opts.MaxBatchSize,
		now:          opts.Now,
	}
}

var _ Service = (*PointsService)(nil)

// scopeLogger derives the per-call logger.
func (s *PointsService) scopeLogger(scope pointsdomain.Scope) *slog.Logger {
	l := s.logger.With(attr.OrganizationID(int64(scope.OrganizationID)))
	if scope.ActorID != "" {
		l = l.With(attr.ActorID(string(scope.ActorID)))
	}
	return l
}

// today is the default effective date for undated writes.
func (s *PointsService) today() string {
	return pointsdomain.FormatDate(s.now().UTC())
}

// publish emits a domain event after commit. Failures are logged only;
// the write has already been committed.
func (s *PointsService) publish(ctx context.Context, scope pointsdomain.Scope, topic string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, payload); err != nil {
		s.scopeLogger(scope).WarnContext(ctx, "Failed to publish domain event",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}

func validateOrganization(orgID pointsdomain.OrganizationID) error {
	if orgID <= 0 {
		return pointsdomain.NewValidationError("organization_id", "must be a positive integer")
	}
	return nil
}

// unwrap converts an operation result into the public (value, error) shape.
func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, nil
	}
	return *result.Success, nil
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
// Infrastructure errors come back as *pointsdomain.InternalError.
func withTelemetry[S any, F any](
	s *PointsService,
	ctx context.Context,
	operationName string,
	scope pointsdomain.Scope,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	logger := s.scopeLogger(scope).With(attr.Operation(operationName))

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
			attribute.Int64("organization_id", int64(scope.OrganizationID)),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
		}
	}()

	logger.InfoContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("identifier", identifier))

	defer func() {
		if r := recover(); r != nil {
			err = &pointsdomain.InternalError{Op: operationName, Err: fmt.Errorf("panic in %s: %v", operationName, r)}
			logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := &pointsdomain.InternalError{Op: operationName, Err: err}
		logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("identifier", identifier),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// errRollback aborts a transaction whose operation produced a domain failure.
var errRollback = errors.New("rollback on failure result")

// runInTx runs fn in one transaction. A failure result rolls the
// transaction back like an error does, so not-found aborts every write.
func runInTx[S any, F any](
	s *PointsService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		if txErr != nil {
			return txErr
		}
		if result.IsFailure() {
			return errRollback
		}
		return nil
	})
	if errors.Is(err, errRollback) {
		return result, nil
	}

	return result, err
}
