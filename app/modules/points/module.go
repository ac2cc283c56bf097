package points

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/points-ledger/app/eventbus"
	pointsservice "github.com/Black-And-White-Club/points-ledger/app/modules/points/application"
	pointsadapters "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/adapters"
	pointsaudit "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/audit"
	pointshandlers "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/handlers"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	pointsrouter "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/router"
	"github.com/Black-And-White-Club/points-ledger/app/shared/observability"
	pointsmetrics "github.com/Black-And-White-Club/points-ledger/app/shared/observability/metrics/points"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

// Deps carries what the points module needs from the application.
type Deps struct {
	Observability *observability.Observability
	DB            *bun.DB
	EventBus      *eventbus.EventBus
	// MessageRouter receives the audit consumer handlers. Nil disables audit.
	MessageRouter *message.Router
	// NATS enables request/reply subjects when non-nil.
	NATS *nats.Conn
	// HTTP receives the REST routes when non-nil.
	HTTP      chi.Router
	RateLimit rate.Limit
	RateBurst int
	// RequestTimeout bounds each NATS request; zero uses the handler default.
	RequestTimeout time.Duration
	Options        pointsservice.Options
}

// Module represents the points module.
type Module struct {
	Service    pointsservice.Service
	Handlers   *pointshandlers.PointsHandlers
	NATSRouter *pointsrouter.Router
	logger     *slog.Logger
	cancelFunc context.CancelFunc
}

// NewModule creates and wires the points module.
func NewModule(ctx context.Context, deps Deps) (*Module, error) {
	if deps.Observability == nil {
		return nil, fmt.Errorf("points module requires observability")
	}
	logger := deps.Observability.Logger.With(slog.String("module", "points"))
	tracer := deps.Observability.Tracer

	logger.InfoContext(ctx, "points.NewModule initializing")

	metrics := pointsmetrics.NewNoop()
	if deps.Observability.Registry != nil {
		metrics = pointsmetrics.NewPrometheus(deps.Observability.Registry, "points")
	}

	// 1. Repository and platform adapters
	repo := pointsdb.NewRepository(deps.DB)
	directory := pointsadapters.NewDirectory(deps.DB)
	attendance := pointsadapters.NewAttendance(deps.DB)
	settings := pointsadapters.NewSettings(deps.DB)

	// 2. Service
	var events pointsservice.EventPublisher
	if deps.EventBus != nil {
		events = deps.EventBus
	}
	service := pointsservice.NewPointsService(
		repo, directory, attendance, settings, events,
		logger, metrics, tracer, deps.DB, deps.Options,
	)

	// 3. Handlers and transports
	handlers := pointshandlers.NewPointsHandlers(service, logger, tracer, deps.RequestTimeout)

	if deps.HTTP != nil {
		var limiter *pointshandlers.IPRateLimiter
		if deps.RateLimit > 0 {
			limiter = pointshandlers.NewIPRateLimiter(deps.RateLimit, deps.RateBurst)
		}
		pointsrouter.RegisterHTTPRoutes(deps.HTTP, handlers, limiter)
	}

	var natsRouter *pointsrouter.Router
	if deps.NATS != nil {
		natsRouter = pointsrouter.NewRouter(handlers, deps.NATS, logger)
	}

	// 4. Audit consumer
	if deps.MessageRouter != nil && deps.EventBus != nil {
		pointsaudit.NewConsumer(logger).Register(deps.MessageRouter, deps.EventBus.Subscriber())
	}

	return &Module{
		Service:    service,
		Handlers:   handlers,
		NATSRouter: natsRouter,
		logger:     logger,
	}, nil
}

// Run subscribes the NATS routes and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) error {
	if wg != nil {
		defer wg.Done()
	}
	m.logger.InfoContext(ctx, "Starting points module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if m.NATSRouter != nil {
		if err := m.NATSRouter.Start(); err != nil {
			return fmt.Errorf("failed to start points NATS router: %w", err)
		}
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Points module goroutine stopped")
	return nil
}

// Close stops the module's subscriptions.
func (m *Module) Close() error {
	m.logger.Info("Stopping points module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if m.NATSRouter != nil {
		if err := m.NATSRouter.Stop(); err != nil {
			m.logger.Error("Error stopping points NATS router", slog.Any("error", err))
			return fmt.Errorf("error stopping points NATS router: %w", err)
		}
	}

	m.logger.Info("Points module stopped")
	return nil
}
