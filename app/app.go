package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Black-And-White-Club/points-ledger/app/eventbus"
	"github.com/Black-And-White-Club/points-ledger/app/modules/points"
	pointsservice "github.com/Black-And-White-Club/points-ledger/app/modules/points/application"
	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/Black-And-White-Club/points-ledger/app/shared/observability"
	"github.com/Black-And-White-Club/points-ledger/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/time/rate"
)

// App owns every long-lived resource of the service.
type App struct {
	Config        *config.Config
	Observability *observability.Observability
	DB            *bun.DB
	NATS          *nats.Conn
	EventBus      *eventbus.EventBus
	Router        *message.Router
	HTTPServer    *http.Server
	PointsModule  *points.Module

	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewApp connects to the backing services and wires the points module.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	obs, err := observability.New(ctx, observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		Version:        cfg.Observability.Version,
		Environment:    cfg.Observability.Environment,
		LogLevel:       cfg.Observability.LogLevel,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		SampleRate:     cfg.Observability.SampleRate,
	}, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	app := &App{Config: cfg, Observability: obs, logger: logger}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	sqldb.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	app.DB = bun.NewDB(sqldb, pgdialect.New())
	if err := app.DB.PingContext(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.NATS.Enabled {
		app.NATS, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Observability.ServiceName),
			nats.RetryOnFailedConnect(true),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
	}

	app.EventBus, err = eventbus.New(ctx, eventbus.Config{
		Transport:  cfg.Events.Transport,
		NATSURL:    cfg.NATS.URL,
		JetStream:  cfg.Events.JetStream,
		Stream:     cfg.Events.Stream,
		Subjects:   pointsdomain.Topics,
		QueueGroup: "points-audit",
	}, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}

	app.Router, err = message.NewRouter(message.RouterConfig{CloseTimeout: cfg.HTTP.ShutdownTimeout}, watermill.NewSlogLogger(logger))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create message router: %w", err)
	}
	app.Router.AddMiddleware(middleware.Recoverer)

	mux := chi.NewRouter()
	mux.Get("/healthz", app.handleHealth)
	if obs.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	}

	app.PointsModule, err = points.NewModule(ctx, points.Deps{
		Observability:  obs,
		DB:             app.DB,
		EventBus:       app.EventBus,
		MessageRouter:  app.Router,
		NATS:           app.NATS,
		HTTP:           mux,
		RateLimit:      rate.Limit(cfg.HTTP.RateLimit),
		RateBurst:      cfg.HTTP.RateBurst,
		RequestTimeout: cfg.NATS.RequestTimeout,
		Options: pointsservice.Options{
			MaxBatchSize: cfg.Points.MaxBatchSize,
			Defaults:     cfg.Points.Defaults,
		},
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize points module: %w", err)
	}

	app.HTTPServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return app, nil
}

// Run serves until ctx is canceled, then shuts everything down.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)

	go func() {
		if err := app.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("message router: %w", err)
		}
	}()
	select {
	case <-app.Router.Running():
	case err := <-errCh:
		return err
	}

	app.wg.Add(1)
	go func() {
		if err := app.PointsModule.Run(ctx, &app.wg); err != nil {
			errCh <- err
		}
	}()

	go func() {
		app.logger.Info("Starting HTTP server", attr.String("address", app.HTTPServer.Addr))
		if err := app.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Shutdown signal received")
	case runErr = <-errCh:
		app.logger.Error("Component failed, shutting down", attr.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := app.HTTPServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("HTTP server shutdown failed", attr.Error(err))
	}

	cancel()
	app.wg.Wait()
	return runErr
}

// Close releases every resource NewApp acquired. It is safe on a partially
// built App.
func (app *App) Close() error {
	var errs []error
	if app.PointsModule != nil {
		errs = append(errs, app.PointsModule.Close())
	}
	if app.Router != nil {
		errs = append(errs, app.Router.Close())
	}
	if app.EventBus != nil {
		errs = append(errs, app.EventBus.Close())
	}
	if app.NATS != nil {
		if err := app.NATS.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, app.Observability.Shutdown(ctx))

	return errors.Join(errs...)
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, body := http.StatusOK, "ok"
	if err := app.DB.PingContext(ctx); err != nil {
		app.logger.WarnContext(ctx, "Health check failed", attr.Error(err))
		status, body = http.StatusServiceUnavailable, "database unavailable"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
