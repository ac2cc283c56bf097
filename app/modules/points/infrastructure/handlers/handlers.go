package pointshandlers

import (
	"log/slog"
	"net/http"
	"time"

	pointsservice "github.com/Black-And-White-Club/points-ledger/app/modules/points/application"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handlers exposes the points service over HTTP and NATS request/reply.
type Handlers interface {
	HandleApplyBatch(w http.ResponseWriter, r *http.Request)
	HandleLeaderboard(w http.ResponseWriter, r *http.Request)
	HandleReport(w http.ResponseWriter, r *http.Request)
	HandleTotals(w http.ResponseWriter, r *http.Request)
	HandleGroupDetail(w http.ResponseWriter, r *http.Request)
	HandlePointHistory(w http.ResponseWriter, r *http.Request)
	HandleAwardHonors(w http.ResponseWriter, r *http.Request)
	HandleListHonors(w http.ResponseWriter, r *http.Request)
	HandleUpdateHonor(w http.ResponseWriter, r *http.Request)
	HandleDeleteHonor(w http.ResponseWriter, r *http.Request)

	HandleNATSApplyBatch(msg *nats.Msg)
	HandleNATSAwardHonors(msg *nats.Msg)
	HandleNATSUpdateHonor(msg *nats.Msg)
	HandleNATSDeleteHonor(msg *nats.Msg)
	HandleNATSLeaderboard(msg *nats.Msg)
}

// DefaultRequestTimeout bounds a NATS request when no timeout is configured.
const DefaultRequestTimeout = 10 * time.Second

// PointsHandlers implements the Handlers interface.
type PointsHandlers struct {
	service        pointsservice.Service
	logger         *slog.Logger
	tracer         trace.Tracer
	requestTimeout time.Duration
}

// NewPointsHandlers creates a new PointsHandlers instance. NATS requests are
// cancelled after requestTimeout, or DefaultRequestTimeout when it is not positive.
func NewPointsHandlers(
	service pointsservice.Service,
	logger *slog.Logger,
	tracer trace.Tracer,
	requestTimeout time.Duration,
) *PointsHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("points")
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &PointsHandlers{
		service:        service,
		logger:         logger,
		tracer:         tracer,
		requestTimeout: requestTimeout,
	}
}

var _ Handlers = (*PointsHandlers)(nil)
