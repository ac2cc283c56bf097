package pointsrouter

import (
	"fmt"
	"log/slog"

	pointshandlers "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
)

const (
	ApplyBatchSubject  = "points.batch.apply.v1"
	AwardHonorsSubject = "points.honors.award.v1"
	UpdateHonorSubject = "points.honors.update.v1"
	DeleteHonorSubject = "points.honors.delete.v1"
	LeaderboardSubject = "points.leaderboard.get.v1"

	// QueueGroup load-balances requests across service instances.
	QueueGroup = "points"
)

// Subscriber is the part of *nats.Conn the router needs.
type Subscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Router manages NATS request/reply subscriptions for the points module.
type Router struct {
	handlers pointshandlers.Handlers
	nc       Subscriber
	logger   *slog.Logger
	subs     []*nats.Subscription
}

func NewRouter(handlers pointshandlers.Handlers, nc Subscriber, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: handlers,
		nc:       nc,
		logger:   logger,
	}
}

func (r *Router) routes() []struct {
	subject string
	handler nats.MsgHandler
} {
	return []struct {
		subject string
		handler nats.MsgHandler
	}{
		{ApplyBatchSubject, r.handlers.HandleNATSApplyBatch},
		{AwardHonorsSubject, r.handlers.HandleNATSAwardHonors},
		{UpdateHonorSubject, r.handlers.HandleNATSUpdateHonor},
		{DeleteHonorSubject, r.handlers.HandleNATSDeleteHonor},
		{LeaderboardSubject, r.handlers.HandleNATSLeaderboard},
	}
}

// Start subscribes to every points subject. On failure the subscriptions
// made so far are released.
func (r *Router) Start() error {
	for _, route := range r.routes() {
		sub, err := r.nc.QueueSubscribe(route.subject, QueueGroup, route.handler)
		if err != nil {
			_ = r.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", route.subject, err)
		}
		r.subs = append(r.subs, sub)
		r.logger.Info("Subscribed to points subject",
			slog.String("subject", route.subject),
			slog.String("queue_group", QueueGroup),
		)
	}
	return nil
}

// Stop unsubscribes from all subjects and returns the first error.
func (r *Router) Stop() error {
	var firstErr error
	for _, sub := range r.subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.subs = nil
	return firstErr
}

// RegisterHTTPRoutes mounts the points and honors routes on r. Write routes
// go through limiter when it is non-nil.
func RegisterHTTPRoutes(r chi.Router, h pointshandlers.Handlers, limiter *pointshandlers.IPRateLimiter) {
	r.Route("/api", func(r chi.Router) {
		r.Use(pointshandlers.CorrelationMiddleware)

		r.Get("/points/leaderboard", h.HandleLeaderboard)
		r.Get("/points/report", h.HandleReport)
		r.Get("/points/totals", h.HandleTotals)
		r.Get("/points/groups/{groupID}", h.HandleGroupDetail)
		r.Get("/points/participants/{participantID}/history", h.HandlePointHistory)
		r.Get("/honors", h.HandleListHonors)

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(pointshandlers.RateLimitMiddleware(limiter))
			}
			r.Post("/points/batch", h.HandleApplyBatch)
			r.Post("/honors", h.HandleAwardHonors)
			r.Patch("/honors/{honorID}", h.HandleUpdateHonor)
			r.Delete("/honors/{honorID}", h.HandleDeleteHonor)
		})
	})
}
