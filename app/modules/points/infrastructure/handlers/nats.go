package pointshandlers

import (
	"context"
	"encoding/json"
	"strings"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/nats-io/nats.go"
)

// RequestMeta is carried by every NATS request in place of HTTP headers.
type RequestMeta struct {
	OrganizationID int64  `json:"organization_id"`
	ActorID        string `json:"actor_id"`
	CorrelationID  string `json:"correlation_id"`
}

type natsBatchRequest struct {
	RequestMeta
	Mutations []pointsdomain.Mutation `json:"mutations"`
}

type natsAwardRequest struct {
	RequestMeta
	Honors []pointsdomain.HonorRequest `json:"honors"`
}

type natsUpdateHonorRequest struct {
	RequestMeta
	HonorID pointsdomain.HonorID `json:"honor_id"`
	pointsdomain.HonorPatch
}

type natsDeleteHonorRequest struct {
	RequestMeta
	HonorID pointsdomain.HonorID `json:"honor_id"`
}

type natsLeaderboardRequest struct {
	RequestMeta
	Scope pointsdomain.LeaderboardScope `json:"scope"`
	Limit int                           `json:"limit"`
}

func (h *PointsHandlers) HandleNATSApplyBatch(msg *nats.Msg) {
	ctx, cancel := h.requestContext()
	defer cancel()
	h.respond(msg, h.handleApplyBatch(ctx, msg.Data))
}

func (h *PointsHandlers) HandleNATSAwardHonors(msg *nats.Msg) {
	ctx, cancel := h.requestContext()
	defer cancel()
	h.respond(msg, h.handleAwardHonors(ctx, msg.Data))
}

func (h *PointsHandlers) HandleNATSUpdateHonor(msg *nats.Msg) {
	ctx, cancel := h.requestContext()
	defer cancel()
	h.respond(msg, h.handleUpdateHonor(ctx, msg.Data))
}

func (h *PointsHandlers) HandleNATSDeleteHonor(msg *nats.Msg) {
	ctx, cancel := h.requestContext()
	defer cancel()
	h.respond(msg, h.handleDeleteHonor(ctx, msg.Data))
}

func (h *PointsHandlers) HandleNATSLeaderboard(msg *nats.Msg) {
	ctx, cancel := h.requestContext()
	defer cancel()
	h.respond(msg, h.handleLeaderboard(ctx, msg.Data))
}

// requestContext bounds a single NATS request.
func (h *PointsHandlers) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.requestTimeout)
}

func (h *PointsHandlers) handleApplyBatch(ctx context.Context, data []byte) Envelope {
	ctx, span := h.tracer.Start(ctx, "PointsHandlers.HandleNATSApplyBatch")
	defer span.End()

	var req natsBatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.natsFailure(ctx, "mutations", err)
	}
	ctx, scope, err := req.scope(ctx, true)
	if err != nil {
		return h.natsError(ctx, err)
	}
	out, err := h.service.ApplyBatch(ctx, scope, req.Mutations)
	if err != nil {
		return h.natsError(ctx, err)
	}
	return successEnvelope(out)
}

func (h *PointsHandlers) handleAwardHonors(ctx context.Context, data []byte) Envelope {
	ctx, span := h.tracer.Start(ctx, "PointsHandlers.HandleNATSAwardHonors")
	defer span.End()

	var req natsAwardRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.natsFailure(ctx, "honors", err)
	}
	ctx, scope, err := req.scope(ctx, true)
	if err != nil {
		return h.natsError(ctx, err)
	}
	out, err := h.service.AwardHonors(ctx, scope, req.Honors)
	if err != nil {
		return h.natsError(ctx, err)
	}
	return successEnvelope(out)
}

func (h *PointsHandlers) handleUpdateHonor(ctx context.Context, data []byte) Envelope {
	ctx, span := h.tracer.Start(ctx, "PointsHandlers.HandleNATSUpdateHonor")
	defer span.End()

	var req natsUpdateHonorRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.natsFailure(ctx, "request", err)
	}
	ctx, scope, err := req.scope(ctx, true)
	if err != nil {
		return h.natsError(ctx, err)
	}
	out, err := h.service.UpdateHonor(ctx, scope, req.HonorID, req.HonorPatch)
	if err != nil {
		return h.natsError(ctx, err)
	}
	return successEnvelope(out)
}

func (h *PointsHandlers) handleDeleteHonor(ctx context.Context, data []byte) Envelope {
	ctx, span := h.tracer.Start(ctx, "PointsHandlers.HandleNATSDeleteHonor")
	defer span.End()

	var req natsDeleteHonorRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.natsFailure(ctx, "request", err)
	}
	ctx, scope, err := req.scope(ctx, true)
	if err != nil {
		return h.natsError(ctx, err)
	}
	out, err := h.service.DeleteHonor(ctx, scope, req.HonorID)
	if err != nil {
		return h.natsError(ctx, err)
	}
	return successEnvelope(out)
}

func (h *PointsHandlers) handleLeaderboard(ctx context.Context, data []byte) Envelope {
	ctx, span := h.tracer.Start(ctx, "PointsHandlers.HandleNATSLeaderboard")
	defer span.End()

	var req natsLeaderboardRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.natsFailure(ctx, "request", err)
	}
	ctx, scope, err := req.scope(ctx, false)
	if err != nil {
		return h.natsError(ctx, err)
	}
	out, err := h.service.Leaderboard(ctx, scope.OrganizationID, req.Scope, req.Limit)
	if err != nil {
		return h.natsError(ctx, err)
	}
	return successEnvelope(out)
}

// scope validates the request metadata and stores the correlation id on ctx.
func (m RequestMeta) scope(ctx context.Context, write bool) (context.Context, pointsdomain.Scope, error) {
	ctx = attr.WithCorrelationID(ctx, sanitizeCorrelationID(m.CorrelationID))
	if m.OrganizationID <= 0 {
		return ctx, pointsdomain.Scope{}, pointsdomain.NewValidationError("organization_id", "must be a positive integer")
	}
	actor := strings.TrimSpace(m.ActorID)
	if write && actor == "" {
		return ctx, pointsdomain.Scope{}, pointsdomain.NewValidationError("actor_id", "is required")
	}
	return ctx, pointsdomain.Scope{
		OrganizationID: pointsdomain.OrganizationID(m.OrganizationID),
		ActorID:        pointsdomain.ActorID(actor),
	}, nil
}

func (h *PointsHandlers) natsFailure(ctx context.Context, field string, err error) Envelope {
	h.logger.WarnContext(ctx, "Failed to unmarshal request", attr.Error(err))
	return errorEnvelope(pointsdomain.NewValidationError(field, "malformed request payload"))
}

func (h *PointsHandlers) natsError(ctx context.Context, err error) Envelope {
	if pointsdomain.Kind(err) == "internal" {
		h.logger.ErrorContext(ctx, "Request failed",
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
	}
	return errorEnvelope(err)
}

func (h *PointsHandlers) respond(msg *nats.Msg, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to marshal reply", attr.Error(err))
		return
	}
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(data); err != nil {
		h.logger.Error("Failed to send reply", attr.String("subject", msg.Subject), attr.Error(err))
	}
}

// sanitizeCorrelationID keeps at most 64 characters from [A-Za-z0-9_-].
func sanitizeCorrelationID(id string) string {
	var sb strings.Builder
	sb.Grow(min(len(id), 64))
	for _, r := range id {
		if sb.Len() == 64 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
