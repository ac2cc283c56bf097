package pointshandlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/go-chi/chi/v5"
)

// Headers set by the gateway after organization resolution.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderActorID        = "X-Actor-ID"
	HeaderCorrelationID  = "X-Correlation-ID"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type batchRequest struct {
	Mutations []pointsdomain.Mutation `json:"mutations"`
}

type awardRequest struct {
	Honors []pointsdomain.HonorRequest `json:"honors"`
}

func (h *PointsHandlers) HandleApplyBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleApplyBatch")
	defer span.End()

	scope, err := writeScope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, pointsdomain.NewValidationError("mutations", "must be an array of mutations"))
		return
	}

	out, err := h.service.ApplyBatch(ctx, scope, req.Mutations)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleLeaderboard")
	defer span.End()

	orgID, err := organizationID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	scope := pointsdomain.LeaderboardScope(r.URL.Query().Get("scope"))

	out, err := h.service.Leaderboard(ctx, orgID, scope, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleReport")
	defer span.End()

	orgID, err := organizationID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.Report(ctx, orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleTotals(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleTotals")
	defer span.End()

	orgID, err := organizationID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var target pointsdomain.TotalsTarget
	if v, err := queryID(r, "participant_id"); err != nil {
		h.fail(w, r, err)
		return
	} else if v > 0 {
		pid := pointsdomain.ParticipantID(v)
		target.ParticipantID = &pid
	}
	if v, err := queryID(r, "group_id"); err != nil {
		h.fail(w, r, err)
		return
	} else if v > 0 {
		gid := pointsdomain.GroupID(v)
		target.GroupID = &gid
	}

	out, err := h.service.TotalsFor(ctx, orgID, target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleGroupDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleGroupDetail")
	defer span.End()

	orgID, err := organizationID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	groupID, err := pathID(r, "groupID", "group_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.GroupDetail(ctx, orgID, pointsdomain.GroupID(groupID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandlePointHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandlePointHistory")
	defer span.End()

	orgID, err := organizationID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	participantID, err := pathID(r, "participantID", "participant_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.PointHistory(ctx, orgID, pointsdomain.ParticipantID(participantID), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleAwardHonors(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleAwardHonors")
	defer span.End()

	scope, err := writeScope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req awardRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, pointsdomain.NewValidationError("honors", "must be an array of honors"))
		return
	}
	out, err := h.service.AwardHonors(ctx, scope, req.Honors)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleListHonors(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleListHonors")
	defer span.End()

	orgID, err := organizationID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := pointsdomain.HonorFilter{From: q.Get("from"), To: q.Get("to")}
	if v, err := queryID(r, "participant_id"); err != nil {
		h.fail(w, r, err)
		return
	} else if v > 0 {
		pid := pointsdomain.ParticipantID(v)
		filter.ParticipantID = &pid
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.service.ListHonors(ctx, orgID, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleUpdateHonor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleUpdateHonor")
	defer span.End()

	scope, err := writeScope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	honorID, err := pathID(r, "honorID", "honor_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var patch pointsdomain.HonorPatch
	if err := decodeBody(w, r, &patch); err != nil {
		h.fail(w, r, pointsdomain.NewValidationError("request", "must be a JSON object"))
		return
	}
	out, err := h.service.UpdateHonor(ctx, scope, pointsdomain.HonorID(honorID), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

func (h *PointsHandlers) HandleDeleteHonor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PointsHandlers.HandleDeleteHonor")
	defer span.End()

	scope, err := writeScope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	honorID, err := pathID(r, "honorID", "honor_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.DeleteHonor(ctx, scope, pointsdomain.HonorID(honorID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope(out))
}

// fail writes the error envelope. Internal errors are logged here since
// their cause is not returned to the caller.
func (h *PointsHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed",
			attr.ExtractCorrelationID(r.Context()),
			attr.String("path", r.URL.Path),
			attr.Error(err),
		)
	}
	writeJSON(w, status, errorEnvelope(err))
}

func organizationID(r *http.Request) (pointsdomain.OrganizationID, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderOrganizationID))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pointsdomain.NewValidationError("organization_id", "missing or invalid "+HeaderOrganizationID+" header")
	}
	return pointsdomain.OrganizationID(id), nil
}

// writeScope requires both the organization and the acting user.
func writeScope(r *http.Request) (pointsdomain.Scope, error) {
	orgID, err := organizationID(r)
	if err != nil {
		return pointsdomain.Scope{}, err
	}
	actor := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if actor == "" {
		return pointsdomain.Scope{}, pointsdomain.NewValidationError("actor_id", "missing "+HeaderActorID+" header")
	}
	return pointsdomain.Scope{OrganizationID: orgID, ActorID: pointsdomain.ActorID(actor)}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pointsdomain.NewValidationError(key, "must be an integer")
	}
	return v, nil
}

func queryID(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, pointsdomain.NewValidationError(key, "must be a positive integer")
	}
	return v, nil
}

func pathID(r *http.Request, param, field string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || v <= 0 {
		return 0, pointsdomain.NewValidationError(field, "must be a positive integer")
	}
	return v, nil
}
