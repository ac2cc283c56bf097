package pointsservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/Black-And-White-Club/points-ledger/app/shared/results"
	"github.com/uptrace/bun"
)

const (
	defaultHonorListLimit = 50
	maxHonorListLimit     = 500
)

type honorAwardResults = []pointsdomain.HonorAwardResult

// AwardHonors grants at most one honor per participant and date. Pairs that
// already exist, including ones inserted by a concurrent call, report
// already_awarded and write nothing.
func (s *PointsService) AwardHonors(ctx context.Context, scope pointsdomain.Scope, requests []pointsdomain.HonorRequest) ([]pointsdomain.HonorAwardResult, error) {
	awardTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[honorAwardResults, error], error) {
		return s.awardHonorsLogic(ctx, db, scope, requests)
	}

	result, err := withTelemetry(s, ctx, "AwardHonors", scope, fmt.Sprintf("honors=%d", len(requests)), func(ctx context.Context) (results.OperationResult[honorAwardResults, error], error) {
		if err := validateOrganization(scope.OrganizationID); err != nil {
			return results.FailureResult[honorAwardResults, error](err), nil
		}
		if err := pointsdomain.ValidateBatch("honors", requests, s.maxBatchSize); err != nil {
			return results.FailureResult[honorAwardResults, error](err), nil
		}
		return runInTx(s, ctx, awardTx)
	})
	out, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, scope, pointsdomain.TopicHonorsAwarded, pointsdomain.HonorsAwardedEvent{
		OrganizationID: scope.OrganizationID,
		ActorID:        scope.ActorID,
		Results:        out,
	})
	return out, nil
}

func (s *PointsService) awardHonorsLogic(ctx context.Context, db bun.IDB, scope pointsdomain.Scope, requests []pointsdomain.HonorRequest) (results.OperationResult[honorAwardResults, error], error) {
	orgID := scope.OrganizationID

	// Later duplicates of a pair inside one call resolve to the first.
	keys := make([]pointsdb.HonorKey, 0, len(requests))
	firstIndex := make(map[pointsdb.HonorKey]int, len(requests))
	participantIDs := make([]pointsdomain.ParticipantID, 0, len(requests))
	seenParticipant := make(map[pointsdomain.ParticipantID]struct{}, len(requests))
	for i, r := range requests {
		k := pointsdb.HonorKey{ParticipantID: r.ParticipantID, Date: r.Date}
		if _, ok := firstIndex[k]; !ok {
			firstIndex[k] = i
			keys = append(keys, k)
		}
		if _, ok := seenParticipant[r.ParticipantID]; !ok {
			seenParticipant[r.ParticipantID] = struct{}{}
			participantIDs = append(participantIDs, r.ParticipantID)
		}
	}

	members, err := s.directory.ParticipantsInOrganization(ctx, db, orgID, participantIDs)
	if err != nil {
		return results.OperationResult[honorAwardResults, error]{}, fmt.Errorf("failed to check participants: %w", err)
	}
	for _, pid := range participantIDs {
		if _, ok := members[pid]; !ok {
			return results.FailureResult[honorAwardResults, error](&pointsdomain.NotFoundError{Resource: "participant", ID: int64(pid)}), nil
		}
	}

	existing, err := s.repo.FindHonors(ctx, db, orgID, keys)
	if err != nil {
		return results.OperationResult[honorAwardResults, error]{}, fmt.Errorf("failed to load existing honors: %w", err)
	}
	groups, err := s.directory.GroupsOf(ctx, db, orgID, participantIDs)
	if err != nil {
		return results.OperationResult[honorAwardResults, error]{}, fmt.Errorf("failed to resolve groups: %w", err)
	}

	pending := make([]*pointsdb.Honor, 0, len(keys))
	for _, k := range keys {
		if _, ok := existing[k]; ok {
			continue
		}
		r := requests[firstIndex[k]]
		date, err := pointsdomain.ParseDate(r.Date)
		if err != nil {
			return results.FailureResult[honorAwardResults, error](pointsdomain.NewValidationError(fmt.Sprintf("honors[%d].date", firstIndex[k]), "must be a valid date")), nil
		}
		pending = append(pending, &pointsdb.Honor{
			OrganizationID: orgID,
			ParticipantID:  r.ParticipantID,
			Date:           date,
			Reason:         r.Reason,
			CreatedBy:      scope.ActorID,
		})
	}

	var (
		awarded = make(map[pointsdb.HonorKey]pointsdomain.HonorID)
		value   int
	)
	if len(pending) > 0 {
		value, err = s.policy.ResolveAwardValue(ctx, db, s.scopeLogger(scope), orgID, CategoryHonorAward)
		if err != nil {
			return results.OperationResult[honorAwardResults, error]{}, fmt.Errorf("failed to resolve award value: %w", err)
		}

		inserted, err := s.repo.InsertHonors(ctx, db, pending)
		if err != nil {
			return results.OperationResult[honorAwardResults, error]{}, fmt.Errorf("failed to insert honors: %w", err)
		}

		entries := make([]*pointsdb.PointEntry, 0, len(inserted))
		for _, h := range inserted {
			honorID := h.ID
			pid := h.ParticipantID
			entry := &pointsdb.PointEntry{
				OrganizationID: orgID,
				ParticipantID:  &pid,
				Value:          value,
				EffectiveDate:  h.Date,
				HonorID:        &honorID,
			}
			if g, ok := groups[pid]; ok {
				entry.GroupID = &g
			}
			entries = append(entries, entry)
			awarded[pointsdb.HonorKey{ParticipantID: pid, Date: pointsdomain.FormatDate(h.Date)}] = honorID
		}
		if err := s.repo.InsertEntries(ctx, db, entries); err != nil {
			return results.OperationResult[honorAwardResults, error]{}, fmt.Errorf("failed to insert honor entries: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordLedgerRowsWritten(ctx, "honor", len(entries))
		}
	}

	out := make(honorAwardResults, 0, len(requests))
	for i, r := range requests {
		k := pointsdb.HonorKey{ParticipantID: r.ParticipantID, Date: r.Date}
		res := pointsdomain.HonorAwardResult{
			ParticipantID: r.ParticipantID,
			Date:          r.Date,
			Success:       true,
			Action:        pointsdomain.HonorActionAlreadyAwarded,
		}
		if id, ok := awarded[k]; ok && firstIndex[k] == i {
			points := value
			res.Action = pointsdomain.HonorActionAwarded
			res.HonorID = &id
			res.Points = &points
		}
		if s.metrics != nil {
			s.metrics.RecordHonorOutcome(ctx, string(res.Action))
		}
		out = append(out, res)
	}

	return results.SuccessResult[honorAwardResults, error](out), nil
}

// UpdateHonor changes a honor's date or reason. A new date re-dates every
// ledger row of the honor in the same transaction.
func (s *PointsService) UpdateHonor(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID, patch pointsdomain.HonorPatch) (*pointsdomain.HonorUpdateResult, error) {
	updateTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*pointsdomain.HonorUpdateResult, error], error) {
		return s.updateHonorLogic(ctx, db, scope, honorID, patch)
	}

	result, err := withTelemetry(s, ctx, "UpdateHonor", scope, strconv.FormatInt(int64(honorID), 10), func(ctx context.Context) (results.OperationResult[*pointsdomain.HonorUpdateResult, error], error) {
		if err := validateHonorTarget(scope.OrganizationID, honorID); err != nil {
			return results.FailureResult[*pointsdomain.HonorUpdateResult, error](err), nil
		}
		if err := patch.Validate(); err != nil {
			return results.FailureResult[*pointsdomain.HonorUpdateResult, error](err), nil
		}
		return runInTx(s, ctx, updateTx)
	})
	out, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, scope, pointsdomain.TopicHonorUpdated, pointsdomain.HonorUpdatedEvent{
		OrganizationID: scope.OrganizationID,
		ActorID:        scope.ActorID,
		Result:         *out,
	})
	return out, nil
}

func (s *PointsService) updateHonorLogic(ctx context.Context, db bun.IDB, scope pointsdomain.Scope, honorID pointsdomain.HonorID, patch pointsdomain.HonorPatch) (results.OperationResult[*pointsdomain.HonorUpdateResult, error], error) {
	honor, err := s.repo.GetHonor(ctx, db, scope.OrganizationID, honorID)
	if err != nil {
		if errors.Is(err, pointsdb.ErrNotFound) {
			return results.FailureResult[*pointsdomain.HonorUpdateResult, error](&pointsdomain.NotFoundError{Resource: "honor", ID: int64(honorID)}), nil
		}
		return results.OperationResult[*pointsdomain.HonorUpdateResult, error]{}, fmt.Errorf("failed to load honor: %w", err)
	}

	columns := []string{"updated_by", "updated_at"}
	redate := false
	if patch.Date != nil && *patch.Date != pointsdomain.FormatDate(honor.Date) {
		date, err := pointsdomain.ParseDate(*patch.Date)
		if err != nil {
			return results.FailureResult[*pointsdomain.HonorUpdateResult, error](pointsdomain.NewValidationError("date", "must be a valid date")), nil
		}
		honor.Date = date
		columns = append(columns, "date")
		redate = true
	}
	if patch.Reason != nil {
		honor.Reason = *patch.Reason
		columns = append(columns, "reason")
	}
	actor := scope.ActorID
	honor.UpdatedBy = &actor
	honor.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateHonor(ctx, db, honor, columns...); err != nil {
		switch {
		case pointsdb.IsUniqueViolation(err):
			return results.FailureResult[*pointsdomain.HonorUpdateResult, error](&pointsdomain.ConflictError{
				Message: fmt.Sprintf("participant %d already has a honor on %s", honor.ParticipantID, pointsdomain.FormatDate(honor.Date)),
			}), nil
		case errors.Is(err, pointsdb.ErrNotFound):
			return results.FailureResult[*pointsdomain.HonorUpdateResult, error](&pointsdomain.NotFoundError{Resource: "honor", ID: int64(honorID)}), nil
		}
		return results.OperationResult[*pointsdomain.HonorUpdateResult, error]{}, fmt.Errorf("failed to update honor: %w", err)
	}

	redated := 0
	if redate {
		redated, err = s.repo.RedateEntriesForHonor(ctx, db, honor)
		if err != nil {
			return results.OperationResult[*pointsdomain.HonorUpdateResult, error]{}, fmt.Errorf("failed to re-date honor entries: %w", err)
		}
	}

	return results.SuccessResult[*pointsdomain.HonorUpdateResult, error](&pointsdomain.HonorUpdateResult{
		Honor:         toDomainHonor(honor),
		PointsRedated: redated,
	}), nil
}

// DeleteHonor removes a honor and every ledger row it created.
func (s *PointsService) DeleteHonor(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID) (*pointsdomain.HonorDeleteResult, error) {
	deleteTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*pointsdomain.HonorDeleteResult, error], error) {
		return s.deleteHonorLogic(ctx, db, scope, honorID)
	}

	result, err := withTelemetry(s, ctx, "DeleteHonor", scope, strconv.FormatInt(int64(honorID), 10), func(ctx context.Context) (results.OperationResult[*pointsdomain.HonorDeleteResult, error], error) {
		if err := validateHonorTarget(scope.OrganizationID, honorID); err != nil {
			return results.FailureResult[*pointsdomain.HonorDeleteResult, error](err), nil
		}
		return runInTx(s, ctx, deleteTx)
	})
	out, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}

	s.scopeLogger(scope).InfoContext(ctx, "Honor deleted",
		attr.ExtractCorrelationID(ctx),
		attr.Int64("honor_id", int64(out.HonorID)),
		attr.Int64("participant_id", int64(out.ParticipantID)),
		attr.String("date", out.Date),
		attr.Int("points_removed", out.PointsRemoved),
		attr.Int("value_removed", out.ValueRemoved),
	)
	s.publish(ctx, scope, pointsdomain.TopicHonorDeleted, pointsdomain.HonorDeletedEvent{
		OrganizationID: scope.OrganizationID,
		ActorID:        scope.ActorID,
		Result:         *out,
	})
	return out, nil
}

func (s *PointsService) deleteHonorLogic(ctx context.Context, db bun.IDB, scope pointsdomain.Scope, honorID pointsdomain.HonorID) (results.OperationResult[*pointsdomain.HonorDeleteResult, error], error) {
	notFound := results.FailureResult[*pointsdomain.HonorDeleteResult, error](&pointsdomain.NotFoundError{Resource: "honor", ID: int64(honorID)})

	honor, err := s.repo.GetHonor(ctx, db, scope.OrganizationID, honorID)
	if err != nil {
		if errors.Is(err, pointsdb.ErrNotFound) {
			return notFound, nil
		}
		return results.OperationResult[*pointsdomain.HonorDeleteResult, error]{}, fmt.Errorf("failed to load honor: %w", err)
	}

	rows, value, err := s.repo.DeleteEntriesForHonor(ctx, db, scope.OrganizationID, honorID)
	if err != nil {
		return results.OperationResult[*pointsdomain.HonorDeleteResult, error]{}, fmt.Errorf("failed to delete honor entries: %w", err)
	}
	if err := s.repo.DeleteHonor(ctx, db, scope.OrganizationID, honorID); err != nil {
		if errors.Is(err, pointsdb.ErrNotFound) {
			return notFound, nil
		}
		return results.OperationResult[*pointsdomain.HonorDeleteResult, error]{}, fmt.Errorf("failed to delete honor: %w", err)
	}

	return results.SuccessResult[*pointsdomain.HonorDeleteResult, error](&pointsdomain.HonorDeleteResult{
		HonorID:       honorID,
		ParticipantID: honor.ParticipantID,
		Date:          pointsdomain.FormatDate(honor.Date),
		PointsRemoved: rows,
		ValueRemoved:  value,
	}), nil
}

// ListHonors returns the organization's honors, newest first.
func (s *PointsService) ListHonors(ctx context.Context, orgID pointsdomain.OrganizationID, filter pointsdomain.HonorFilter) ([]pointsdomain.Honor, error) {
	scope := pointsdomain.Scope{OrganizationID: orgID}
	listTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[[]pointsdomain.Honor, error], error) {
		honors, err := s.repo.ListHonors(ctx, db, orgID, filter)
		if err != nil {
			return results.OperationResult[[]pointsdomain.Honor, error]{}, fmt.Errorf("failed to list honors: %w", err)
		}
		out := make([]pointsdomain.Honor, 0, len(honors))
		for i := range honors {
			out = append(out, toDomainHonor(&honors[i]))
		}
		return results.SuccessResult[[]pointsdomain.Honor, error](out), nil
	}

	result, err := withTelemetry(s, ctx, "ListHonors", scope, "", func(ctx context.Context) (results.OperationResult[[]pointsdomain.Honor, error], error) {
		if err := validateOrganization(orgID); err != nil {
			return results.FailureResult[[]pointsdomain.Honor, error](err), nil
		}
		if err := validateHonorFilter(&filter); err != nil {
			return results.FailureResult[[]pointsdomain.Honor, error](err), nil
		}
		return runInTx(s, ctx, listTx)
	})
	return unwrap(result, err)
}

func validateHonorTarget(orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) error {
	if err := validateOrganization(orgID); err != nil {
		return err
	}
	if honorID <= 0 {
		return pointsdomain.NewValidationError("honor_id", "must be a positive integer")
	}
	return nil
}

// validateHonorFilter checks dates and clamps the limit in place.
func validateHonorFilter(f *pointsdomain.HonorFilter) error {
	verr := &pointsdomain.ValidationError{Fields: map[string]string{}}
	for field, value := range map[string]string{"from": f.From, "to": f.To} {
		if value == "" {
			continue
		}
		if _, err := pointsdomain.ParseDate(value); err != nil {
			verr.Fields[field] = "must be a valid date"
		}
	}
	if f.From != "" && f.To != "" && len(verr.Fields) == 0 && f.From > f.To {
		verr.Fields["from"] = "must not be after to"
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	f.Limit = clampLimit(f.Limit, defaultHonorListLimit, maxHonorListLimit)
	return nil
}

func toDomainHonor(h *pointsdb.Honor) pointsdomain.Honor {
	out := pointsdomain.Honor{
		ID:             h.ID,
		OrganizationID: h.OrganizationID,
		ParticipantID:  h.ParticipantID,
		Date:           pointsdomain.FormatDate(h.Date),
		Reason:         h.Reason,
		CreatedBy:      h.CreatedBy,
		CreatedAt:      h.CreatedAt,
		UpdatedBy:      h.UpdatedBy,
	}
	if !h.UpdatedAt.IsZero() {
		t := h.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// clampLimit applies def to non-positive limits and caps the rest at ceiling.
func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, ceiling)
}
