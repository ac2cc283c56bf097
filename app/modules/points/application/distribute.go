package pointsservice

import (
	"context"
	"fmt"
	"log/slog"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/Black-And-White-Club/points-ledger/app/shared/results"
	"github.com/uptrace/bun"
)

type (
	mutationResults = []pointsdomain.MutationResult
	mutationOutcome = results.OperationResult[pointsdomain.MutationResult, error]
)

// ApplyBatch applies every mutation in one transaction. Any not-found target
// or storage error rolls back the whole batch.
func (s *PointsService) ApplyBatch(ctx context.Context, scope pointsdomain.Scope, mutations []pointsdomain.Mutation) ([]pointsdomain.MutationResult, error) {
	applyTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[mutationResults, error], error) {
		return s.applyBatchLogic(ctx, db, scope, mutations)
	}

	result, err := withTelemetry(s, ctx, "ApplyBatch", scope, fmt.Sprintf("mutations=%d", len(mutations)), func(ctx context.Context) (results.OperationResult[mutationResults, error], error) {
		if err := validateOrganization(scope.OrganizationID); err != nil {
			return results.FailureResult[mutationResults, error](err), nil
		}
		if err := pointsdomain.ValidateBatch("mutations", mutations, s.maxBatchSize); err != nil {
			return results.FailureResult[mutationResults, error](err), nil
		}
		return runInTx(s, ctx, applyTx)
	})
	out, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, scope, pointsdomain.TopicBatchApplied, pointsdomain.BatchAppliedEvent{
		OrganizationID: scope.OrganizationID,
		ActorID:        scope.ActorID,
		Results:        out,
	})
	return out, nil
}

func (s *PointsService) applyBatchLogic(ctx context.Context, db bun.IDB, scope pointsdomain.Scope, mutations []pointsdomain.Mutation) (results.OperationResult[mutationResults, error], error) {
	logger := s.scopeLogger(scope)
	today := s.today()
	out := make(mutationResults, 0, len(mutations))

	for i, m := range mutations {
		var (
			res mutationOutcome
			err error
		)
		switch m.Kind {
		case pointsdomain.MutationKindGroup:
			res, err = s.applyGroupMutation(ctx, db, logger, scope.OrganizationID, m, today)
		case pointsdomain.MutationKindParticipant:
			res, err = s.applyParticipantMutation(ctx, db, scope.OrganizationID, m, today)
		default:
			res = results.FailureResult[pointsdomain.MutationResult, error](
				pointsdomain.NewValidationError(fmt.Sprintf("mutations[%d].kind", i), "must be a valid value"))
		}
		if err != nil {
			return results.OperationResult[mutationResults, error]{}, fmt.Errorf("mutation %d: %w", i, err)
		}
		if res.IsFailure() {
			return results.FailureResult[mutationResults, error](*res.Failure), nil
		}
		out = append(out, *res.Success)
	}

	return results.SuccessResult[mutationResults, error](out), nil
}

// applyGroupMutation fans a group award out to its eligible members. The
// group-level row and member rows go in one bulk insert.
func (s *PointsService) applyGroupMutation(
	ctx context.Context,
	db bun.IDB,
	logger *slog.Logger,
	orgID pointsdomain.OrganizationID,
	m pointsdomain.Mutation,
	today string,
) (mutationOutcome, error) {
	groupID := pointsdomain.GroupID(m.TargetID)

	exists, err := s.directory.GroupExists(ctx, db, orgID, groupID)
	if err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to check group: %w", err)
	}
	if !exists {
		return results.FailureResult[pointsdomain.MutationResult, error](&pointsdomain.NotFoundError{Resource: "group", ID: m.TargetID}), nil
	}

	members, err := s.directory.ListMembers(ctx, db, orgID, groupID)
	if err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to list group members: %w", err)
	}

	date := m.EffectiveDate
	if date == "" {
		date = today
	}

	eligible := members
	skipped := []pointsdomain.ParticipantID{}
	if m.EffectiveDate != "" && len(members) > 0 {
		eligible, skipped, err = s.gateByAttendance(ctx, db, orgID, date, members)
		if err != nil {
			return mutationOutcome{}, err
		}
	}

	effective, err := pointsdomain.ParseDate(date)
	if err != nil {
		return results.FailureResult[pointsdomain.MutationResult, error](pointsdomain.NewValidationError("effective_date", "must be a valid date")), nil
	}

	entries := make([]*pointsdb.PointEntry, 0, len(eligible)+1)
	entries = append(entries, &pointsdb.PointEntry{
		OrganizationID: orgID,
		GroupID:        &groupID,
		Value:          *m.Value,
		EffectiveDate:  effective,
	})
	for _, pid := range eligible {
		entries = append(entries, &pointsdb.PointEntry{
			OrganizationID: orgID,
			ParticipantID:  &pid,
			GroupID:        &groupID,
			Value:          *m.Value,
			EffectiveDate:  effective,
		})
	}
	if err := s.repo.InsertEntries(ctx, db, entries); err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to insert group entries: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordLedgerRowsWritten(ctx, string(pointsdomain.MutationKindGroup), len(entries))
		s.metrics.RecordSkippedParticipants(ctx, len(skipped))
	}

	groupTotal, err := s.repo.SumForGroup(ctx, db, orgID, groupID)
	if err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to sum group: %w", err)
	}
	memberTotals, err := s.repo.SumForParticipants(ctx, db, orgID, eligible)
	if err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to sum members: %w", err)
	}

	totals := make([]pointsdomain.MemberTotal, 0, len(eligible))
	for _, pid := range eligible {
		totals = append(totals, pointsdomain.MemberTotal{ID: pid, TotalPoints: memberTotals[pid]})
	}

	if len(skipped) > 0 {
		logger.InfoContext(ctx, "Skipped members without qualifying attendance",
			attr.ExtractCorrelationID(ctx),
			attr.Int64("group_id", int64(groupID)),
			attr.String("date", date),
			attr.Int("skipped_count", len(skipped)),
		)
	}

	if members == nil {
		members = []pointsdomain.ParticipantID{}
	}
	return results.SuccessResult[pointsdomain.MutationResult, error](pointsdomain.MutationResult{
		Type:                pointsdomain.MutationKindGroup,
		ID:                  m.TargetID,
		TotalPoints:         groupTotal,
		MemberIDs:           members,
		MemberTotals:        totals,
		SkippedCount:        len(skipped),
		SkippedParticipants: skipped,
		Date:                date,
	}), nil
}

// gateByAttendance splits members into eligible and skipped for date. With
// no attendance recorded for the day, every member is eligible.
func (s *PointsService) gateByAttendance(
	ctx context.Context,
	db bun.IDB,
	orgID pointsdomain.OrganizationID,
	date string,
	members []pointsdomain.ParticipantID,
) ([]pointsdomain.ParticipantID, []pointsdomain.ParticipantID, error) {
	skipped := []pointsdomain.ParticipantID{}

	recorded, err := s.attendance.AnyAttendanceRecorded(ctx, db, orgID, date)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check attendance: %w", err)
	}
	if !recorded {
		return members, skipped, nil
	}

	allowed, err := s.attendance.EligibleParticipants(ctx, db, orgID, date, members)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	eligible := make([]pointsdomain.ParticipantID, 0, len(members))
	for _, pid := range members {
		if _, ok := allowed[pid]; ok {
			eligible = append(eligible, pid)
		} else {
			skipped = append(skipped, pid)
		}
	}
	return eligible, skipped, nil
}

// applyParticipantMutation records one row for a participant of the
// organization, tagged with their current group.
func (s *PointsService) applyParticipantMutation(
	ctx context.Context,
	db bun.IDB,
	orgID pointsdomain.OrganizationID,
	m pointsdomain.Mutation,
	today string,
) (mutationOutcome, error) {
	pid := pointsdomain.ParticipantID(m.TargetID)

	members, err := s.directory.ParticipantsInOrganization(ctx, db, orgID, []pointsdomain.ParticipantID{pid})
	if err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to check participant: %w", err)
	}
	if _, ok := members[pid]; !ok {
		return results.FailureResult[pointsdomain.MutationResult, error](&pointsdomain.NotFoundError{Resource: "participant", ID: m.TargetID}), nil
	}

	groupID, err := s.directory.GroupOf(ctx, db, orgID, pid)
	if err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to resolve participant group: %w", err)
	}

	date := m.EffectiveDate
	if date == "" {
		date = today
	}
	effective, err := pointsdomain.ParseDate(date)
	if err != nil {
		return results.FailureResult[pointsdomain.MutationResult, error](pointsdomain.NewValidationError("effective_date", "must be a valid date")), nil
	}

	entry := &pointsdb.PointEntry{
		OrganizationID: orgID,
		ParticipantID:  &pid,
		GroupID:        groupID,
		Value:          *m.Value,
		EffectiveDate:  effective,
	}
	if err := s.repo.InsertEntries(ctx, db, []*pointsdb.PointEntry{entry}); err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to insert participant entry: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordLedgerRowsWritten(ctx, string(pointsdomain.MutationKindParticipant), 1)
	}

	total, err := s.repo.SumForParticipant(ctx, db, orgID, pid)
	if err != nil {
		return mutationOutcome{}, fmt.Errorf("failed to sum participant: %w", err)
	}

	return results.SuccessResult[pointsdomain.MutationResult, error](pointsdomain.MutationResult{
		Type:        pointsdomain.MutationKindParticipant,
		ID:          m.TargetID,
		TotalPoints: total,
	}), nil
}
