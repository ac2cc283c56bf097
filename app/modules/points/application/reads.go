package pointsservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/Black-And-White-Club/points-ledger/app/shared/results"
	"github.com/uptrace/bun"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultHistoryLimit     = 50
	maxHistoryLimit         = 500
)

// Leaderboard ranks groups or participants by total. Ties share a rank and
// the next rank skips ahead.
func (s *PointsService) Leaderboard(ctx context.Context, orgID pointsdomain.OrganizationID, scope pointsdomain.LeaderboardScope, limit int) ([]pointsdomain.LeaderboardEntry, error) {
	if scope == "" {
		scope = pointsdomain.LeaderboardScopeIndividual
	}
	limit = clampLimit(limit, defaultLeaderboardLimit, maxLeaderboardLimit)

	leaderboardTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[[]pointsdomain.LeaderboardEntry, error], error) {
		var (
			rows []pointsdb.TotalRow
			err  error
		)
		if scope == pointsdomain.LeaderboardScopeGroup {
			rows, err = s.repo.GroupTotals(ctx, db, orgID, limit)
		} else {
			rows, err = s.repo.ParticipantTotals(ctx, db, orgID, limit)
		}
		if err != nil {
			return results.OperationResult[[]pointsdomain.LeaderboardEntry, error]{}, fmt.Errorf("failed to load totals: %w", err)
		}
		return results.SuccessResult[[]pointsdomain.LeaderboardEntry, error](rankRows(rows)), nil
	}

	result, err := withTelemetry(s, ctx, "Leaderboard", pointsdomain.Scope{OrganizationID: orgID}, string(scope), func(ctx context.Context) (results.OperationResult[[]pointsdomain.LeaderboardEntry, error], error) {
		if err := validateOrganization(orgID); err != nil {
			return results.FailureResult[[]pointsdomain.LeaderboardEntry, error](err), nil
		}
		if scope != pointsdomain.LeaderboardScopeGroup && scope != pointsdomain.LeaderboardScopeIndividual {
			return results.FailureResult[[]pointsdomain.LeaderboardEntry, error](pointsdomain.NewValidationError("scope", "must be one of group, individual")), nil
		}
		return runInTx(s, ctx, leaderboardTx)
	})
	return unwrap(result, err)
}

// rankRows assigns competition ranks to rows sorted by total descending.
func rankRows(rows []pointsdb.TotalRow) []pointsdomain.LeaderboardEntry {
	out := make([]pointsdomain.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		rank := i + 1
		if i > 0 && row.TotalPoints == rows[i-1].TotalPoints {
			rank = out[i-1].Rank
		}
		out = append(out, pointsdomain.LeaderboardEntry{
			Rank:        rank,
			ID:          row.ID,
			Name:        row.Name,
			TotalPoints: row.TotalPoints,
		})
	}
	return out
}

// Report lists every group with its tally and members, plus participants
// without a group.
func (s *PointsService) Report(ctx context.Context, orgID pointsdomain.OrganizationID) (*pointsdomain.Report, error) {
	reportTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*pointsdomain.Report, error], error) {
		groups, err := s.repo.GroupTotals(ctx, db, orgID, 0)
		if err != nil {
			return results.OperationResult[*pointsdomain.Report, error]{}, fmt.Errorf("failed to load group totals: %w", err)
		}
		members, err := s.repo.MemberTotals(ctx, db, orgID, nil)
		if err != nil {
			return results.OperationResult[*pointsdomain.Report, error]{}, fmt.Errorf("failed to load member totals: %w", err)
		}

		byGroup := make(map[pointsdomain.GroupID][]pointsdb.MemberTotalRow, len(groups))
		report := &pointsdomain.Report{
			OrganizationID: orgID,
			Groups:         make([]pointsdomain.GroupDetail, 0, len(groups)),
			Unassigned:     []pointsdomain.ParticipantTotal{},
		}
		for _, m := range members {
			if m.GroupID == nil {
				report.Unassigned = append(report.Unassigned, toParticipantTotal(m))
				continue
			}
			byGroup[*m.GroupID] = append(byGroup[*m.GroupID], m)
		}
		for _, g := range groups {
			report.Groups = append(report.Groups, buildGroupDetail(g, byGroup[pointsdomain.GroupID(g.ID)]))
		}
		return results.SuccessResult[*pointsdomain.Report, error](report), nil
	}

	result, err := withTelemetry(s, ctx, "Report", pointsdomain.Scope{OrganizationID: orgID}, "", func(ctx context.Context) (results.OperationResult[*pointsdomain.Report, error], error) {
		if err := validateOrganization(orgID); err != nil {
			return results.FailureResult[*pointsdomain.Report, error](err), nil
		}
		return runInTx(s, ctx, reportTx)
	})
	return unwrap(result, err)
}

// GroupDetail returns one group's tally and its members' totals.
func (s *PointsService) GroupDetail(ctx context.Context, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*pointsdomain.GroupDetail, error) {
	detailTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*pointsdomain.GroupDetail, error], error) {
		group, err := s.repo.GroupTotal(ctx, db, orgID, groupID)
		if err != nil {
			if errors.Is(err, pointsdb.ErrNotFound) {
				return results.FailureResult[*pointsdomain.GroupDetail, error](&pointsdomain.NotFoundError{Resource: "group", ID: int64(groupID)}), nil
			}
			return results.OperationResult[*pointsdomain.GroupDetail, error]{}, fmt.Errorf("failed to load group total: %w", err)
		}
		members, err := s.repo.MemberTotals(ctx, db, orgID, &groupID)
		if err != nil {
			return results.OperationResult[*pointsdomain.GroupDetail, error]{}, fmt.Errorf("failed to load member totals: %w", err)
		}
		detail := buildGroupDetail(*group, members)
		return results.SuccessResult[*pointsdomain.GroupDetail, error](&detail), nil
	}

	result, err := withTelemetry(s, ctx, "GroupDetail", pointsdomain.Scope{OrganizationID: orgID}, strconv.FormatInt(int64(groupID), 10), func(ctx context.Context) (results.OperationResult[*pointsdomain.GroupDetail, error], error) {
		if err := validateOrganization(orgID); err != nil {
			return results.FailureResult[*pointsdomain.GroupDetail, error](err), nil
		}
		if groupID <= 0 {
			return results.FailureResult[*pointsdomain.GroupDetail, error](pointsdomain.NewValidationError("group_id", "must be a positive integer")), nil
		}
		return runInTx(s, ctx, detailTx)
	})
	return unwrap(result, err)
}

// TotalsFor returns the live total of exactly one participant or group.
func (s *PointsService) TotalsFor(ctx context.Context, orgID pointsdomain.OrganizationID, target pointsdomain.TotalsTarget) (*pointsdomain.Totals, error) {
	totalsTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*pointsdomain.Totals, error], error) {
		if target.ParticipantID != nil {
			pid := *target.ParticipantID
			members, err := s.directory.ParticipantsInOrganization(ctx, db, orgID, []pointsdomain.ParticipantID{pid})
			if err != nil {
				return results.OperationResult[*pointsdomain.Totals, error]{}, fmt.Errorf("failed to check participant: %w", err)
			}
			if _, ok := members[pid]; !ok {
				return results.FailureResult[*pointsdomain.Totals, error](&pointsdomain.NotFoundError{Resource: "participant", ID: int64(pid)}), nil
			}
			total, err := s.repo.SumForParticipant(ctx, db, orgID, pid)
			if err != nil {
				return results.OperationResult[*pointsdomain.Totals, error]{}, fmt.Errorf("failed to sum participant: %w", err)
			}
			return results.SuccessResult[*pointsdomain.Totals, error](&pointsdomain.Totals{
				Type:        pointsdomain.MutationKindParticipant,
				ID:          int64(pid),
				TotalPoints: total,
			}), nil
		}

		gid := *target.GroupID
		exists, err := s.directory.GroupExists(ctx, db, orgID, gid)
		if err != nil {
			return results.OperationResult[*pointsdomain.Totals, error]{}, fmt.Errorf("failed to check group: %w", err)
		}
		if !exists {
			return results.FailureResult[*pointsdomain.Totals, error](&pointsdomain.NotFoundError{Resource: "group", ID: int64(gid)}), nil
		}
		total, err := s.repo.SumForGroup(ctx, db, orgID, gid)
		if err != nil {
			return results.OperationResult[*pointsdomain.Totals, error]{}, fmt.Errorf("failed to sum group: %w", err)
		}
		return results.SuccessResult[*pointsdomain.Totals, error](&pointsdomain.Totals{
			Type:        pointsdomain.MutationKindGroup,
			ID:          int64(gid),
			TotalPoints: total,
		}), nil
	}

	result, err := withTelemetry(s, ctx, "TotalsFor", pointsdomain.Scope{OrganizationID: orgID}, "", func(ctx context.Context) (results.OperationResult[*pointsdomain.Totals, error], error) {
		if err := validateOrganization(orgID); err != nil {
			return results.FailureResult[*pointsdomain.Totals, error](err), nil
		}
		if (target.ParticipantID == nil) == (target.GroupID == nil) {
			return results.FailureResult[*pointsdomain.Totals, error](pointsdomain.NewValidationError("target", "exactly one of participant_id or group_id is required")), nil
		}
		return runInTx(s, ctx, totalsTx)
	})
	return unwrap(result, err)
}

// PointHistory returns a participant's latest ledger rows.
func (s *PointsService) PointHistory(ctx context.Context, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]pointsdomain.PointEntry, error) {
	limit = clampLimit(limit, defaultHistoryLimit, maxHistoryLimit)

	historyTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[[]pointsdomain.PointEntry, error], error) {
		members, err := s.directory.ParticipantsInOrganization(ctx, db, orgID, []pointsdomain.ParticipantID{participantID})
		if err != nil {
			return results.OperationResult[[]pointsdomain.PointEntry, error]{}, fmt.Errorf("failed to check participant: %w", err)
		}
		if _, ok := members[participantID]; !ok {
			return results.FailureResult[[]pointsdomain.PointEntry, error](&pointsdomain.NotFoundError{Resource: "participant", ID: int64(participantID)}), nil
		}
		entries, err := s.repo.ListEntriesForParticipant(ctx, db, orgID, participantID, limit)
		if err != nil {
			return results.OperationResult[[]pointsdomain.PointEntry, error]{}, fmt.Errorf("failed to list entries: %w", err)
		}
		out := make([]pointsdomain.PointEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, pointsdomain.PointEntry{
				ID:            e.ID,
				ParticipantID: e.ParticipantID,
				GroupID:       e.GroupID,
				Value:         e.Value,
				EffectiveDate: pointsdomain.FormatDate(e.EffectiveDate),
				HonorID:       e.HonorID,
				CreatedAt:     e.CreatedAt,
			})
		}
		return results.SuccessResult[[]pointsdomain.PointEntry, error](out), nil
	}

	result, err := withTelemetry(s, ctx, "PointHistory", pointsdomain.Scope{OrganizationID: orgID}, strconv.FormatInt(int64(participantID), 10), func(ctx context.Context) (results.OperationResult[[]pointsdomain.PointEntry, error], error) {
		if err := validateOrganization(orgID); err != nil {
			return results.FailureResult[[]pointsdomain.PointEntry, error](err), nil
		}
		if participantID <= 0 {
			return results.FailureResult[[]pointsdomain.PointEntry, error](pointsdomain.NewValidationError("participant_id", "must be a positive integer")), nil
		}
		return runInTx(s, ctx, historyTx)
	})
	return unwrap(result, err)
}

func buildGroupDetail(group pointsdb.TotalRow, members []pointsdb.MemberTotalRow) pointsdomain.GroupDetail {
	detail := pointsdomain.GroupDetail{
		ID:          pointsdomain.GroupID(group.ID),
		Name:        group.Name,
		TotalPoints: group.TotalPoints,
		Members:     make([]pointsdomain.ParticipantTotal, 0, len(members)),
	}
	for _, m := range members {
		detail.MemberPoints += m.TotalPoints
		detail.Members = append(detail.Members, toParticipantTotal(m))
	}
	return detail
}

func toParticipantTotal(m pointsdb.MemberTotalRow) pointsdomain.ParticipantTotal {
	return pointsdomain.ParticipantTotal{
		ID:          m.ID,
		Name:        m.Name,
		TotalPoints: m.TotalPoints,
	}
}
