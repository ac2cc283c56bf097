package pointshandlers

import (
	"context"

	pointsservice "github.com/Black-And-White-Club/points-ledger/app/modules/points/application"
	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
)

type FakePointsService struct {
	trace []string

	ApplyBatchFunc   func(ctx context.Context, scope pointsdomain.Scope, mutations []pointsdomain.Mutation) ([]pointsdomain.MutationResult, error)
	AwardHonorsFunc  func(ctx context.Context, scope pointsdomain.Scope, requests []pointsdomain.HonorRequest) ([]pointsdomain.HonorAwardResult, error)
	UpdateHonorFunc  func(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID, patch pointsdomain.HonorPatch) (*pointsdomain.HonorUpdateResult, error)
	DeleteHonorFunc  func(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID) (*pointsdomain.HonorDeleteResult, error)
	ListHonorsFunc   func(ctx context.Context, orgID pointsdomain.OrganizationID, filter pointsdomain.HonorFilter) ([]pointsdomain.Honor, error)
	LeaderboardFunc  func(ctx context.Context, orgID pointsdomain.OrganizationID, scope pointsdomain.LeaderboardScope, limit int) ([]pointsdomain.LeaderboardEntry, error)
	ReportFunc       func(ctx context.Context, orgID pointsdomain.OrganizationID) (*pointsdomain.Report, error)
	GroupDetailFunc  func(ctx context.Context, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*pointsdomain.GroupDetail, error)
	TotalsForFunc    func(ctx context.Context, orgID pointsdomain.OrganizationID, target pointsdomain.TotalsTarget) (*pointsdomain.Totals, error)
	PointHistoryFunc func(ctx context.Context, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]pointsdomain.PointEntry, error)
}

func NewFakePointsService() *FakePointsService {
	return &FakePointsService{trace: []string{}}
}

func (f *FakePointsService) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakePointsService) ApplyBatch(ctx context.Context, scope pointsdomain.Scope, mutations []pointsdomain.Mutation) ([]pointsdomain.MutationResult, error) {
	f.record("ApplyBatch")
	if f.ApplyBatchFunc != nil {
		return f.ApplyBatchFunc(ctx, scope, mutations)
	}
	return []pointsdomain.MutationResult{}, nil
}

func (f *FakePointsService) AwardHonors(ctx context.Context, scope pointsdomain.Scope, requests []pointsdomain.HonorRequest) ([]pointsdomain.HonorAwardResult, error) {
	f.record("AwardHonors")
	if f.AwardHonorsFunc != nil {
		return f.AwardHonorsFunc(ctx, scope, requests)
	}
	return []pointsdomain.HonorAwardResult{}, nil
}

func (f *FakePointsService) UpdateHonor(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID, patch pointsdomain.HonorPatch) (*pointsdomain.HonorUpdateResult, error) {
	f.record("UpdateHonor")
	if f.UpdateHonorFunc != nil {
		return f.UpdateHonorFunc(ctx, scope, honorID, patch)
	}
	return &pointsdomain.HonorUpdateResult{}, nil
}

func (f *FakePointsService) DeleteHonor(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID) (*pointsdomain.HonorDeleteResult, error) {
	f.record("DeleteHonor")
	if f.DeleteHonorFunc != nil {
		return f.DeleteHonorFunc(ctx, scope, honorID)
	}
	return &pointsdomain.HonorDeleteResult{HonorID: honorID}, nil
}

func (f *FakePointsService) ListHonors(ctx context.Context, orgID pointsdomain.OrganizationID, filter pointsdomain.HonorFilter) ([]pointsdomain.Honor, error) {
	f.record("ListHonors")
	if f.ListHonorsFunc != nil {
		return f.ListHonorsFunc(ctx, orgID, filter)
	}
	return []pointsdomain.Honor{}, nil
}

func (f *FakePointsService) Leaderboard(ctx context.Context, orgID pointsdomain.OrganizationID, scope pointsdomain.LeaderboardScope, limit int) ([]pointsdomain.LeaderboardEntry, error) {
	f.record("Leaderboard")
	if f.LeaderboardFunc != nil {
		return f.LeaderboardFunc(ctx, orgID, scope, limit)
	}
	return []pointsdomain.LeaderboardEntry{}, nil
}

func (f *FakePointsService) Report(ctx context.Context, orgID pointsdomain.OrganizationID) (*pointsdomain.Report, error) {
	f.record("Report")
	if f.ReportFunc != nil {
		return f.ReportFunc(ctx, orgID)
	}
	return &pointsdomain.Report{OrganizationID: orgID}, nil
}

func (f *FakePointsService) GroupDetail(ctx context.Context, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*pointsdomain.GroupDetail, error) {
	f.record("GroupDetail")
	if f.GroupDetailFunc != nil {
		return f.GroupDetailFunc(ctx, orgID, groupID)
	}
	return &pointsdomain.GroupDetail{ID: groupID}, nil
}

func (f *FakePointsService) TotalsFor(ctx context.Context, orgID pointsdomain.OrganizationID, target pointsdomain.TotalsTarget) (*pointsdomain.Totals, error) {
	f.record("TotalsFor")
	if f.TotalsForFunc != nil {
		return f.TotalsForFunc(ctx, orgID, target)
	}
	return &pointsdomain.Totals{}, nil
}

func (f *FakePointsService) PointHistory(ctx context.Context, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]pointsdomain.PointEntry, error) {
	f.record("PointHistory")
	if f.PointHistoryFunc != nil {
		return f.PointHistoryFunc(ctx, orgID, participantID, limit)
	}
	return []pointsdomain.PointEntry{}, nil
}

func (f *FakePointsService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ pointsservice.Service = (*FakePointsService)(nil)
