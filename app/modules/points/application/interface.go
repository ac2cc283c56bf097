package pointsservice

import (
	"context"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/uptrace/bun"
)

// Service is the points ledger and honor engine.
type Service interface {
	ApplyBatch(ctx context.Context, scope pointsdomain.Scope, mutations []pointsdomain.Mutation) ([]pointsdomain.MutationResult, error)

	AwardHonors(ctx context.Context, scope pointsdomain.Scope, requests []pointsdomain.HonorRequest) ([]pointsdomain.HonorAwardResult, error)
	UpdateHonor(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID, patch pointsdomain.HonorPatch) (*pointsdomain.HonorUpdateResult, error)
	DeleteHonor(ctx context.Context, scope pointsdomain.Scope, honorID pointsdomain.HonorID) (*pointsdomain.HonorDeleteResult, error)
	ListHonors(ctx context.Context, orgID pointsdomain.OrganizationID, filter pointsdomain.HonorFilter) ([]pointsdomain.Honor, error)

	Leaderboard(ctx context.Context, orgID pointsdomain.OrganizationID, scope pointsdomain.LeaderboardScope, limit int) ([]pointsdomain.LeaderboardEntry, error)
	Report(ctx context.Context, orgID pointsdomain.OrganizationID) (*pointsdomain.Report, error)
	GroupDetail(ctx context.Context, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*pointsdomain.GroupDetail, error)
	TotalsFor(ctx context.Context, orgID pointsdomain.OrganizationID, target pointsdomain.TotalsTarget) (*pointsdomain.Totals, error)
	PointHistory(ctx context.Context, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]pointsdomain.PointEntry, error)
}

// MembershipDirectory reads group membership owned by the platform.
type MembershipDirectory interface {
	GroupExists(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (bool, error)
	ListMembers(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) ([]pointsdomain.ParticipantID, error)
	GroupOf(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID) (*pointsdomain.GroupID, error)
	GroupsOf(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]pointsdomain.GroupID, error)
	ParticipantsInOrganization(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]struct{}, error)
}

// AttendanceOracle reads recorded attendance.
type AttendanceOracle interface {
	AnyAttendanceRecorded(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, date string) (bool, error)
	EligibleParticipants(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, date string, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]struct{}, error)
}

// SettingsStore reads per-organization point rules.
type SettingsStore interface {
	PointSystemRules(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID) ([]byte, bool, error)
}

// EventPublisher emits domain events after a write commits.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}
