package pointsdb

import (
	"context"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/uptrace/bun"
)

// Repository is the ledger store. Every method takes the handle to run on
// (usually a transaction) and falls back to the repository's own connection
// when db is nil.
//
// Point entries are append-only: the only deletes are by honor id.
// Totals are always SUM(value) at call time.
//
// Error semantics:
//   - ErrNotFound: honor does not exist in the organization
//   - Other errors: infrastructure failures
type Repository interface {
	// --- Ledger ---

	// InsertEntries appends entries in chunked multi-row inserts.
	InsertEntries(ctx context.Context, db bun.IDB, entries []*PointEntry) error

	// SumForParticipant returns the participant's live total in the organization.
	SumForParticipant(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID) (int, error)

	// SumForParticipants returns live totals for a set of participants.
	// Participants with no entries are present with 0.
	SumForParticipants(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]int, error)

	// SumForGroup returns the group-level tally (rows with no participant).
	SumForGroup(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (int, error)

	// ListEntriesForParticipant returns the newest entries first.
	ListEntriesForParticipant(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]PointEntry, error)

	// --- Honors ---

	// FindHonors returns the ids of existing honors for the given pairs.
	FindHonors(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, keys []HonorKey) (map[HonorKey]pointsdomain.HonorID, error)

	// InsertHonors inserts honors, skipping pairs that already exist, and
	// returns only the rows actually inserted with their generated ids.
	InsertHonors(ctx context.Context, db bun.IDB, honors []*Honor) ([]*Honor, error)

	GetHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) (*Honor, error)

	// UpdateHonor writes the given columns of honor.
	UpdateHonor(ctx context.Context, db bun.IDB, honor *Honor, columns ...string) error

	// RedateEntriesForHonor moves every entry of the honor to honor.Date and
	// returns the number of rows changed.
	RedateEntriesForHonor(ctx context.Context, db bun.IDB, honor *Honor) (int, error)

	// DeleteEntriesForHonor removes every entry of the honor, returning the
	// row count and the sum of their values.
	DeleteEntriesForHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) (rows int, value int, err error)

	DeleteHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) error

	ListHonors(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, filter pointsdomain.HonorFilter) ([]Honor, error)

	// --- Aggregates ---

	// ParticipantTotals lists every participant of the organization with
	// their total, highest first. limit <= 0 means no limit.
	ParticipantTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]TotalRow, error)

	// GroupTotals lists every group of the organization with its
	// group-level tally, highest first. limit <= 0 means no limit.
	GroupTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]TotalRow, error)

	// GroupTotal returns one group's tally, or ErrNotFound if the group is
	// not in the organization.
	GroupTotal(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*TotalRow, error)

	// MemberTotals lists participant totals with their group. A nil groupID
	// returns every participant of the organization.
	MemberTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID *pointsdomain.GroupID) ([]MemberTotalRow, error)
}
