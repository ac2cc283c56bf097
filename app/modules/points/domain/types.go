package pointsdomain

import (
	"encoding/json"
	"time"
)

type (
	OrganizationID int64
	ParticipantID  int64
	GroupID        int64
	HonorID        int64
	// ActorID is the external user id of whoever triggered a write.
	ActorID string
)

// Scope is the explicit per-call context for a write or read.
type Scope struct {
	OrganizationID OrganizationID
	ActorID        ActorID
}

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date in DateLayout as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders t as a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

type MutationKind string

const (
	MutationKindGroup       MutationKind = "group"
	MutationKindParticipant MutationKind = "participant"
)

// AttendanceStatus values recorded by the attendance collaborator.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// EligibleStatuses are the statuses that keep a member in a dated fan-out.
var EligibleStatuses = []AttendanceStatus{AttendancePresent, AttendanceLate}

// Mutation is one entry of a point batch. Value is a pointer so a missing
// value can be told apart from an explicit zero.
type Mutation struct {
	Kind          MutationKind `json:"kind"`
	TargetID      int64        `json:"target_id"`
	Value         *int         `json:"value"`
	EffectiveDate string       `json:"effective_date,omitempty"`
}

type MemberTotal struct {
	ID          ParticipantID `json:"id"`
	TotalPoints int           `json:"total_points"`
}

// MutationResult is the outcome of one mutation. Group-only fields are zero
// for participant mutations and are omitted from JSON.
type MutationResult struct {
	Type                MutationKind
	ID                  int64
	TotalPoints         int
	MemberIDs           []ParticipantID
	MemberTotals        []MemberTotal
	SkippedCount        int
	SkippedParticipants []ParticipantID
	Date                string
}

type groupResultJSON struct {
	Type                MutationKind    `json:"type"`
	ID                  int64           `json:"id"`
	TotalPoints         int             `json:"total_points"`
	MemberIDs           []ParticipantID `json:"member_ids"`
	MemberTotals        []MemberTotal   `json:"member_totals"`
	SkippedCount        int             `json:"skipped_count"`
	SkippedParticipants []ParticipantID `json:"skipped_participants"`
	Date                string          `json:"date"`
}

type participantResultJSON struct {
	Type        MutationKind `json:"type"`
	ID          int64        `json:"id"`
	TotalPoints int          `json:"total_points"`
}

func (r MutationResult) MarshalJSON() ([]byte, error) {
	if r.Type != MutationKindGroup {
		return json.Marshal(participantResultJSON{Type: r.Type, ID: r.ID, TotalPoints: r.TotalPoints})
	}
	out := groupResultJSON(r)
	if out.MemberIDs == nil {
		out.MemberIDs = []ParticipantID{}
	}
	if out.MemberTotals == nil {
		out.MemberTotals = []MemberTotal{}
	}
	if out.SkippedParticipants == nil {
		out.SkippedParticipants = []ParticipantID{}
	}
	return json.Marshal(out)
}

func (r *MutationResult) UnmarshalJSON(data []byte) error {
	var in groupResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = MutationResult(in)
	return nil
}

type HonorRequest struct {
	ParticipantID ParticipantID `json:"participant_id"`
	Date          string        `json:"date"`
	Reason        string        `json:"reason"`
}

type HonorAction string

const (
	HonorActionAwarded        HonorAction = "awarded"
	HonorActionAlreadyAwarded HonorAction = "already_awarded"
)

type HonorAwardResult struct {
	ParticipantID ParticipantID `json:"participant_id"`
	Date          string        `json:"date"`
	Success       bool          `json:"success"`
	Action        HonorAction   `json:"action"`
	HonorID       *HonorID      `json:"honor_id,omitempty"`
	Points        *int          `json:"points,omitempty"`
}

// HonorPatch updates a honor; at least one field must be set.
type HonorPatch struct {
	Date   *string `json:"date,omitempty"`
	Reason *string `json:"reason,omitempty"`
}

type Honor struct {
	ID             HonorID        `json:"id"`
	OrganizationID OrganizationID `json:"organization_id"`
	ParticipantID  ParticipantID  `json:"participant_id"`
	Date           string         `json:"date"`
	Reason         string         `json:"reason"`
	CreatedBy      ActorID        `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedBy      *ActorID       `json:"updated_by,omitempty"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

type HonorUpdateResult struct {
	Honor         Honor `json:"honor"`
	PointsRedated int   `json:"points_redated"`
}

// HonorDeleteResult carries what an audit log line needs about a removal.
type HonorDeleteResult struct {
	HonorID       HonorID       `json:"honor_id"`
	ParticipantID ParticipantID `json:"participant_id"`
	Date          string        `json:"date"`
	PointsRemoved int           `json:"points_removed"`
	ValueRemoved  int           `json:"value_removed"`
}

type HonorFilter struct {
	ParticipantID *ParticipantID
	From          string
	To            string
	Limit         int
}

type LeaderboardScope string

const (
	LeaderboardScopeGroup      LeaderboardScope = "group"
	LeaderboardScopeIndividual LeaderboardScope = "individual"
)

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	TotalPoints int    `json:"total_points"`
}

type ParticipantTotal struct {
	ID          ParticipantID `json:"id"`
	Name        string        `json:"name"`
	TotalPoints int           `json:"total_points"`
}

// GroupDetail separates the group-level tally from the sum of its members'
// own totals.
type GroupDetail struct {
	ID           GroupID            `json:"id"`
	Name         string             `json:"name"`
	TotalPoints  int                `json:"total_points"`
	MemberPoints int                `json:"member_points"`
	Members      []ParticipantTotal `json:"members"`
}

type Report struct {
	OrganizationID OrganizationID     `json:"organization_id"`
	Groups         []GroupDetail      `json:"groups"`
	Unassigned     []ParticipantTotal `json:"unassigned"`
}

// TotalsTarget names exactly one of a participant or a group.
type TotalsTarget struct {
	ParticipantID *ParticipantID
	GroupID       *GroupID
}

type Totals struct {
	Type        MutationKind `json:"type"`
	ID          int64        `json:"id"`
	TotalPoints int          `json:"total_points"`
}

type PointEntry struct {
	ID            int64          `json:"id"`
	ParticipantID *ParticipantID `json:"participant_id,omitempty"`
	GroupID       *GroupID       `json:"group_id,omitempty"`
	Value         int            `json:"value"`
	EffectiveDate string         `json:"effective_date"`
	HonorID       *HonorID       `json:"honor_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
