package pointsdb

import (
	"encoding/json"
	"time"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/uptrace/bun"
)

// PointEntry is one immutable ledger row. At least one of ParticipantID and
// GroupID is set; rows with only GroupID are group-level tallies.
type PointEntry struct {
	bun.BaseModel `bun:"table:points,alias:p"`

	ID             int64                       `bun:"id,pk,autoincrement"`
	OrganizationID pointsdomain.OrganizationID `bun:"organization_id,notnull"`
	ParticipantID  *pointsdomain.ParticipantID `bun:"participant_id"`
	GroupID        *pointsdomain.GroupID       `bun:"group_id"`
	Value          int                         `bun:"value,notnull"`
	EffectiveDate  time.Time                   `bun:"effective_date,type:date,notnull"`
	HonorID        *pointsdomain.HonorID       `bun:"honor_id"`
	CreatedAt      time.Time                   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Honor is unique per (organization_id, participant_id, date).
type Honor struct {
	bun.BaseModel `bun:"table:honors,alias:h"`

	ID             pointsdomain.HonorID        `bun:"id,pk,autoincrement"`
	OrganizationID pointsdomain.OrganizationID `bun:"organization_id,notnull"`
	ParticipantID  pointsdomain.ParticipantID  `bun:"participant_id,notnull"`
	Date           time.Time                   `bun:"date,type:date,notnull"`
	Reason         string                      `bun:"reason,notnull"`
	CreatedBy      pointsdomain.ActorID        `bun:"created_by,notnull"`
	CreatedAt      time.Time                   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedBy      *pointsdomain.ActorID       `bun:"updated_by"`
	UpdatedAt      time.Time                   `bun:"updated_at,nullzero"`
}

// HonorKey identifies the at-most-one honor per participant and day.
type HonorKey struct {
	ParticipantID pointsdomain.ParticipantID
	Date          string
}

// TotalRow is an aggregated total for a participant or group.
type TotalRow struct {
	ID          int64  `bun:"id"`
	Name        string `bun:"name"`
	TotalPoints int    `bun:"total_points"`
}

// MemberTotalRow is a participant total tagged with their group, if any.
type MemberTotalRow struct {
	ID          pointsdomain.ParticipantID `bun:"id"`
	Name        string                     `bun:"name"`
	GroupID     *pointsdomain.GroupID      `bun:"group_id"`
	TotalPoints int                        `bun:"total_points"`
}

// The models below map tables owned by other parts of the platform. This
// module only reads them.

type Participant struct {
	bun.BaseModel `bun:"table:participants,alias:pa"`

	ID        pointsdomain.ParticipantID `bun:"id,pk"`
	FirstName string                     `bun:"first_name,notnull"`
	LastName  string                     `bun:"last_name,notnull"`
}

type ParticipantOrganization struct {
	bun.BaseModel `bun:"table:participant_organizations,alias:po"`

	OrganizationID pointsdomain.OrganizationID `bun:"organization_id,pk"`
	ParticipantID  pointsdomain.ParticipantID  `bun:"participant_id,pk"`
}

type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID             pointsdomain.GroupID        `bun:"id,pk"`
	OrganizationID pointsdomain.OrganizationID `bun:"organization_id,notnull"`
	Name           string                      `bun:"name,notnull"`
}

// ParticipantGroup holds at most one group per participant and organization.
type ParticipantGroup struct {
	bun.BaseModel `bun:"table:participant_groups,alias:pg"`

	OrganizationID pointsdomain.OrganizationID `bun:"organization_id,pk"`
	ParticipantID  pointsdomain.ParticipantID  `bun:"participant_id,pk"`
	GroupID        pointsdomain.GroupID        `bun:"group_id,notnull"`
}

type AttendanceRecord struct {
	bun.BaseModel `bun:"table:attendance,alias:a"`

	OrganizationID pointsdomain.OrganizationID   `bun:"organization_id,pk"`
	ParticipantID  pointsdomain.ParticipantID    `bun:"participant_id,pk"`
	Date           time.Time                     `bun:"date,pk,type:date"`
	Status         pointsdomain.AttendanceStatus `bun:"status,notnull"`
}

type OrganizationSetting struct {
	bun.BaseModel `bun:"table:organization_settings,alias:os"`

	OrganizationID pointsdomain.OrganizationID `bun:"organization_id,pk"`
	SettingKey     string                      `bun:"setting_key,pk"`
	SettingValue   json.RawMessage             `bun:"setting_value,type:jsonb"`
}
