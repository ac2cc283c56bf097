package pointsadapters

import (
	"context"
	"fmt"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// Attendance answers gating questions from recorded attendance.
type Attendance struct {
	db bun.IDB
}

func NewAttendance(db bun.IDB) *Attendance {
	return &Attendance{db: db}
}

func (a *Attendance) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return a.db
	}
	return db
}

// AnyAttendanceRecorded reports whether any participant has an attendance
// record for the organization on date.
func (a *Attendance) AnyAttendanceRecorded(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, date string) (bool, error) {
	db = a.resolveDB(db)
	exists, err := db.NewSelect().
		Model((*pointsdb.AttendanceRecord)(nil)).
		Where("a.organization_id = ?", orgID).
		Where("a.date = ?", date).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("pointsadapters.AnyAttendanceRecorded: %w", err)
	}
	return exists, nil
}

// EligibleParticipants returns the subset of participantIDs whose status on
// date qualifies for points.
func (a *Attendance) EligibleParticipants(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, date string, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]struct{}, error) {
	eligible := make(map[pointsdomain.ParticipantID]struct{})
	if len(participantIDs) == 0 {
		return eligible, nil
	}
	db = a.resolveDB(db)
	for start := 0; start < len(participantIDs); start += inChunk {
		chunk := participantIDs[start:min(start+inChunk, len(participantIDs))]
		var ids []pointsdomain.ParticipantID
		err := db.NewSelect().
			Model((*pointsdb.AttendanceRecord)(nil)).
			Column("a.participant_id").
			Where("a.organization_id = ?", orgID).
			Where("a.date = ?", date).
			Where("a.participant_id IN (?)", bun.In(chunk)).
			Where("a.status IN (?)", bun.In(pointsdomain.EligibleStatuses)).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("pointsadapters.EligibleParticipants: %w", err)
		}
		for _, id := range ids {
			eligible[id] = struct{}{}
		}
	}
	return eligible, nil
}
