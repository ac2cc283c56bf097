package pointsdb

import (
	"context"
	"fmt"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/uptrace/bun"
)

// InsertEntries appends ledger rows.
func (r *Impl) InsertEntries(ctx context.Context, db bun.IDB, entries []*PointEntry) error {
	if len(entries) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	err := bulkInsert(ctx, db, entries, func(ctx context.Context, q *bun.InsertQuery) error {
		_, err := q.Returning("id, created_at").Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("pointsdb.InsertEntries: %w", err)
	}
	return nil
}

// SumForParticipant totals every row attributed to the participant.
func (r *Impl) SumForParticipant(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID) (int, error) {
	db = r.resolveDB(db)
	var total int
	err := db.NewSelect().
		Model((*PointEntry)(nil)).
		ColumnExpr("COALESCE(SUM(p.value), 0)").
		Where("p.organization_id = ?", orgID).
		Where("p.participant_id = ?", participantID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("pointsdb.SumForParticipant: %w", err)
	}
	return total, nil
}

// SumForParticipants totals several participants in one query per chunk.
func (r *Impl) SumForParticipants(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]int, error) {
	db = r.resolveDB(db)
	totals := make(map[pointsdomain.ParticipantID]int, len(participantIDs))
	for _, id := range participantIDs {
		totals[id] = 0
	}
	for _, chunk := range chunks(participantIDs, inChunk) {
		var rows []struct {
			ID    pointsdomain.ParticipantID `bun:"id"`
			Total int                        `bun:"total"`
		}
		err := db.NewSelect().
			Model((*PointEntry)(nil)).
			ColumnExpr("p.participant_id AS id").
			ColumnExpr("SUM(p.value) AS total").
			Where("p.organization_id = ?", orgID).
			Where("p.participant_id IN (?)", bun.In(chunk)).
			GroupExpr("p.participant_id").
			Scan(ctx, &rows)
		if err != nil {
			return nil, fmt.Errorf("pointsdb.SumForParticipants: %w", err)
		}
		for _, row := range rows {
			totals[row.ID] = row.Total
		}
	}
	return totals, nil
}

// SumForGroup totals the group-level rows of a group. Member rows that
// carry the group id are not part of the group tally.
func (r *Impl) SumForGroup(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (int, error) {
	db = r.resolveDB(db)
	var total int
	err := db.NewSelect().
		Model((*PointEntry)(nil)).
		ColumnExpr("COALESCE(SUM(p.value), 0)").
		Where("p.organization_id = ?", orgID).
		Where("p.group_id = ?", groupID).
		Where("p.participant_id IS NULL").
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("pointsdb.SumForGroup: %w", err)
	}
	return total, nil
}

// ListEntriesForParticipant returns the participant's rows, newest first.
func (r *Impl) ListEntriesForParticipant(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]PointEntry, error) {
	db = r.resolveDB(db)
	var entries []PointEntry
	q := db.NewSelect().
		Model(&entries).
		Where("p.organization_id = ?", orgID).
		Where("p.participant_id = ?", participantID).
		OrderExpr("p.effective_date DESC, p.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("pointsdb.ListEntriesForParticipant: %w", err)
	}
	return entries, nil
}
