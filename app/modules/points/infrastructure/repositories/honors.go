package pointsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/uptrace/bun"
)

// FindHonors looks up existing honors for the given (participant, date) pairs.
func (r *Impl) FindHonors(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, keys []HonorKey) (map[HonorKey]pointsdomain.HonorID, error) {
	found := make(map[HonorKey]pointsdomain.HonorID)
	if len(keys) == 0 {
		return found, nil
	}
	db = r.resolveDB(db)

	wanted := make(map[HonorKey]struct{}, len(keys))
	participantSet := make(map[pointsdomain.ParticipantID]struct{})
	dateSet := make(map[string]struct{})
	for _, k := range keys {
		wanted[k] = struct{}{}
		participantSet[k.ParticipantID] = struct{}{}
		dateSet[k.Date] = struct{}{}
	}
	participants := make([]pointsdomain.ParticipantID, 0, len(participantSet))
	for id := range participantSet {
		participants = append(participants, id)
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}

	for _, chunk := range chunks(participants, inChunk) {
		var honors []Honor
		err := db.NewSelect().
			Model(&honors).
			Column("h.id", "h.participant_id", "h.date").
			Where("h.organization_id = ?", orgID).
			Where("h.participant_id IN (?)", bun.In(chunk)).
			Where("h.date IN (?)", bun.In(dates)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("pointsdb.FindHonors: %w", err)
		}
		for _, h := range honors {
			k := HonorKey{ParticipantID: h.ParticipantID, Date: pointsdomain.FormatDate(h.Date)}
			if _, ok := wanted[k]; ok {
				found[k] = h.ID
			}
		}
	}
	return found, nil
}

type insertedHonor struct {
	ID            pointsdomain.HonorID       `bun:"id"`
	ParticipantID pointsdomain.ParticipantID `bun:"participant_id"`
	Date          time.Time                  `bun:"date"`
	CreatedAt     time.Time                  `bun:"created_at"`
}

// InsertHonors inserts with ON CONFLICT DO NOTHING against the
// (organization_id, participant_id, date) unique index. Rows lost to a
// concurrent writer are simply absent from the result.
func (r *Impl) InsertHonors(ctx context.Context, db bun.IDB, honors []*Honor) ([]*Honor, error) {
	if len(honors) == 0 {
		return nil, nil
	}
	db = r.resolveDB(db)

	byKey := make(map[HonorKey]*Honor, len(honors))
	for _, h := range honors {
		byKey[HonorKey{ParticipantID: h.ParticipantID, Date: pointsdomain.FormatDate(h.Date)}] = h
	}

	var inserted []*Honor
	err := bulkInsert(ctx, db, honors, func(ctx context.Context, q *bun.InsertQuery) error {
		// RETURNING only yields inserted rows, so they are scanned into a
		// separate slice and matched back by key.
		var rows []insertedHonor
		if err := q.
			On("CONFLICT (organization_id, participant_id, date) DO NOTHING").
			Returning("id, participant_id, date, created_at").
			Scan(ctx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		for _, row := range rows {
			h, ok := byKey[HonorKey{ParticipantID: row.ParticipantID, Date: pointsdomain.FormatDate(row.Date)}]
			if !ok {
				continue
			}
			h.ID = row.ID
			h.CreatedAt = row.CreatedAt
			inserted = append(inserted, h)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pointsdb.InsertHonors: %w", err)
	}
	return inserted, nil
}

// GetHonor loads an honor scoped to the organization.
func (r *Impl) GetHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) (*Honor, error) {
	db = r.resolveDB(db)
	honor := new(Honor)
	err := db.NewSelect().
		Model(honor).
		Where("h.id = ?", honorID).
		Where("h.organization_id = ?", orgID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pointsdb.GetHonor: %w", err)
	}
	return honor, nil
}

// UpdateHonor writes columns of honor, matched by id and organization.
func (r *Impl) UpdateHonor(ctx context.Context, db bun.IDB, honor *Honor, columns ...string) error {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model(honor).
		WherePK().
		Where("h.organization_id = ?", honor.OrganizationID)
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("pointsdb.UpdateHonor: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RedateEntriesForHonor moves the honor's ledger rows to the honor's date.
func (r *Impl) RedateEntriesForHonor(ctx context.Context, db bun.IDB, honor *Honor) (int, error) {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*PointEntry)(nil)).
		Set("effective_date = ?", pointsdomain.FormatDate(honor.Date)).
		Where("p.organization_id = ?", honor.OrganizationID).
		Where("p.honor_id = ?", honor.ID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("pointsdb.RedateEntriesForHonor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pointsdb.RedateEntriesForHonor: %w", err)
	}
	return int(n), nil
}

// DeleteEntriesForHonor removes the honor's ledger rows.
func (r *Impl) DeleteEntriesForHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) (int, int, error) {
	db = r.resolveDB(db)
	var values []int
	err := db.NewDelete().
		Model((*PointEntry)(nil)).
		Where("p.organization_id = ?", orgID).
		Where("p.honor_id = ?", honorID).
		Returning("value").
		Scan(ctx, &values)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("pointsdb.DeleteEntriesForHonor: %w", err)
	}
	total := 0
	for _, v := range values {
		total += v
	}
	return len(values), total, nil
}

// DeleteHonor removes the honor row itself.
func (r *Impl) DeleteHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) error {
	db = r.resolveDB(db)
	res, err := db.NewDelete().
		Model((*Honor)(nil)).
		Where("h.id = ?", honorID).
		Where("h.organization_id = ?", orgID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pointsdb.DeleteHonor: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHonors returns honors newest first, optionally filtered.
func (r *Impl) ListHonors(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, filter pointsdomain.HonorFilter) ([]Honor, error) {
	db = r.resolveDB(db)
	var honors []Honor
	q := db.NewSelect().
		Model(&honors).
		Where("h.organization_id = ?", orgID)
	if filter.ParticipantID != nil {
		q = q.Where("h.participant_id = ?", *filter.ParticipantID)
	}
	if filter.From != "" {
		q = q.Where("h.date >= ?", filter.From)
	}
	if filter.To != "" {
		q = q.Where("h.date <= ?", filter.To)
	}
	q = q.OrderExpr("h.date DESC, h.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("pointsdb.ListHonors: %w", err)
	}
	return honors, nil
}
