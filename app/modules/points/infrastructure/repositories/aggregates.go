package pointsdb

import (
	"context"
	"fmt"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/uptrace/bun"
)

const participantName = "TRIM(CONCAT(pa.first_name, ' ', pa.last_name))"

// ParticipantTotals ranks every participant of the organization. Participants
// with no ledger rows are included with 0.
func (r *Impl) ParticipantTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]TotalRow, error) {
	db = r.resolveDB(db)
	var rows []TotalRow
	q := db.NewSelect().
		TableExpr("participant_organizations AS po").
		Join("JOIN participants AS pa ON pa.id = po.participant_id").
		Join("LEFT JOIN points AS p ON p.participant_id = po.participant_id AND p.organization_id = po.organization_id").
		ColumnExpr("po.participant_id AS id").
		ColumnExpr(participantName+" AS name").
		ColumnExpr("COALESCE(SUM(p.value), 0) AS total_points").
		Where("po.organization_id = ?", orgID).
		GroupExpr("po.participant_id, pa.first_name, pa.last_name").
		OrderExpr("total_points DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("pointsdb.ParticipantTotals: %w", err)
	}
	return rows, nil
}

// GroupTotals ranks every group of the organization by its group-level rows.
func (r *Impl) GroupTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]TotalRow, error) {
	db = r.resolveDB(db)
	var rows []TotalRow
	q := db.NewSelect().
		TableExpr("groups AS g").
		Join("LEFT JOIN points AS p ON p.group_id = g.id AND p.organization_id = g.organization_id AND p.participant_id IS NULL").
		ColumnExpr("g.id AS id").
		ColumnExpr("g.name AS name").
		ColumnExpr("COALESCE(SUM(p.value), 0) AS total_points").
		Where("g.organization_id = ?", orgID).
		GroupExpr("g.id, g.name").
		OrderExpr("total_points DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("pointsdb.GroupTotals: %w", err)
	}
	return rows, nil
}

// GroupTotal returns a single group's tally with its name.
func (r *Impl) GroupTotal(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*TotalRow, error) {
	db = r.resolveDB(db)
	var rows []TotalRow
	err := db.NewSelect().
		TableExpr("groups AS g").
		Join("LEFT JOIN points AS p ON p.group_id = g.id AND p.organization_id = g.organization_id AND p.participant_id IS NULL").
		ColumnExpr("g.id AS id").
		ColumnExpr("g.name AS name").
		ColumnExpr("COALESCE(SUM(p.value), 0) AS total_points").
		Where("g.organization_id = ?", orgID).
		Where("g.id = ?", groupID).
		GroupExpr("g.id, g.name").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("pointsdb.GroupTotal: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// MemberTotals returns participant totals tagged with their current group.
func (r *Impl) MemberTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID *pointsdomain.GroupID) ([]MemberTotalRow, error) {
	db = r.resolveDB(db)
	var rows []MemberTotalRow
	q := db.NewSelect().
		TableExpr("participant_organizations AS po").
		Join("JOIN participants AS pa ON pa.id = po.participant_id").
		Join("LEFT JOIN participant_groups AS pg ON pg.participant_id = po.participant_id AND pg.organization_id = po.organization_id").
		Join("LEFT JOIN points AS p ON p.participant_id = po.participant_id AND p.organization_id = po.organization_id").
		ColumnExpr("po.participant_id AS id").
		ColumnExpr(participantName+" AS name").
		ColumnExpr("pg.group_id AS group_id").
		ColumnExpr("COALESCE(SUM(p.value), 0) AS total_points").
		Where("po.organization_id = ?", orgID)
	if groupID != nil {
		q = q.Where("pg.group_id = ?", *groupID)
	}
	q = q.
		GroupExpr("po.participant_id, pa.first_name, pa.last_name, pg.group_id").
		OrderExpr("total_points DESC, id ASC")
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("pointsdb.MemberTotals: %w", err)
	}
	return rows, nil
}
