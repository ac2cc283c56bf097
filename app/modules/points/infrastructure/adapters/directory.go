// Package pointsadapters implements the points module's read-only
// collaborators over tables owned by the rest of the platform.
package pointsadapters

import (
	"context"
	"fmt"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/uptrace/bun"
)

const inChunk = 5000

// Directory answers group membership questions.
type Directory struct {
	db bun.IDB
}

func NewDirectory(db bun.IDB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return d.db
	}
	return db
}

// GroupExists reports whether the group belongs to the organization.
func (d *Directory) GroupExists(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (bool, error) {
	db = d.resolveDB(db)
	exists, err := db.NewSelect().
		Model((*pointsdb.Group)(nil)).
		Where("g.id = ?", groupID).
		Where("g.organization_id = ?", orgID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("pointsadapters.GroupExists: %w", err)
	}
	return exists, nil
}

// ListMembers returns the group's roster ordered by participant id.
func (d *Directory) ListMembers(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) ([]pointsdomain.ParticipantID, error) {
	db = d.resolveDB(db)
	var ids []pointsdomain.ParticipantID
	err := db.NewSelect().
		Model((*pointsdb.ParticipantGroup)(nil)).
		Column("pg.participant_id").
		Where("pg.organization_id = ?", orgID).
		Where("pg.group_id = ?", groupID).
		OrderExpr("pg.participant_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("pointsadapters.ListMembers: %w", err)
	}
	return ids, nil
}

// GroupOf returns the participant's current group, or nil.
func (d *Directory) GroupOf(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID) (*pointsdomain.GroupID, error) {
	groups, err := d.GroupsOf(ctx, db, orgID, []pointsdomain.ParticipantID{participantID})
	if err != nil {
		return nil, err
	}
	if g, ok := groups[participantID]; ok {
		return &g, nil
	}
	return nil, nil
}

// GroupsOf resolves current groups for many participants. Participants
// without a group are absent from the map.
func (d *Directory) GroupsOf(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]pointsdomain.GroupID, error) {
	db = d.resolveDB(db)
	groups := make(map[pointsdomain.ParticipantID]pointsdomain.GroupID, len(participantIDs))
	for start := 0; start < len(participantIDs); start += inChunk {
		chunk := participantIDs[start:min(start+inChunk, len(participantIDs))]
		var rows []pointsdb.ParticipantGroup
		err := db.NewSelect().
			Model(&rows).
			Where("pg.organization_id = ?", orgID).
			Where("pg.participant_id IN (?)", bun.In(chunk)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("pointsadapters.GroupsOf: %w", err)
		}
		for _, row := range rows {
			groups[row.ParticipantID] = row.GroupID
		}
	}
	return groups, nil
}

// ParticipantsInOrganization returns the subset of participantIDs that
// belong to the organization.
func (d *Directory) ParticipantsInOrganization(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]struct{}, error) {
	db = d.resolveDB(db)
	members := make(map[pointsdomain.ParticipantID]struct{}, len(participantIDs))
	for start := 0; start < len(participantIDs); start += inChunk {
		chunk := participantIDs[start:min(start+inChunk, len(participantIDs))]
		var ids []pointsdomain.ParticipantID
		err := db.NewSelect().
			Model((*pointsdb.ParticipantOrganization)(nil)).
			Column("po.participant_id").
			Where("po.organization_id = ?", orgID).
			Where("po.participant_id IN (?)", bun.In(chunk)).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("pointsadapters.ParticipantsInOrganization: %w", err)
		}
		for _, id := range ids {
			members[id] = struct{}{}
		}
	}
	return members, nil
}
