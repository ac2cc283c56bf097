package pointsadapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// PointSystemRulesKey is the organization setting holding point overrides.
const PointSystemRulesKey = "point_system_rules"

// Settings reads organization settings.
type Settings struct {
	db bun.IDB
}

func NewSettings(db bun.IDB) *Settings {
	return &Settings{db: db}
}

// PointSystemRules returns the raw JSON of the organization's point rules.
// found is false when the organization has not set any.
func (s *Settings) PointSystemRules(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID) ([]byte, bool, error) {
	if db == nil {
		db = s.db
	}
	setting := new(pointsdb.OrganizationSetting)
	err := db.NewSelect().
		Model(setting).
		Where("os.organization_id = ?", orgID).
		Where("os.setting_key = ?", PointSystemRulesKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pointsadapters.PointSystemRules: %w", err)
	}
	if len(setting.SettingValue) == 0 {
		return nil, false, nil
	}
	return setting.SettingValue, true, nil
}
