package platformmigrations

import (
	"context"
	"fmt"

	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/uptrace/bun"
)

var platformModels = []any{
	(*pointsdb.Participant)(nil),
	(*pointsdb.ParticipantOrganization)(nil),
	(*pointsdb.Group)(nil),
	(*pointsdb.ParticipantGroup)(nil),
	(*pointsdb.AttendanceRecord)(nil),
	(*pointsdb.OrganizationSetting)(nil),
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating platform tables...")
		for _, model := range platformModels {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create platform table: %w", err)
			}
		}
		_, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_attendance_org_date
			ON attendance (organization_id, date)
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create idx_attendance_org_date: %w", err)
		}
		fmt.Println("Platform tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping platform tables...")
		for i := len(platformModels) - 1; i >= 0; i-- {
			if _, err := db.NewDropTable().Model(platformModels[i]).IfExists().Cascade().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop platform table: %w", err)
			}
		}
		return nil
	})
}
