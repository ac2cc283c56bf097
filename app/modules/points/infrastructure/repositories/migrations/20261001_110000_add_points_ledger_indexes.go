package pointsmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding points ledger indexes...")

		// Participant totals and history
		_, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_points_org_participant
			ON points (organization_id, participant_id, effective_date DESC)
			WHERE participant_id IS NOT NULL
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create idx_points_org_participant: %w", err)
		}

		// Group-level tallies
		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_points_org_group_tally
			ON points (organization_id, group_id)
			WHERE participant_id IS NULL
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create idx_points_org_group_tally: %w", err)
		}

		// Honor cascade (re-date, delete)
		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_points_honor
			ON points (honor_id)
			WHERE honor_id IS NOT NULL
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create idx_points_honor: %w", err)
		}

		fmt.Println("Points ledger indexes created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping points ledger indexes...")

		_, _ = db.NewRaw("DROP INDEX IF EXISTS idx_points_org_participant").Exec(ctx)
		_, _ = db.NewRaw("DROP INDEX IF EXISTS idx_points_org_group_tally").Exec(ctx)
		_, _ = db.NewRaw("DROP INDEX IF EXISTS idx_points_honor").Exec(ctx)

		fmt.Println("Points ledger indexes dropped successfully!")
		return nil
	})
}
