package pointsmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating honors and points tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS honors (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL,
					participant_id BIGINT NOT NULL,
					date DATE NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					created_by VARCHAR(255) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_by VARCHAR(255),
					updated_at TIMESTAMPTZ
				);
				CREATE UNIQUE INDEX IF NOT EXISTS uq_honors_org_participant_date
					ON honors (organization_id, participant_id, date);
			`); err != nil {
				return fmt.Errorf("failed to create honors table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS points (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL,
					participant_id BIGINT,
					group_id BIGINT,
					value INTEGER NOT NULL,
					effective_date DATE NOT NULL,
					honor_id BIGINT REFERENCES honors(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT points_target_present CHECK (participant_id IS NOT NULL OR group_id IS NOT NULL)
				);
			`); err != nil {
				return fmt.Errorf("failed to create points table: %w", err)
			}

			fmt.Println("honors and points tables created successfully!")
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping points and honors tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS points;`); err != nil {
				return fmt.Errorf("failed to drop points table: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS honors;`); err != nil {
				return fmt.Errorf("failed to drop honors table: %w", err)
			}
			return nil
		})
	})
}
