// Package pointstest starts a disposable Postgres with the platform and
// points schemas for integration tests.
package pointstest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	platformmigrations "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/adapters/migrations"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	pointsmigrations "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"
)

var (
	once      sync.Once
	container *postgres.PostgresContainer
	shared    *bun.DB
	startErr  error
)

// DB returns the package-wide migrated database, truncated for this test.
// It skips under -short.
func DB(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	once.Do(func() {
		shared, startErr = start(context.Background())
	})
	if startErr != nil {
		t.Fatalf("failed to start postgres: %v", startErr)
	}
	if err := Reset(context.Background(), shared); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
	return shared
}

// Terminate stops the container. Call it from TestMain after m.Run.
func Terminate() {
	if shared != nil {
		_ = shared.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
}

func start(ctx context.Context) (*bun.DB, error) {
	var err error
	container, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pointsdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())

	for _, migrations := range []*migrate.Migrations{platformmigrations.Migrations, pointsmigrations.Migrations} {
		migrator := migrate.NewMigrator(db, migrations)
		if err := migrator.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to init migrations: %w", err)
		}
		if _, err := migrator.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return db, nil
}

// Reset empties every table and restarts identities.
func Reset(ctx context.Context, db bun.IDB) error {
	_, err := db.NewRaw(`
		TRUNCATE points, honors, participants, participant_organizations,
			groups, participant_groups, attendance, organization_settings
		RESTART IDENTITY CASCADE
	`).Exec(ctx)
	return err
}

// Fixture describes one organization's platform data.
type Fixture struct {
	OrganizationID pointsdomain.OrganizationID
	// Groups maps a group id to its name.
	Groups map[pointsdomain.GroupID]string
	// Members maps a participant id to its group; zero means unassigned.
	Members map[pointsdomain.ParticipantID]pointsdomain.GroupID
	// Names maps a participant id to first and last name.
	Names map[pointsdomain.ParticipantID][2]string
}

// Seed inserts f. Participants shared across fixtures are inserted once.
func Seed(ctx context.Context, db bun.IDB, f Fixture) error {
	for id, name := range f.Groups {
		g := &pointsdb.Group{ID: id, OrganizationID: f.OrganizationID, Name: name}
		if _, err := db.NewInsert().Model(g).Exec(ctx); err != nil {
			return fmt.Errorf("seed group %d: %w", id, err)
		}
	}
	for pid, gid := range f.Members {
		name := f.Names[pid]
		if name == [2]string{} {
			name = [2]string{"Participant", fmt.Sprint(pid)}
		}
		p := &pointsdb.Participant{ID: pid, FirstName: name[0], LastName: name[1]}
		if _, err := db.NewInsert().Model(p).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed participant %d: %w", pid, err)
		}
		po := &pointsdb.ParticipantOrganization{OrganizationID: f.OrganizationID, ParticipantID: pid}
		if _, err := db.NewInsert().Model(po).Exec(ctx); err != nil {
			return fmt.Errorf("seed membership %d: %w", pid, err)
		}
		if gid == 0 {
			continue
		}
		pg := &pointsdb.ParticipantGroup{OrganizationID: f.OrganizationID, ParticipantID: pid, GroupID: gid}
		if _, err := db.NewInsert().Model(pg).Exec(ctx); err != nil {
			return fmt.Errorf("seed group membership %d: %w", pid, err)
		}
	}
	return nil
}

// RecordAttendance inserts one attendance row.
func RecordAttendance(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, pid pointsdomain.ParticipantID, date string, status pointsdomain.AttendanceStatus) error {
	d, err := pointsdomain.ParseDate(date)
	if err != nil {
		return err
	}
	rec := &pointsdb.AttendanceRecord{OrganizationID: orgID, ParticipantID: pid, Date: d, Status: status}
	_, err = db.NewInsert().Model(rec).Exec(ctx)
	return err
}

// SetRules stores the point_system_rules setting for orgID.
func SetRules(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, rules string) error {
	s := &pointsdb.OrganizationSetting{OrganizationID: orgID, SettingKey: "point_system_rules", SettingValue: json.RawMessage(rules)}
	_, err := db.NewInsert().Model(s).Exec(ctx)
	return err
}
