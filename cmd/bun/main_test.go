package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"
)

type fakeLock struct {
	lockErr   error
	unlockErr error
	trace     []string
}

func (f *fakeLock) Lock(ctx context.Context) error {
	f.trace = append(f.trace, "Lock")
	return f.lockErr
}

func (f *fakeLock) Unlock(ctx context.Context) error {
	f.trace = append(f.trace, "Unlock")
	return f.unlockErr
}

func TestRunLocked(t *testing.T) {
	errRun := errors.New("migration failed")
	errUnlock := errors.New("connection reset")

	tests := []struct {
		name      string
		lock      *fakeLock
		runErr    error
		wantTrace []string
		wantErrs  []error
		wantGroup bool
	}{
		{
			name:      "success releases the lock",
			lock:      &fakeLock{},
			wantTrace: []string{"Lock", "run", "Unlock"},
			wantGroup: true,
		},
		{
			name:      "lock failure skips the run",
			lock:      &fakeLock{lockErr: errors.New("locked")},
			wantTrace: []string{"Lock"},
			wantErrs:  []error{},
		},
		{
			name:      "run failure still releases the lock",
			lock:      &fakeLock{},
			runErr:    errRun,
			wantTrace: []string{"Lock", "run", "Unlock"},
			wantErrs:  []error{errRun},
		},
		{
			name:      "unlock failure is reported after a successful run",
			lock:      &fakeLock{unlockErr: errUnlock},
			wantTrace: []string{"Lock", "run", "Unlock"},
			wantErrs:  []error{errUnlock},
			wantGroup: true,
		},
		{
			name:      "run and unlock failures are both reported",
			lock:      &fakeLock{unlockErr: errUnlock},
			runErr:    errRun,
			wantTrace: []string{"Lock", "run", "Unlock"},
			wantErrs:  []error{errRun, errUnlock},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group, err := runLocked(context.Background(), tt.lock, "points", func(ctx context.Context) (*migrate.MigrationGroup, error) {
				tt.lock.trace = append(tt.lock.trace, "run")
				if tt.runErr != nil {
					return nil, tt.runErr
				}
				return &migrate.MigrationGroup{ID: 1}, nil
			})

			assert.Equal(t, tt.wantTrace, tt.lock.trace)
			assert.Equal(t, tt.wantGroup, group != nil)
			if tt.wantErrs == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErrs {
				assert.ErrorIs(t, err, want)
			}
			if errors.Is(err, errUnlock) {
				assert.ErrorContains(t, err, "bun_migration_locks_points")
			}
		})
	}
}
