package pointsservice

import (
	"context"
	"fmt"
	"strings"
	"testing"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func awardOne(t *testing.T, svc *PointsService, pid pointsdomain.ParticipantID, date string) pointsdomain.HonorAwardResult {
	t.Helper()
	out, err := svc.AwardHonors(context.Background(), testScope, []pointsdomain.HonorRequest{
		{ParticipantID: pid, Date: date, Reason: "Great teamwork"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func TestAwardHonors_AwardValue(t *testing.T) {
	tests := []struct {
		name       string
		rules      []byte
		defaults   map[string]int
		wantPoints int
	}{
		{name: "built-in default", wantPoints: 5},
		{name: "configured default", defaults: map[string]int{CategoryHonorAward: 3}, wantPoints: 3},
		{name: "organization override", rules: []byte(`{"honors":{"award":7}}`), defaults: map[string]int{CategoryHonorAward: 3}, wantPoints: 7},
		{name: "malformed override falls back", rules: []byte(`{"honors":`), wantPoints: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.settings.Rules = tt.rules
			svc := deps.service(Options{Defaults: tt.defaults})

			res := awardOne(t, svc, 1, "2024-01-10")

			assert.True(t, res.Success)
			assert.Equal(t, pointsdomain.HonorActionAwarded, res.Action)
			require.NotNil(t, res.HonorID)
			require.NotNil(t, res.Points)
			assert.Equal(t, tt.wantPoints, *res.Points)

			require.Len(t, deps.repo.Entries, 1)
			entry := deps.repo.Entries[0]
			assert.Equal(t, tt.wantPoints, entry.Value)
			require.NotNil(t, entry.HonorID)
			assert.Equal(t, *res.HonorID, *entry.HonorID)
			require.NotNil(t, entry.GroupID)
			assert.Equal(t, pointsdomain.GroupID(10), *entry.GroupID)
			assert.Equal(t, "2024-01-10", pointsdomain.FormatDate(entry.EffectiveDate))
		})
	}
}

func TestAwardHonors_Idempotent(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})

	first := awardOne(t, svc, 1, "2024-01-10")
	require.Equal(t, pointsdomain.HonorActionAwarded, first.Action)
	before, _ := deps.repo.SumForParticipant(context.Background(), nil, testOrg, 1)
	rows := len(deps.repo.Entries)

	second := awardOne(t, svc, 1, "2024-01-10")

	assert.Equal(t, pointsdomain.HonorAwardResult{
		ParticipantID: 1,
		Date:          "2024-01-10",
		Success:       true,
		Action:        pointsdomain.HonorActionAlreadyAwarded,
	}, second)
	after, _ := deps.repo.SumForParticipant(context.Background(), nil, testOrg, 1)
	assert.Equal(t, before, after)
	assert.Len(t, deps.repo.Entries, rows)
	assert.Len(t, deps.repo.Honors, 1)
}

func TestAwardHonors_DuplicatePairsInOneCall(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})

	out, err := svc.AwardHonors(context.Background(), testScope, []pointsdomain.HonorRequest{
		{ParticipantID: 1, Date: "2024-01-10"},
		{ParticipantID: 2, Date: "2024-01-10"},
		{ParticipantID: 1, Date: "2024-01-10", Reason: "again"},
	})
	require.NoError(t, err)

	actions := []pointsdomain.HonorAction{out[0].Action, out[1].Action, out[2].Action}
	assert.Equal(t, []pointsdomain.HonorAction{
		pointsdomain.HonorActionAwarded,
		pointsdomain.HonorActionAwarded,
		pointsdomain.HonorActionAlreadyAwarded,
	}, actions)
	assert.Len(t, deps.repo.Honors, 2)
	assert.Len(t, deps.repo.Entries, 2)
}

func TestAwardHonors_LostRaceReportsAlreadyAwarded(t *testing.T) {
	deps := newTestDeps()
	deps.repo.InsertHonorsFunc = func(ctx context.Context, db bun.IDB, honors []*pointsdb.Honor) ([]*pointsdb.Honor, error) {
		// A concurrent award committed the same pair first.
		return nil, nil
	}
	svc := deps.service(Options{})

	res := awardOne(t, svc, 1, "2024-01-10")

	assert.Equal(t, pointsdomain.HonorActionAlreadyAwarded, res.Action)
	assert.Nil(t, res.HonorID)
	assert.Empty(t, deps.repo.Entries)
}

func TestAwardHonors_SingleQueryPrefetch(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})

	requests := make([]pointsdomain.HonorRequest, 0, 5)
	for pid := pointsdomain.ParticipantID(1); pid <= 5; pid++ {
		requests = append(requests, pointsdomain.HonorRequest{ParticipantID: pid, Date: "2024-01-10"})
	}
	_, err := svc.AwardHonors(context.Background(), testScope, requests)
	require.NoError(t, err)

	assert.Equal(t, []string{"FindHonors", "InsertHonors", "InsertEntries"}, deps.repo.Trace())
}

func TestAwardHonors_ForeignParticipantAbortsCall(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})

	out, err := svc.AwardHonors(context.Background(), testScope, []pointsdomain.HonorRequest{
		{ParticipantID: 1, Date: "2024-01-10"},
		{ParticipantID: 900, Date: "2024-01-10"},
	})

	assert.Nil(t, out)
	var nf *pointsdomain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, &pointsdomain.NotFoundError{Resource: "participant", ID: 900}, nf)
	assert.Empty(t, deps.repo.Trace())
}

func TestAwardHonors_Validation(t *testing.T) {
	tests := []struct {
		name      string
		requests  []pointsdomain.HonorRequest
		wantField string
	}{
		{name: "empty", requests: nil, wantField: "honors"},
		{name: "bad date", requests: []pointsdomain.HonorRequest{{ParticipantID: 1, Date: "01/10/2024"}}, wantField: "honors[0].date"},
		{name: "missing date", requests: []pointsdomain.HonorRequest{{ParticipantID: 1}}, wantField: "honors[0].date"},
		{name: "reason too long", requests: []pointsdomain.HonorRequest{{ParticipantID: 1, Date: "2024-01-10", Reason: strings.Repeat("é", 1001)}}, wantField: "honors[0].reason"},
		{name: "missing participant", requests: []pointsdomain.HonorRequest{{Date: "2024-01-10"}}, wantField: "honors[0].participant_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			svc := deps.service(Options{})

			_, err := svc.AwardHonors(context.Background(), testScope, tt.requests)

			var verr *pointsdomain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
			assert.Empty(t, deps.repo.Trace())
		})
	}
}

func TestAwardHonors_ReasonAtLimitAccepted(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})

	out, err := svc.AwardHonors(context.Background(), testScope, []pointsdomain.HonorRequest{
		{ParticipantID: 1, Date: "2024-01-10", Reason: strings.Repeat("é", 1000)},
	})
	require.NoError(t, err)
	assert.Equal(t, pointsdomain.HonorActionAwarded, out[0].Action)
}

func TestUpdateHonor(t *testing.T) {
	tests := []struct {
		name        string
		patch       pointsdomain.HonorPatch
		setup       func(*FakeRepo)
		wantRedated int
		wantDate    string
		wantReason  string
		wantKind    string
	}{
		{
			name:        "new date re-dates ledger rows",
			patch:       pointsdomain.HonorPatch{Date: strPtr("2024-01-12")},
			wantRedated: 1,
			wantDate:    "2024-01-12",
			wantReason:  "Great teamwork",
		},
		{
			name:       "reason only leaves rows alone",
			patch:      pointsdomain.HonorPatch{Reason: strPtr("Led the cleanup")},
			wantDate:   "2024-01-10",
			wantReason: "Led the cleanup",
		},
		{
			name:       "same date is not a re-date",
			patch:      pointsdomain.HonorPatch{Date: strPtr("2024-01-10")},
			wantDate:   "2024-01-10",
			wantReason: "Great teamwork",
		},
		{
			name:  "date taken by another honor",
			patch: pointsdomain.HonorPatch{Date: strPtr("2024-01-11")},
			setup: func(f *FakeRepo) {
				f.UpdateHonorFunc = func(ctx context.Context, db bun.IDB, honor *pointsdb.Honor, columns ...string) error {
					return fmt.Errorf("pointsdb.UpdateHonor: %w", &pgconn.PgError{Code: "23505"})
				}
			},
			wantKind: "conflict",
		},
		{
			name:     "empty patch",
			patch:    pointsdomain.HonorPatch{},
			wantKind: "validation",
		},
		{
			name:     "malformed date",
			patch:    pointsdomain.HonorPatch{Date: strPtr("2024-02-30")},
			wantKind: "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			svc := deps.service(Options{})
			awarded := awardOne(t, svc, 1, "2024-01-10")
			if tt.setup != nil {
				tt.setup(deps.repo)
			}

			out, err := svc.UpdateHonor(context.Background(), testScope, *awarded.HonorID, tt.patch)

			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, pointsdomain.Kind(err))
				assert.Equal(t, "2024-01-10", pointsdomain.FormatDate(deps.repo.Entries[0].EffectiveDate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRedated, out.PointsRedated)
			assert.Equal(t, tt.wantDate, out.Honor.Date)
			assert.Equal(t, tt.wantReason, out.Honor.Reason)
			require.NotNil(t, out.Honor.UpdatedBy)
			assert.Equal(t, pointsdomain.ActorID("user_123"), *out.Honor.UpdatedBy)
			require.NotNil(t, out.Honor.UpdatedAt)
			assert.True(t, out.Honor.UpdatedAt.Equal(testNow))
			assert.Equal(t, tt.wantDate, pointsdomain.FormatDate(deps.repo.Entries[0].EffectiveDate))
		})
	}
}

func TestUpdateHonor_NotFound(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})
	awarded := awardOne(t, svc, 1, "2024-01-10")

	otherOrg := pointsdomain.Scope{OrganizationID: testOrg + 1, ActorID: "user_9"}
	_, err := svc.UpdateHonor(context.Background(), otherOrg, *awarded.HonorID, pointsdomain.HonorPatch{Reason: strPtr("x")})

	assert.True(t, pointsdomain.IsNotFound(err))
}

func TestDeleteHonor(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{Defaults: map[string]int{CategoryHonorAward: 6}})

	_, err := svc.ApplyBatch(context.Background(), testScope, []pointsdomain.Mutation{
		{Kind: pointsdomain.MutationKindParticipant, TargetID: 1, Value: intPtr(10)},
	})
	require.NoError(t, err)
	awarded := awardOne(t, svc, 1, "2024-01-10")
	before, _ := deps.repo.SumForParticipant(context.Background(), nil, testOrg, 1)
	require.Equal(t, 16, before)

	out, err := svc.DeleteHonor(context.Background(), testScope, *awarded.HonorID)
	require.NoError(t, err)

	assert.Equal(t, &pointsdomain.HonorDeleteResult{
		HonorID:       *awarded.HonorID,
		ParticipantID: 1,
		Date:          "2024-01-10",
		PointsRemoved: 1,
		ValueRemoved:  6,
	}, out)
	after, _ := deps.repo.SumForParticipant(context.Background(), nil, testOrg, 1)
	assert.Equal(t, before-out.ValueRemoved, after)
	for _, e := range deps.repo.Entries {
		assert.Nil(t, e.HonorID)
	}
	assert.Empty(t, deps.repo.Honors)

	last := deps.publisher.Events[len(deps.publisher.Events)-1]
	assert.Equal(t, pointsdomain.TopicHonorDeleted, last.Topic)

	_, err = svc.DeleteHonor(context.Background(), testScope, *awarded.HonorID)
	assert.True(t, pointsdomain.IsNotFound(err), "second delete")
}

func TestDeleteHonor_InvalidID(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})

	_, err := svc.DeleteHonor(context.Background(), testScope, 0)

	assert.True(t, pointsdomain.IsValidation(err))
	assert.Empty(t, deps.repo.Trace())
}

func TestListHonors(t *testing.T) {
	deps := newTestDeps()
	svc := deps.service(Options{})
	for _, date := range []string{"2024-01-10", "2024-01-11", "2024-01-12"} {
		awardOne(t, svc, 1, date)
	}
	awardOne(t, svc, 2, "2024-01-11")

	pid := pointsdomain.ParticipantID(1)
	out, err := svc.ListHonors(context.Background(), testOrg, pointsdomain.HonorFilter{
		ParticipantID: &pid,
		From:          "2024-01-11",
	})
	require.NoError(t, err)

	dates := make([]string, 0, len(out))
	for _, h := range out {
		assert.Equal(t, pid, h.ParticipantID)
		dates = append(dates, h.Date)
	}
	assert.Equal(t, []string{"2024-01-12", "2024-01-11"}, dates)

	_, err = svc.ListHonors(context.Background(), testOrg, pointsdomain.HonorFilter{From: "2024-02-01", To: "2024-01-01"})
	assert.True(t, pointsdomain.IsValidation(err))
}
