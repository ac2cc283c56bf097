package pointsservice

import (
	"context"
	"sort"
	"sync"
	"time"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	pointsdb "github.com/Black-And-White-Club/points-ledger/app/modules/points/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Ledger Repo
// ------------------------

// FakeRepo keeps an in-memory ledger so totals can be checked end to end.
// Any ...Func field overrides the default behavior.
type FakeRepo struct {
	mu    sync.Mutex
	trace []string

	Entries []*pointsdb.PointEntry
	Honors  []*pointsdb.Honor
	nextID  int64

	InsertEntriesFunc     func(ctx context.Context, db bun.IDB, entries []*pointsdb.PointEntry) error
	InsertHonorsFunc      func(ctx context.Context, db bun.IDB, honors []*pointsdb.Honor) ([]*pointsdb.Honor, error)
	UpdateHonorFunc       func(ctx context.Context, db bun.IDB, honor *pointsdb.Honor, columns ...string) error
	GetHonorFunc          func(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) (*pointsdb.Honor, error)
	ParticipantTotalsFunc func(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]pointsdb.TotalRow, error)
	GroupTotalsFunc       func(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]pointsdb.TotalRow, error)
	GroupTotalFunc        func(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*pointsdb.TotalRow, error)
	MemberTotalsFunc      func(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID *pointsdomain.GroupID) ([]pointsdb.MemberTotalRow, error)
	ListEntriesFunc       func(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]pointsdb.PointEntry, error)
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		trace: []string{},
	}
}

func (f *FakeRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

// --- Repository Interface Implementation ---

func (f *FakeRepo) InsertEntries(ctx context.Context, db bun.IDB, entries []*pointsdb.PointEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertEntries")
	if f.InsertEntriesFunc != nil {
		return f.InsertEntriesFunc(ctx, db, entries)
	}
	for _, e := range entries {
		e.ID = f.id()
		e.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(e.ID) * time.Second)
		f.Entries = append(f.Entries, e)
	}
	return nil
}

func (f *FakeRepo) SumForParticipant(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SumForParticipant")
	return f.participantSum(orgID, participantID), nil
}

func (f *FakeRepo) participantSum(orgID pointsdomain.OrganizationID, pid pointsdomain.ParticipantID) int {
	total := 0
	for _, e := range f.Entries {
		if e.OrganizationID == orgID && e.ParticipantID != nil && *e.ParticipantID == pid {
			total += e.Value
		}
	}
	return total
}

func (f *FakeRepo) SumForParticipants(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SumForParticipants")
	out := make(map[pointsdomain.ParticipantID]int, len(participantIDs))
	for _, pid := range participantIDs {
		out[pid] = f.participantSum(orgID, pid)
	}
	return out, nil
}

func (f *FakeRepo) SumForGroup(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SumForGroup")
	total := 0
	for _, e := range f.Entries {
		if e.OrganizationID == orgID && e.ParticipantID == nil && e.GroupID != nil && *e.GroupID == groupID {
			total += e.Value
		}
	}
	return total, nil
}

func (f *FakeRepo) ListEntriesForParticipant(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID, limit int) ([]pointsdb.PointEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListEntriesForParticipant")
	if f.ListEntriesFunc != nil {
		return f.ListEntriesFunc(ctx, db, orgID, participantID, limit)
	}
	var out []pointsdb.PointEntry
	for i := len(f.Entries) - 1; i >= 0; i-- {
		e := f.Entries[i]
		if e.OrganizationID == orgID && e.ParticipantID != nil && *e.ParticipantID == participantID {
			out = append(out, *e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *FakeRepo) FindHonors(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, keys []pointsdb.HonorKey) (map[pointsdb.HonorKey]pointsdomain.HonorID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindHonors")
	out := make(map[pointsdb.HonorKey]pointsdomain.HonorID)
	for _, k := range keys {
		if h := f.findHonor(orgID, k); h != nil {
			out[k] = h.ID
		}
	}
	return out, nil
}

func (f *FakeRepo) findHonor(orgID pointsdomain.OrganizationID, k pointsdb.HonorKey) *pointsdb.Honor {
	for _, h := range f.Honors {
		if h.OrganizationID == orgID && h.ParticipantID == k.ParticipantID && pointsdomain.FormatDate(h.Date) == k.Date {
			return h
		}
	}
	return nil
}

func (f *FakeRepo) InsertHonors(ctx context.Context, db bun.IDB, honors []*pointsdb.Honor) ([]*pointsdb.Honor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertHonors")
	if f.InsertHonorsFunc != nil {
		return f.InsertHonorsFunc(ctx, db, honors)
	}
	var inserted []*pointsdb.Honor
	for _, h := range honors {
		k := pointsdb.HonorKey{ParticipantID: h.ParticipantID, Date: pointsdomain.FormatDate(h.Date)}
		if f.findHonor(h.OrganizationID, k) != nil {
			continue
		}
		h.ID = pointsdomain.HonorID(f.id())
		f.Honors = append(f.Honors, h)
		inserted = append(inserted, h)
	}
	return inserted, nil
}

func (f *FakeRepo) GetHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) (*pointsdb.Honor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetHonor")
	if f.GetHonorFunc != nil {
		return f.GetHonorFunc(ctx, db, orgID, honorID)
	}
	for _, h := range f.Honors {
		if h.ID == honorID && h.OrganizationID == orgID {
			cp := *h
			return &cp, nil
		}
	}
	return nil, pointsdb.ErrNotFound
}

func (f *FakeRepo) UpdateHonor(ctx context.Context, db bun.IDB, honor *pointsdb.Honor, columns ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateHonor")
	if f.UpdateHonorFunc != nil {
		return f.UpdateHonorFunc(ctx, db, honor, columns...)
	}
	for i, h := range f.Honors {
		if h.ID == honor.ID && h.OrganizationID == honor.OrganizationID {
			cp := *honor
			f.Honors[i] = &cp
			return nil
		}
	}
	return pointsdb.ErrNotFound
}

func (f *FakeRepo) RedateEntriesForHonor(ctx context.Context, db bun.IDB, honor *pointsdb.Honor) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RedateEntriesForHonor")
	n := 0
	for _, e := range f.Entries {
		if e.OrganizationID == honor.OrganizationID && e.HonorID != nil && *e.HonorID == honor.ID {
			e.EffectiveDate = honor.Date
			n++
		}
	}
	return n, nil
}

func (f *FakeRepo) DeleteEntriesForHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteEntriesForHonor")
	kept := f.Entries[:0]
	rows, value := 0, 0
	for _, e := range f.Entries {
		if e.OrganizationID == orgID && e.HonorID != nil && *e.HonorID == honorID {
			rows++
			value += e.Value
			continue
		}
		kept = append(kept, e)
	}
	f.Entries = kept
	return rows, value, nil
}

func (f *FakeRepo) DeleteHonor(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, honorID pointsdomain.HonorID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteHonor")
	for i, h := range f.Honors {
		if h.ID == honorID && h.OrganizationID == orgID {
			f.Honors = append(f.Honors[:i], f.Honors[i+1:]...)
			return nil
		}
	}
	return pointsdb.ErrNotFound
}

func (f *FakeRepo) ListHonors(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, filter pointsdomain.HonorFilter) ([]pointsdb.Honor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListHonors")
	var out []pointsdb.Honor
	for _, h := range f.Honors {
		if h.OrganizationID != orgID {
			continue
		}
		if filter.ParticipantID != nil && h.ParticipantID != *filter.ParticipantID {
			continue
		}
		d := pointsdomain.FormatDate(h.Date)
		if (filter.From != "" && d < filter.From) || (filter.To != "" && d > filter.To) {
			continue
		}
		out = append(out, *h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *FakeRepo) ParticipantTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]pointsdb.TotalRow, error) {
	f.record("ParticipantTotals")
	if f.ParticipantTotalsFunc != nil {
		return f.ParticipantTotalsFunc(ctx, db, orgID, limit)
	}
	return nil, nil
}

func (f *FakeRepo) GroupTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, limit int) ([]pointsdb.TotalRow, error) {
	f.record("GroupTotals")
	if f.GroupTotalsFunc != nil {
		return f.GroupTotalsFunc(ctx, db, orgID, limit)
	}
	return nil, nil
}

func (f *FakeRepo) GroupTotal(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (*pointsdb.TotalRow, error) {
	f.record("GroupTotal")
	if f.GroupTotalFunc != nil {
		return f.GroupTotalFunc(ctx, db, orgID, groupID)
	}
	return nil, pointsdb.ErrNotFound
}

func (f *FakeRepo) MemberTotals(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID *pointsdomain.GroupID) ([]pointsdb.MemberTotalRow, error) {
	f.record("MemberTotals")
	if f.MemberTotalsFunc != nil {
		return f.MemberTotalsFunc(ctx, db, orgID, groupID)
	}
	return nil, nil
}

// --- Accessors for assertions ---

func (f *FakeRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Ensure the fake actually satisfies the interface
var _ pointsdb.Repository = (*FakeRepo)(nil)

// ------------------------
// Fake Directory
// ------------------------

// FakeDirectory serves a fixed roster: Groups maps group id to members and
// Participants lists everyone in the organization.
type FakeDirectory struct {
	OrgID        pointsdomain.OrganizationID
	Groups       map[pointsdomain.GroupID][]pointsdomain.ParticipantID
	Participants []pointsdomain.ParticipantID

	GroupExistsFunc func(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (bool, error)
}

func (f *FakeDirectory) GroupExists(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) (bool, error) {
	if f.GroupExistsFunc != nil {
		return f.GroupExistsFunc(ctx, db, orgID, groupID)
	}
	if orgID != f.OrgID {
		return false, nil
	}
	_, ok := f.Groups[groupID]
	return ok, nil
}

func (f *FakeDirectory) ListMembers(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, groupID pointsdomain.GroupID) ([]pointsdomain.ParticipantID, error) {
	if orgID != f.OrgID {
		return nil, nil
	}
	return append([]pointsdomain.ParticipantID(nil), f.Groups[groupID]...), nil
}

func (f *FakeDirectory) GroupOf(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantID pointsdomain.ParticipantID) (*pointsdomain.GroupID, error) {
	groups, _ := f.GroupsOf(ctx, db, orgID, []pointsdomain.ParticipantID{participantID})
	if g, ok := groups[participantID]; ok {
		return &g, nil
	}
	return nil, nil
}

func (f *FakeDirectory) GroupsOf(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]pointsdomain.GroupID, error) {
	out := make(map[pointsdomain.ParticipantID]pointsdomain.GroupID)
	if orgID != f.OrgID {
		return out, nil
	}
	for gid, members := range f.Groups {
		for _, m := range members {
			for _, pid := range participantIDs {
				if m == pid {
					out[pid] = gid
				}
			}
		}
	}
	return out, nil
}

func (f *FakeDirectory) ParticipantsInOrganization(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]struct{}, error) {
	out := make(map[pointsdomain.ParticipantID]struct{})
	if orgID != f.OrgID {
		return out, nil
	}
	for _, p := range f.Participants {
		for _, pid := range participantIDs {
			if p == pid {
				out[pid] = struct{}{}
			}
		}
	}
	return out, nil
}

var _ MembershipDirectory = (*FakeDirectory)(nil)

// ------------------------
// Fake Attendance
// ------------------------

// FakeAttendance maps date to participant statuses.
type FakeAttendance struct {
	Records map[string]map[pointsdomain.ParticipantID]pointsdomain.AttendanceStatus
	calls   []string
}

func (f *FakeAttendance) AnyAttendanceRecorded(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, date string) (bool, error) {
	f.calls = append(f.calls, "AnyAttendanceRecorded")
	return len(f.Records[date]) > 0, nil
}

func (f *FakeAttendance) EligibleParticipants(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID, date string, participantIDs []pointsdomain.ParticipantID) (map[pointsdomain.ParticipantID]struct{}, error) {
	f.calls = append(f.calls, "EligibleParticipants")
	out := make(map[pointsdomain.ParticipantID]struct{})
	for _, pid := range participantIDs {
		switch f.Records[date][pid] {
		case pointsdomain.AttendancePresent, pointsdomain.AttendanceLate:
			out[pid] = struct{}{}
		}
	}
	return out, nil
}

var _ AttendanceOracle = (*FakeAttendance)(nil)

// ------------------------
// Fake Settings
// ------------------------

type FakeSettings struct {
	Rules []byte
	Err   error
}

func (f *FakeSettings) PointSystemRules(ctx context.Context, db bun.IDB, orgID pointsdomain.OrganizationID) ([]byte, bool, error) {
	if f.Err != nil {
		return nil, false, f.Err
	}
	return f.Rules, f.Rules != nil, nil
}

var _ SettingsStore = (*FakeSettings)(nil)

// ------------------------
// Fake Publisher
// ------------------------

type published struct {
	Topic   string
	Payload any
}

type FakePublisher struct {
	Events []published
	Err    error
}

func (f *FakePublisher) Publish(ctx context.Context, topic string, payload any) error {
	f.Events = append(f.Events, published{Topic: topic, Payload: payload})
	return f.Err
}

var _ EventPublisher = (*FakePublisher)(nil)
