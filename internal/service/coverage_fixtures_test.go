package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/models"
	"github.com/noah-isme/coverage-api/internal/repository"
)

const (
	teacherID  = "11111111-1111-1111-1111-111111111111"
	sub1ID     = "22222222-2222-2222-2222-222222222222"
	sub2ID     = "33333333-3333-3333-3333-333333333333"
	sub3ID     = "44444444-4444-4444-4444-444444444444"
	teacher2ID = "55555555-5555-5555-5555-555555555555"
	outsiderID = "66666666-6666-6666-6666-666666666666"
	adminID    = "99999999-9999-9999-9999-999999999999"
	district   = "D1"
	school     = "SCH-1"
	department = "math"
)

// Thursday 2024-02-15 08:00 UTC.
var fixedNow = time.Date(2024, 2, 15, 8, 0, 0, 0, time.UTC)

func adminScope() *models.RequestScope {
	return &models.RequestScope{UserID: adminID, Role: models.RoleAdmin, DistrictCode: district, SchoolCode: school}
}

func subScope(id string) *models.RequestScope {
	return &models.RequestScope{UserID: id, Role: models.RoleSubstitute, DistrictCode: district, SchoolCode: school}
}

// memOpenings mirrors the guarded updates of OpeningRepository under one mutex.
type memOpenings struct {
	mu     sync.Mutex
	items  map[string]*models.CoverageOpening
	events []models.OpeningEvent
}

func newMemOpenings() *memOpenings {
	return &memOpenings{items: map[string]*models.CoverageOpening{}}
}

func (m *memOpenings) Create(ctx context.Context, opening *models.CoverageOpening) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.ClassID == opening.ClassID && o.Date.Equal(opening.Date) && o.Period == opening.Period && o.Status.Active() {
			return repository.ErrDuplicateSlot
		}
	}
	if opening.ID == "" {
		opening.ID = uuid.NewString()
	}
	opening.CreatedAt = fixedNow
	opening.UpdatedAt = fixedNow
	cp := *opening
	m.items[opening.ID] = &cp
	return nil
}

func (m *memOpenings) FindByID(ctx context.Context, id string) (*models.CoverageOpening, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (m *memOpenings) FindActiveBySlot(ctx context.Context, classID string, date time.Time, period int) (*models.CoverageOpening, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.ClassID == classID && o.Date.Equal(date) && o.Period == period && o.Status.Active() {
			cp := *o
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memOpenings) List(ctx context.Context, filter models.OpeningFilter) ([]models.CoverageOpening, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.CoverageOpening
	for _, o := range m.items {
		if filter.SchoolCode != "" && o.SchoolCode != filter.SchoolCode {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		result = append(result, *o)
	}
	return result, len(result), nil
}

func (m *memOpenings) Claim(ctx context.Context, id, assigneeID string, to models.OpeningStatus, event models.OpeningEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok || o.Status != models.OpeningStatusOpen {
		return false, nil
	}
	assignee := assigneeID
	o.Status = to
	o.AssigneeID = &assignee
	event.OpeningID = id
	m.events = append(m.events, event)
	return true, nil
}

func (m *memOpenings) Transition(ctx context.Context, t repository.OpeningTransition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[t.OpeningID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range t.From {
		if o.Status == from {
			allowed = true
		}
	}
	if !allowed || (t.Assignee != "" && !o.IsAssignee(t.Assignee)) {
		return false, nil
	}
	o.Status = t.To
	if t.ClearAssignee {
		o.AssigneeID = nil
	}
	t.Event.OpeningID = t.OpeningID
	m.events = append(m.events, t.Event)
	return true, nil
}

func (m *memOpenings) Events(ctx context.Context, openingID string) ([]models.OpeningEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.OpeningEvent
	for _, e := range m.events {
		if e.OpeningID == openingID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *memOpenings) complete(openingID, assigneeID string, event models.OpeningEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[openingID]
	if !ok || o.Status != models.OpeningStatusClaimed || !o.IsAssignee(assigneeID) {
		return false
	}
	o.Status = models.OpeningStatusCompleted
	event.OpeningID = openingID
	m.events = append(m.events, event)
	return true
}

func (m *memOpenings) busy(staffID string, date, start, end time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		held := o.Status == models.OpeningStatusRequested || o.Status == models.OpeningStatusClaimed
		if held && o.IsAssignee(staffID) && o.Date.Equal(date) && o.StartTime.Before(end) && o.EndTime.After(start) {
			return true
		}
	}
	return false
}

func (m *memOpenings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// memStaff keeps rotation positions dense the way the staff repository does.
type memStaff struct {
	mu       sync.Mutex
	members  map[string]*models.StaffMember
	openings *memOpenings
}

func newMemStaff(openings *memOpenings, members ...models.StaffMember) *memStaff {
	s := &memStaff{members: map[string]*models.StaffMember{}, openings: openings}
	for i := range members {
		m := members[i]
		s.members[m.ID] = &m
	}
	return s
}

func (s *memStaff) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.StaffMember
	for _, m := range s.members {
		if filter.SchoolCode != "" && m.SchoolCode != filter.SchoolCode {
			continue
		}
		if !filter.IncludeInactive && !m.Active {
			continue
		}
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RotationPosition < result[j].RotationPosition })
	return result, nil
}

func (s *memStaff) FindByID(ctx context.Context, id string) (*models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (s *memStaff) EligibleCandidates(ctx context.Context, q models.EligibilityQuery) ([]models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := map[string]bool{}
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}
	var result []models.StaffMember
	for _, m := range s.members {
		if !m.Active || m.Status != models.StaffStatusFree || excluded[m.ID] {
			continue
		}
		if q.Department != "" && m.Department != q.Department {
			continue
		}
		switch m.Role {
		case models.StaffRoleSubstitute:
			if !contains(m.ApprovedDistricts, q.DistrictCode) || !contains(m.ApprovedSchools, q.SchoolCode) {
				continue
			}
		case models.StaffRoleTeacher:
			if m.SchoolCode != q.SchoolCode {
				continue
			}
		}
		if s.openings != nil && s.openings.busy(m.ID, q.Date, q.Start, q.End) {
			continue
		}
		result = append(result, *m)
	}
	return RankCandidates(result), nil
}

func (s *memStaff) Create(ctx context.Context, member *models.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	member.Active = true
	cp := *member
	s.members[member.ID] = &cp
	s.resequence(member.SchoolCode, member.Department, member.ID)
	member.RotationPosition = s.members[member.ID].RotationPosition
	return nil
}

func (s *memStaff) Deactivate(ctx context.Context, id string) error {
	_, err := s.mutate(id, "", func(m *models.StaffMember) bool {
		if !m.Active {
			return false
		}
		m.Active = false
		m.RotationPosition = 0
		return true
	})
	return err
}

func (s *memStaff) MarkAbsent(ctx context.Context, id string) (bool, error) {
	return s.mutate(id, "", func(m *models.StaffMember) bool {
		if !m.Active || m.Status == models.StaffStatusAbsent {
			return false
		}
		m.Status = models.StaffStatusAbsent
		return true
	})
}

func (s *memStaff) MarkReturned(ctx context.Context, id string) (bool, error) {
	return s.mutate(id, id, func(m *models.StaffMember) bool {
		if !m.Active || m.Status != models.StaffStatusAbsent {
			return false
		}
		m.Status = models.StaffStatusFree
		return true
	})
}

func (s *memStaff) RecomputeDaysSinceLast(ctx context.Context, id string) error {
	_, err := s.mutate(id, id, func(m *models.StaffMember) bool {
		if !m.Active {
			return false
		}
		m.DaysSinceLastCoverage = 0
		if m.Status == models.StaffStatusCovering {
			m.Status = models.StaffStatusFree
		}
		return true
	})
	return err
}

func (s *memStaff) SetStatus(ctx context.Context, id string, status models.StaffStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[id]; ok {
		m.Status = status
	}
	return nil
}

func (s *memStaff) AgeDepartment(ctx context.Context, schoolCode, dept string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.members {
		if m.Active && m.SchoolCode == schoolCode && m.Department == dept {
			m.DaysSinceLastCoverage++
			n++
		}
	}
	return n, nil
}

func (s *memStaff) mutate(id, moveToBack string, fn func(m *models.StaffMember) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if !fn(m) {
		return false, nil
	}
	s.resequence(m.SchoolCode, m.Department, moveToBack)
	return true, nil
}

func (s *memStaff) resequence(schoolCode, dept, moveToBack string) {
	var active []*models.StaffMember
	for _, m := range s.members {
		if m.Active && m.SchoolCode == schoolCode && m.Department == dept {
			active = append(active, m)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if (a.ID == moveToBack) != (b.ID == moveToBack) {
			return b.ID == moveToBack
		}
		if a.RotationPosition != b.RotationPosition {
			return a.RotationPosition < b.RotationPosition
		}
		return a.ID < b.ID
	})
	for i, m := range active {
		m.RotationPosition = i + 1
	}
}

func (s *memStaff) get(id string) models.StaffMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.members[id]
}

func (s *memStaff) positions() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := map[string]int{}
	for id, m := range s.members {
		if m.Active {
			result[id] = m.RotationPosition
		}
	}
	return result
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

type memPeriods struct {
	items []models.ClassPeriod
}

func (p *memPeriods) ListForTeacher(ctx context.Context, teacherID string, weekday int) ([]models.ClassPeriod, error) {
	var result []models.ClassPeriod
	for _, cp := range p.items {
		if cp.TeacherID == teacherID && cp.Weekday == weekday {
			result = append(result, cp)
		}
	}
	return result, nil
}

func (p *memPeriods) FindForClass(ctx context.Context, classID string, weekday, period int) (*models.ClassPeriod, error) {
	for _, cp := range p.items {
		if cp.ClassID == classID && cp.Weekday == weekday && cp.Period == period {
			found := cp
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (p *memPeriods) FindNextForClass(ctx context.Context, classID string, weekday int, clock string) (*models.ClassPeriod, error) {
	var best *models.ClassPeriod
	for i, cp := range p.items {
		if cp.ClassID != classID || cp.Weekday != weekday || cp.StartTime < clock {
			continue
		}
		if best == nil || cp.StartTime < best.StartTime {
			best = &p.items[i]
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	found := *best
	return &found, nil
}

// memLedger completes openings through memOpenings so the status change and the entry stay paired.
type memLedger struct {
	mu        sync.Mutex
	openings  *memOpenings
	staff     *memStaff
	entries   map[string]*models.CoverageLogEntry
	lists     int
	rotateErr error
}

func newMemLedger(openings *memOpenings) *memLedger {
	return &memLedger{openings: openings, entries: map[string]*models.CoverageLogEntry{}}
}

// RecordCompletion mirrors the repository transaction: a rotation failure leaves the opening claimed.
func (l *memLedger) RecordCompletion(ctx context.Context, entry *models.CoverageLogEntry, event models.OpeningEvent) (bool, error) {
	if l.rotateErr != nil {
		return false, l.rotateErr
	}
	if !l.openings.complete(entry.OpeningID, entry.AssigneeID, event) {
		return false, nil
	}
	if l.staff != nil {
		if err := l.staff.RecomputeDaysSinceLast(ctx, entry.AssigneeID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.Status = models.LogStatusPending
	cp := *entry
	l.entries[entry.ID] = &cp
	return true, nil
}

func (l *memLedger) FindByID(ctx context.Context, id string) (*models.CoverageLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (l *memLedger) List(ctx context.Context, filter models.CoverageLogFilter) ([]models.CoverageLogEntry, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []models.CoverageLogEntry
	for _, e := range l.entries {
		if filter.SchoolCode != "" && e.SchoolCode != filter.SchoolCode {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (l *memLedger) ListForAssignee(ctx context.Context, assigneeID string, asOf time.Time) ([]models.CoverageLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lists++
	var result []models.CoverageLogEntry
	for _, e := range l.entries {
		if e.AssigneeID == assigneeID && !e.Date.After(asOf) {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (l *memLedger) Verify(ctx context.Context, id, adminID string, at time.Time) (bool, error) {
	return l.guarded(id, models.LogStatusPending, func(e *models.CoverageLogEntry) {
		e.Status = models.LogStatusVerified
		e.VerifiedBy = &adminID
		e.VerifiedAt = &at
	})
}

func (l *memLedger) MarkPaid(ctx context.Context, id, paymentRef string, at time.Time) (bool, error) {
	return l.guarded(id, models.LogStatusVerified, func(e *models.CoverageLogEntry) {
		e.Status = models.LogStatusPaid
		e.PaymentRef = &paymentRef
		e.PaidAt = &at
	})
}

func (l *memLedger) OverrideAmount(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	return l.guarded(id, models.LogStatusPending, func(e *models.CoverageLogEntry) { e.Amount = amount })
}

func (l *memLedger) guarded(id string, want models.LogStatus, fn func(e *models.CoverageLogEntry)) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok || e.Status != want {
		return false, nil
	}
	fn(e)
	return true, nil
}

func (l *memLedger) add(entry models.CoverageLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	l.entries[entry.ID] = &entry
}

func (l *memLedger) listCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lists
}

// recordingDispatcher captures offers instead of persisting and notifying.
type recordingDispatcher struct {
	mu     sync.Mutex
	offers [][]models.CoverageOffer
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, opening *models.CoverageOpening, candidates []models.StaffMember, mode models.OfferMode) ([]models.CoverageOffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	offers := make([]models.CoverageOffer, len(candidates))
	for i, c := range candidates {
		offers[i] = models.CoverageOffer{ID: uuid.NewString(), OpeningID: opening.ID, CandidateID: c.ID, Rank: i + 1, Mode: mode}
	}
	d.offers = append(d.offers, offers)
	return offers, nil
}

func (d *recordingDispatcher) last() []models.CoverageOffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.offers) == 0 {
		return nil
	}
	return d.offers[len(d.offers)-1]
}

func (d *recordingDispatcher) candidates() []string {
	var ids []string
	for _, o := range d.last() {
		ids = append(ids, o.CandidateID)
	}
	return ids
}

type coverageHarness struct {
	openings *memOpenings
	staff    *memStaff
	periods  *memPeriods
	ledger   *memLedger
	offers   *recordingDispatcher
	coverage *CoverageService
	earnings *EarningsService
	roster   *RosterService
}

func staffMember(id string, role models.StaffRole, position, days int) models.StaffMember {
	m := models.StaffMember{
		ID:                    id,
		Name:                  "Staff " + id[:4],
		Email:                 id[:4] + "@school.test",
		Department:            department,
		Role:                  role,
		EmploymentStatus:      models.EmploymentFullTime,
		DistrictCode:          district,
		SchoolCode:            school,
		RotationPosition:      position,
		DaysSinceLastCoverage: days,
		Status:                models.StaffStatusFree,
		Active:                true,
	}
	if role == models.StaffRoleSubstitute {
		m.ApprovedDistricts = pq.StringArray{district}
		m.ApprovedSchools = pq.StringArray{school}
	}
	return m
}

func defaultRoster() []models.StaffMember {
	outsider := staffMember(outsiderID, models.StaffRoleSubstitute, 6, 9)
	outsider.ApprovedSchools = pq.StringArray{"SCH-2"}
	paid := staffMember(sub2ID, models.StaffRoleSubstitute, 3, 3)
	paid.HourlyRate = decimal.NewNullDecimal(decimal.RequireFromString("40"))
	return []models.StaffMember{
		staffMember(teacherID, models.StaffRoleTeacher, 1, 0),
		staffMember(sub1ID, models.StaffRoleSubstitute, 2, 3),
		paid,
		staffMember(sub3ID, models.StaffRoleSubstitute, 4, 1),
		staffMember(teacher2ID, models.StaffRoleTeacher, 5, 0),
		outsider,
	}
}

func defaultPeriods() []models.ClassPeriod {
	weekday := int(fixedNow.Weekday())
	return []models.ClassPeriod{
		{ID: "p1", ClassID: "ALG-1", ClassName: "Algebra I", TeacherID: teacherID, SchoolCode: school, Weekday: weekday, Period: 1, StartTime: "09:00", EndTime: "10:00"},
		{ID: "p2", ClassID: "GEO-2", ClassName: "Geometry", TeacherID: teacherID, SchoolCode: school, Weekday: weekday, Period: 2, StartTime: "10:15", EndTime: "11:45"},
		{ID: "p3", ClassID: "ALG-1", ClassName: "Algebra I", TeacherID: teacherID, SchoolCode: school, Weekday: weekday, Period: 5, StartTime: "13:00", EndTime: "14:00"},
		{ID: "p4", ClassID: "CAL-3", ClassName: "Calculus", TeacherID: teacher2ID, SchoolCode: school, Weekday: (weekday + 1) % 7, Period: 1, StartTime: "09:00", EndTime: "10:00"},
	}
}

func newCoverageHarness(t *testing.T, cfg CoverageConfig) *coverageHarness {
	t.Helper()
	openings := newMemOpenings()
	h := &coverageHarness{
		openings: openings,
		staff:    newMemStaff(openings, defaultRoster()...),
		periods:  &memPeriods{items: defaultPeriods()},
		ledger:   newMemLedger(openings),
		offers:   &recordingDispatcher{},
	}
	h.ledger.staff = h.staff
	clock := func() time.Time { return fixedNow }
	rotation := NewRotationService(h.staff, h.offers, zap.NewNop())
	h.earnings = NewEarningsService(h.ledger, h.staff, nil, nil, EarningsConfig{DefaultRate: decimal.NewFromInt(25)}, nil, zap.NewNop())
	h.earnings.now = clock
	h.coverage = NewCoverageService(openings, h.staff, h.periods, rotation, h.earnings, nil, cfg, nil, zap.NewNop())
	h.coverage.now = clock
	h.roster = NewRosterService(h.staff, h.periods, h.coverage, time.UTC, nil, zap.NewNop())
	h.roster.now = clock
	return h
}
