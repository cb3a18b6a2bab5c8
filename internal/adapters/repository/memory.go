package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/sigte/riskengine/internal/domain/model"
)

// MemoryStore keeps every collection in process. Safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	schools       map[string]model.School
	students      map[string]model.Student
	routes        map[string]model.Route
	vehicles      map[string]model.Vehicle
	attendance    []model.AttendanceRecord
	incidents     []model.IncidentRecord
	interventions []model.InterventionRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schools:  make(map[string]model.School),
		students: make(map[string]model.Student),
		routes:   make(map[string]model.Route),
		vehicles: make(map[string]model.Vehicle),
	}
}

// Ping only fails when ctx is done.
func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Student returns the student with id or ErrNotFound.
func (m *MemoryStore) Student(ctx context.Context, id string) (model.Student, error) {
	if err := ctx.Err(); err != nil {
		return model.Student{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) activeSorted() []model.Student {
	out := make([]model.Student, 0, len(m.students))
	for _, s := range m.students {
		if s.Status == model.StudentActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveStudents pages active students ordered by id.
func (m *MemoryStore) ActiveStudents(ctx context.Context, offset, limit int) ([]model.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.activeSorted()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []model.Student{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// CountActiveStudents counts students with active status.
func (m *MemoryStore) CountActiveStudents(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.students {
		if s.Status == model.StudentActive {
			n++
		}
	}
	return n, nil
}

// Attendance returns matching records ordered by date.
func (m *MemoryStore) Attendance(ctx context.Context, q AttendanceQuery) ([]model.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.AttendanceRecord{}
	for _, r := range m.attendance {
		if q.StudentID != "" && r.StudentID != q.StudentID {
			continue
		}
		if !inDayRange(r.Date, q.From, q.To) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Incidents returns matching incidents ordered by occurrence time.
func (m *MemoryStore) Incidents(ctx context.Context, q IncidentQuery) ([]model.IncidentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.IncidentRecord{}
	for _, r := range m.incidents {
		if q.RouteID != "" && r.RouteID != q.RouteID {
			continue
		}
		if q.StudentID != "" && r.StudentID != q.StudentID {
			continue
		}
		if !contains(q.Types, r.Type) || !contains(q.Priorities, r.Priority) || !contains(q.Statuses, r.Status) {
			continue
		}
		if !inTimeRange(r.OccurredAt, q.Since, q.Until) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// Interventions returns matching records newest first.
func (m *MemoryStore) Interventions(ctx context.Context, q InterventionQuery) ([]model.InterventionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.InterventionRecord{}
	for _, r := range m.interventions {
		if q.StudentID != "" && r.StudentID != q.StudentID {
			continue
		}
		if !q.Since.IsZero() && r.CreatedAt.Before(q.Since) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// HasPendingIntervention reports whether the student has a pending record.
func (m *MemoryStore) HasPendingIntervention(ctx context.Context, studentID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasPendingLocked(studentID), nil
}

func (m *MemoryStore) hasPendingLocked(studentID string) bool {
	for _, r := range m.interventions {
		if r.StudentID == studentID && r.Status == model.InterventionPending {
			return true
		}
	}
	return false
}

// CreateIntervention appends rec unless the student already has a pending record.
func (m *MemoryStore) CreateIntervention(ctx context.Context, rec model.InterventionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Status == model.InterventionPending && m.hasPendingLocked(rec.StudentID) {
		return ErrDuplicatePending
	}
	m.interventions = append(m.interventions, rec)
	return nil
}

// Routes returns every route ordered by id.
func (m *MemoryStore) Routes(ctx context.Context) ([]model.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Route, 0, len(m.routes))
	for _, r := range m.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Vehicles returns every vehicle ordered by id.
func (m *MemoryStore) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountSchools counts schools.
func (m *MemoryStore) CountSchools(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.schools), nil
}

// AddSchool inserts or replaces a school.
func (m *MemoryStore) AddSchool(_ context.Context, s model.School) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools[s.ID] = s
	return nil
}

// AddStudent inserts or replaces a student.
func (m *MemoryStore) AddStudent(_ context.Context, s model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
	return nil
}

// AddRoute inserts or replaces a route.
func (m *MemoryStore) AddRoute(_ context.Context, r model.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[r.ID] = r
	return nil
}

// AddVehicle inserts or replaces a vehicle.
func (m *MemoryStore) AddVehicle(_ context.Context, v model.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return nil
}

// AddAttendance appends attendance records.
func (m *MemoryStore) AddAttendance(_ context.Context, recs ...model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		r.Date = model.Day(r.Date)
		m.attendance = append(m.attendance, r)
	}
	return nil
}

// AddIncident appends incidents.
func (m *MemoryStore) AddIncident(_ context.Context, recs ...model.IncidentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, recs...)
	return nil
}
