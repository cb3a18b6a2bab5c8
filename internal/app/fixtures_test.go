package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	fixedNow   = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	errOffline = errors.New("collaborator offline")
)

func clock() time.Time { return fixedNow }

func daysAgo(n int) time.Time { return model.Day(fixedNow).AddDate(0, 0, -n) }

func guardians() []model.Guardian {
	return []model.Guardian{
		{Name: "Maria", Phone: "555-0101", Email: "maria@example.org", Relationship: "mother"},
		{Name: "João", Phone: "555-0102", Email: "joao@example.org", Relationship: "father"},
	}
}

func addStudent(store *repository.MemoryStore, id, routeID string) {
	_ = store.AddStudent(context.Background(), model.Student{
		ID:           id,
		Name:         "Student " + id,
		Registration: "REG-" + id,
		SchoolID:     "school-1",
		RouteID:      routeID,
		Status:       model.StudentActive,
		Guardians:    guardians(),
	})
}

// addAttendance adds total daily records ending today; the first present
// records (counting back from today) are marked present unless skipFirst
// days are absent.
func addAttendance(store *repository.MemoryStore, studentID string, total, present, skipFirst int) {
	recs := make([]model.AttendanceRecord, 0, total)
	marked := 0
	for i := 0; i < total; i++ {
		isPresent := i >= skipFirst && marked < present
		if isPresent {
			marked++
		}
		recs = append(recs, model.AttendanceRecord{
			ID:        fmt.Sprintf("att-%s-%d", studentID, i),
			StudentID: studentID,
			Date:      daysAgo(i),
			Present:   isPresent,
		})
	}
	_ = store.AddAttendance(context.Background(), recs...)
}

// seedCohort loads three active students and one inactive one:
//   - s-ok:   27/30 present, no incidents                -> 4.0 MINIMAL
//   - s-med:  11/20 present                               -> 40 MEDIUM
//   - s-high: 5/20 present, 11 own delays, 11 route
//     high-priority incidents                             -> 67.75 HIGH
func seedCohort() *repository.MemoryStore {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	_ = store.AddSchool(ctx, model.School{ID: "school-1", Name: "Escola Central"})

	addStudent(store, "s-ok", "r-1")
	addAttendance(store, "s-ok", 30, 27, 3)
	addStudent(store, "s-med", "r-1")
	addAttendance(store, "s-med", 20, 11, 0)
	addStudent(store, "s-high", "r-2")
	addAttendance(store, "s-high", 20, 5, 0)
	_ = store.AddStudent(ctx, model.Student{ID: "s-gone", Name: "Former", Status: model.StudentInactive})

	for i := 0; i < 11; i++ {
		_ = store.AddIncident(ctx,
			model.IncidentRecord{
				ID: fmt.Sprintf("delay-%d", i), RouteID: "r-2", StudentID: "s-high",
				Type: model.IncidentDelay, Priority: model.IncidentLow,
				OccurredAt: fixedNow.AddDate(0, 0, -(i + 1)), Status: model.IncidentResolved,
			},
			model.IncidentRecord{
				ID: fmt.Sprintf("acc-%d", i), RouteID: "r-2",
				Type: model.IncidentAccident, Priority: model.IncidentHigh,
				OccurredAt: fixedNow.AddDate(0, 0, -(i + 1)), Status: model.IncidentOpen,
			},
		)
	}

	_ = store.AddRoute(ctx, model.Route{ID: "r-1", Name: "North", Status: model.RouteActive, Capacity: 40, Occupied: 38})
	_ = store.AddRoute(ctx, model.Route{ID: "r-2", Name: "South", Status: model.RouteActive, Capacity: 40, Occupied: 20})
	_ = store.AddRoute(ctx, model.Route{ID: "r-3", Name: "Old", Status: "inactive", Capacity: 40, Occupied: 0})

	soon := fixedNow.AddDate(0, 0, 2)
	_ = store.AddVehicle(ctx, model.Vehicle{ID: "v-1", Plate: "ABC-1", Make: "Volvo", Model: "B7R", Status: model.VehicleMaintenance})
	_ = store.AddVehicle(ctx, model.Vehicle{ID: "v-2", Plate: "ABC-2", Make: "Mercedes", Model: "OF", Driver: "Carlos", Status: model.VehicleActive, NextMaintenance: &soon})
	_ = store.AddVehicle(ctx, model.Vehicle{ID: "v-3", Plate: "ABC-3", Status: model.VehicleActive})
	return store
}

// flakyStore fails selected collaborator calls.
type flakyStore struct {
	*repository.MemoryStore
	failAttendance     bool
	failIncidents      bool
	failInterventions  bool
	failFleet          bool
	failVehicles       bool
	failDatedIncidents bool
	failListing        bool
	failCreate         bool
	failPing           bool
	missing            map[string]bool
}

func (f *flakyStore) Student(ctx context.Context, id string) (model.Student, error) {
	if f.missing[id] {
		return model.Student{}, repository.ErrNotFound
	}
	return f.MemoryStore.Student(ctx, id)
}

func (f *flakyStore) ActiveStudents(ctx context.Context, offset, limit int) ([]model.Student, error) {
	if f.failListing {
		return nil, errOffline
	}
	return f.MemoryStore.ActiveStudents(ctx, offset, limit)
}

func (f *flakyStore) Attendance(ctx context.Context, q repository.AttendanceQuery) ([]model.AttendanceRecord, error) {
	if f.failAttendance {
		return nil, errOffline
	}
	return f.MemoryStore.Attendance(ctx, q)
}

func (f *flakyStore) Incidents(ctx context.Context, q repository.IncidentQuery) ([]model.IncidentRecord, error) {
	if f.failIncidents || (f.failDatedIncidents && !q.Since.IsZero()) {
		return nil, errOffline
	}
	return f.MemoryStore.Incidents(ctx, q)
}

func (f *flakyStore) Interventions(ctx context.Context, q repository.InterventionQuery) ([]model.InterventionRecord, error) {
	if f.failInterventions {
		return nil, errOffline
	}
	return f.MemoryStore.Interventions(ctx, q)
}

func (f *flakyStore) CreateIntervention(ctx context.Context, rec model.InterventionRecord) error {
	if f.failCreate {
		return errOffline
	}
	return f.MemoryStore.CreateIntervention(ctx, rec)
}

func (f *flakyStore) Routes(ctx context.Context) ([]model.Route, error) {
	if f.failFleet {
		return nil, errOffline
	}
	return f.MemoryStore.Routes(ctx)
}

func (f *flakyStore) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	if f.failVehicles {
		return nil, errOffline
	}
	return f.MemoryStore.Vehicles(ctx)
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.failPing {
		return errOffline
	}
	return f.MemoryStore.Ping(ctx)
}

// capturePublisher records published interventions.
type capturePublisher struct {
	mu   sync.Mutex
	recs []model.InterventionRecord
	err  error
}

func (c *capturePublisher) PublishInterventionCreated(_ context.Context, rec model.InterventionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return c.err
}

func (c *capturePublisher) Close() error { return nil }
