// Package repository defines the read-mostly data collaborators the risk
// engine consumes and their in-memory and SQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/sigte/riskengine/internal/domain/model"
)

// StudentDirectory resolves students.
type StudentDirectory interface {
	// Student returns ErrNotFound for unknown ids.
	Student(ctx context.Context, id string) (model.Student, error)
	// ActiveStudents pages active students ordered by id.
	ActiveStudents(ctx context.Context, offset, limit int) ([]model.Student, error)
	CountActiveStudents(ctx context.Context) (int, error)
}

// AttendanceQuery filters attendance by student and inclusive day range.
// Empty fields do not filter.
type AttendanceQuery struct {
	StudentID string
	From      time.Time
	To        time.Time
}

// AttendanceSource reads attendance records ordered by date.
type AttendanceSource interface {
	Attendance(ctx context.Context, q AttendanceQuery) ([]model.AttendanceRecord, error)
}

// IncidentQuery filters incidents. Empty fields do not filter; Since and Until are inclusive.
type IncidentQuery struct {
	RouteID    string
	StudentID  string
	Types      []string
	Priorities []string
	Statuses   []string
	Since      time.Time
	Until      time.Time
}

// IncidentSource reads incidents ordered by occurrence time.
type IncidentSource interface {
	Incidents(ctx context.Context, q IncidentQuery) ([]model.IncidentRecord, error)
}

// InterventionQuery filters a student's interventions. Limit <= 0 means no limit.
type InterventionQuery struct {
	StudentID string
	Since     time.Time
	Limit     int
}

// InterventionStore reads and appends intervention records.
type InterventionStore interface {
	// Interventions returns matching records newest first.
	Interventions(ctx context.Context, q InterventionQuery) ([]model.InterventionRecord, error)
	HasPendingIntervention(ctx context.Context, studentID string) (bool, error)
	// CreateIntervention returns ErrDuplicatePending when a pending record already exists for the student.
	CreateIntervention(ctx context.Context, rec model.InterventionRecord) error
}

// FleetSource reads routes, vehicles and schools.
type FleetSource interface {
	Routes(ctx context.Context) ([]model.Route, error)
	Vehicles(ctx context.Context) ([]model.Vehicle, error)
	CountSchools(ctx context.Context) (int, error)
}

// Seeder loads reference data. Used by demo tooling and tests.
type Seeder interface {
	AddSchool(ctx context.Context, s model.School) error
	AddStudent(ctx context.Context, s model.Student) error
	AddRoute(ctx context.Context, r model.Route) error
	AddVehicle(ctx context.Context, v model.Vehicle) error
	AddAttendance(ctx context.Context, recs ...model.AttendanceRecord) error
	AddIncident(ctx context.Context, recs ...model.IncidentRecord) error
}

// Store is every collaborator in one handle.
type Store interface {
	StudentDirectory
	AttendanceSource
	IncidentSource
	InterventionStore
	FleetSource
	Seeder
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

func contains(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func inDayRange(t, from, to time.Time) bool {
	d := model.Day(t)
	if !from.IsZero() && d.Before(model.Day(from)) {
		return false
	}
	if !to.IsZero() && d.After(model.Day(to)) {
		return false
	}
	return true
}

func inTimeRange(t, since, until time.Time) bool {
	if !since.IsZero() && t.Before(since) {
		return false
	}
	if !until.IsZero() && t.After(until) {
		return false
	}
	return true
}
