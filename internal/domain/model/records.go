// Package model contains domain models passed between layers.
package model

import "time"

// Student status values.
const (
	StudentActive   = "active"
	StudentInactive = "inactive"
)

// Guardian is a student's responsible adult.
type Guardian struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// ContactComplete reports whether both phone and email are on file.
func (g Guardian) ContactComplete() bool {
	return g.Phone != "" && g.Email != ""
}

// Student is a read-only snapshot from the student directory.
type Student struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Registration      string     `json:"registration,omitempty"`
	SchoolID          string     `json:"school_id,omitempty"`
	RouteID           string     `json:"route_id,omitempty"`
	Status            string     `json:"status"`
	SpecialNeeds      bool       `json:"special_needs"`
	RequiresCompanion bool       `json:"requires_companion"`
	Guardians         []Guardian `json:"guardians"`
}

// AttendanceRecord marks a student present or absent on a day.
// Date is truncated to midnight UTC.
type AttendanceRecord struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"`
	Present   bool      `json:"present"`
	Note      string    `json:"note,omitempty"`
}

// Incident types.
const (
	IncidentDelay        = "delay"
	IncidentBreakdown    = "breakdown"
	IncidentAccident     = "accident"
	IncidentStaffAbsence = "staff-absence"
	IncidentRouteProblem = "route-problem"
	IncidentOther        = "other"
)

// Incident priorities.
const (
	IncidentLow      = "low"
	IncidentMedium   = "medium"
	IncidentHigh     = "high"
	IncidentCritical = "critical"
)

// Incident statuses.
const (
	IncidentOpen       = "open"
	IncidentInProgress = "in-progress"
	IncidentResolved   = "resolved"
)

// IncidentRecord is an occurrence reported against a route.
// StudentID and VehicleID are optional.
type IncidentRecord struct {
	ID         string    `json:"id"`
	RouteID    string    `json:"route_id"`
	StudentID  string    `json:"student_id,omitempty"`
	VehicleID  string    `json:"vehicle_id,omitempty"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	OccurredAt time.Time `json:"occurred_at"`
	Status     string    `json:"status"`
}

// Intervention types.
const (
	InterventionEmergencyContact = "emergency-contact"
	InterventionFamilyMeeting    = "family-meeting"
	InterventionCounseling       = "counseling"
	InterventionMonitoring       = "monitoring"
)

// Intervention statuses. Transitions past pending belong to the external tracker.
const (
	InterventionPending    = "pending"
	InterventionInProgress = "in-progress"
	InterventionCompleted  = "completed"
	InterventionFailed     = "failed"
)

// InterventionRecord is a tracked corrective action for an at-risk student.
type InterventionRecord struct {
	ID                 string    `json:"id"`
	StudentID          string    `json:"student_id"`
	StudentName        string    `json:"student_name,omitempty"`
	Type               string    `json:"intervention_type"`
	Status             string    `json:"status"`
	RiskLevel          string    `json:"risk_level,omitempty"`
	RiskScore          float64   `json:"risk_score"`
	RecommendedActions []string  `json:"recommended_actions,omitempty"`
	AssignedTo         string    `json:"assigned_to,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	ExpectedCompletion time.Time `json:"expected_completion"`
	Outcome            string    `json:"outcome,omitempty"`
}

// Route and vehicle status values.
const (
	RouteActive        = "active"
	VehicleActive      = "active"
	VehicleMaintenance = "maintenance"
)

// Route is a transport route with seat occupancy.
type Route struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SchoolID  string `json:"school_id,omitempty"`
	VehicleID string `json:"vehicle_id,omitempty"`
	Status    string `json:"status"`
	Capacity  int    `json:"capacity"`
	Occupied  int    `json:"occupied"`
}

// Utilization returns occupied/capacity as a percentage, 0 for routes without capacity.
func (r Route) Utilization() float64 {
	if r.Capacity <= 0 {
		return 0
	}
	return float64(r.Occupied) / float64(r.Capacity) * 100
}

// Vehicle is a fleet vehicle. NextMaintenance is nil when not scheduled.
type Vehicle struct {
	ID              string     `json:"id"`
	Plate           string     `json:"plate"`
	Make            string     `json:"make,omitempty"`
	Model           string     `json:"model,omitempty"`
	Driver          string     `json:"driver,omitempty"`
	Status          string     `json:"status"`
	NextMaintenance *time.Time `json:"next_maintenance,omitempty"`
}

// School is a served school.
type School struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
