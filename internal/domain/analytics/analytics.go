// Package analytics computes cohort-level KPIs from the same collections the
// risk engine reads. All functions are pure.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/types"
)

// Defaults for the analytics endpoints.
const (
	DefaultTrendDays        = 7
	MaxTrendDays            = 365
	DefaultAbsenceRiskLimit = 10
	MaxMaintenanceAlerts    = 50
	PerformanceWindowDays   = 30
	absenceRiskThreshold    = 25.0
	noMaintenanceDays       = 999
)

// Round1 rounds to one decimal place.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }

// TrendPoint is one day of cohort attendance.
type TrendPoint struct {
	Date     string  `json:"date"`
	Rate     float64 `json:"attendance_rate"`
	Students int     `json:"student_count"`
	Present  int     `json:"present_count"`
}

// FrequencyTrend buckets records in the trailing window by day, ascending.
// Days without records are omitted.
func FrequencyTrend(records []model.AttendanceRecord, w attendance.Window) []TrendPoint {
	byDay := map[time.Time]*TrendPoint{}
	for _, r := range records {
		if !w.Contains(r.Date) {
			continue
		}
		d := model.Day(r.Date)
		p, ok := byDay[d]
		if !ok {
			p = &TrendPoint{Date: d.Format(time.DateOnly)}
			byDay[d] = p
		}
		p.Students++
		if r.Present {
			p.Present++
		}
	}
	out := make([]TrendPoint, 0, len(byDay))
	for _, p := range byDay {
		p.Rate = Round1(float64(p.Present) / float64(p.Students) * 100)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Efficiency bucket labels, in display order.
const (
	EfficiencyExcellent = "Excellent"
	EfficiencyGood      = "Good"
	EfficiencyRegular   = "Regular"
	EfficiencyLow       = "Low"
)

var efficiencyOrder = []struct{ label, color string }{ //nolint:gochecknoglobals // fixed display order
	{EfficiencyExcellent, "#10b981"},
	{EfficiencyGood, "#3b82f6"},
	{EfficiencyRegular, "#f59e0b"},
	{EfficiencyLow, "#ef4444"},
}

// EfficiencyCategory buckets a utilization percentage.
func EfficiencyCategory(util float64) string {
	switch {
	case util >= 90:
		return EfficiencyExcellent
	case util >= 70:
		return EfficiencyGood
	case util >= 50:
		return EfficiencyRegular
	default:
		return EfficiencyLow
	}
}

// EfficiencyBucket is one bar of the route efficiency histogram.
type EfficiencyBucket struct {
	Label              string  `json:"label"`
	Count              int     `json:"count"`
	AverageUtilization float64 `json:"avg_utilization"`
	Color              string  `json:"color"`
}

// EfficiencyReport is the route efficiency histogram over active routes.
type EfficiencyReport struct {
	Buckets     []EfficiencyBucket `json:"buckets"`
	TotalRoutes int                `json:"total_routes"`
}

// RouteEfficiency buckets active routes by utilization. Every bucket is present.
func RouteEfficiency(routes []model.Route) EfficiencyReport {
	sums := map[string]float64{}
	counts := map[string]int{}
	total := 0
	for _, r := range routes {
		if r.Status != model.RouteActive {
			continue
		}
		u := r.Utilization()
		c := EfficiencyCategory(u)
		sums[c] += u
		counts[c]++
		total++
	}
	rep := EfficiencyReport{Buckets: make([]EfficiencyBucket, 0, len(efficiencyOrder)), TotalRoutes: total}
	for _, b := range efficiencyOrder {
		bucket := EfficiencyBucket{Label: b.label, Count: counts[b.label], Color: b.color}
		if bucket.Count > 0 {
			bucket.AverageUtilization = Round1(sums[b.label] / float64(bucket.Count))
		}
		rep.Buckets = append(rep.Buckets, bucket)
	}
	return rep
}

// FleetUtilization is total occupied seats over total capacity of active routes, as a percentage.
func FleetUtilization(routes []model.Route) float64 {
	var capacity, occupied int
	for _, r := range routes {
		if r.Status != model.RouteActive {
			continue
		}
		capacity += r.Capacity
		occupied += r.Occupied
	}
	if capacity <= 0 {
		return 0
	}
	return float64(occupied) / float64(capacity) * 100
}

// Maintenance alert levels.
const (
	AlertCritical = "CRITICAL"
	AlertOverdue  = "OVERDUE"
	AlertUrgent   = "URGENT"
	AlertWarning  = "WARNING"
	AlertInfo     = "INFO"
)

// MaintenanceAlert describes a vehicle's maintenance status.
type MaintenanceAlert struct {
	VehicleID            string     `json:"vehicle_id"`
	Plate                string     `json:"plate"`
	Model                string     `json:"model"`
	Driver               string     `json:"driver"`
	AlertLevel           string     `json:"alert_level"`
	DaysUntilMaintenance int        `json:"days_until_maintenance"`
	NextMaintenance      *time.Time `json:"next_maintenance,omitempty"`
	Status               string     `json:"status"`
	Message              string     `json:"message"`
}

// DaysUntil returns whole days from today to the vehicle's next maintenance.
// Unscheduled vehicles report 999.
func DaysUntil(v model.Vehicle, today time.Time) int {
	if v.NextMaintenance == nil {
		return noMaintenanceDays
	}
	return int(model.Day(*v.NextMaintenance).Sub(model.Day(today)).Hours() / 24)
}

// AlertLevel classifies a vehicle. Maintenance status wins over dates.
func AlertLevel(status string, days int) string {
	switch {
	case status == model.VehicleMaintenance:
		return AlertCritical
	case days <= 0:
		return AlertOverdue
	case days <= 3:
		return AlertUrgent
	case days <= 7:
		return AlertWarning
	default:
		return AlertInfo
	}
}

func maintenanceMessage(v model.Vehicle, days int) string {
	switch {
	case v.Status == model.VehicleMaintenance:
		return fmt.Sprintf("Vehicle %s is in maintenance", v.Plate)
	case days < 0:
		return fmt.Sprintf("Maintenance overdue by %d days", -days)
	case days == 0:
		return "Maintenance due today"
	case days <= 3:
		return fmt.Sprintf("Maintenance due in %d days - URGENT", days)
	default:
		return fmt.Sprintf("Maintenance due in %d days", days)
	}
}

// MaintenanceAlerts lists vehicles that are in maintenance or have a scheduled date,
// sorted ascending by days until maintenance and capped at limit.
func MaintenanceAlerts(vehicles []model.Vehicle, today time.Time, limit int) []MaintenanceAlert {
	if limit <= 0 || limit > MaxMaintenanceAlerts {
		limit = MaxMaintenanceAlerts
	}
	out := []MaintenanceAlert{}
	for _, v := range vehicles {
		if v.NextMaintenance == nil && v.Status != model.VehicleMaintenance {
			continue
		}
		days := DaysUntil(v, today)
		driver := v.Driver
		if driver == "" {
			driver = "N/A"
		}
		out = append(out, MaintenanceAlert{
			VehicleID:            v.ID,
			Plate:                v.Plate,
			Model:                fmt.Sprintf("%s %s", v.Make, v.Model),
			Driver:               driver,
			AlertLevel:           AlertLevel(v.Status, days),
			DaysUntilMaintenance: days,
			NextMaintenance:      v.NextMaintenance,
			Status:               v.Status,
			Message:              maintenanceMessage(v, days),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysUntilMaintenance < out[j].DaysUntilMaintenance
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AbsenceRiskEntry is a student whose absence rate crossed the alert threshold.
type AbsenceRiskEntry struct {
	StudentID     string          `json:"id"`
	Name          string          `json:"name"`
	Registration  string          `json:"registration"`
	SchoolID      string          `json:"school"`
	RouteID       string          `json:"route"`
	RiskLevel     types.RiskLevel `json:"risk_level"`
	AbsenceRate   float64         `json:"absence_rate"`
	TotalRecords  int             `json:"total_records"`
	AbsentRecords int             `json:"absent_records"`
}

// AbsenceLevel maps an absence rate to HIGH, MEDIUM or LOW.
func AbsenceLevel(rate float64) types.RiskLevel {
	switch {
	case rate >= 50:
		return types.RiskHigh
	case rate >= 35:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// AbsenceRisk ranks students with absence >= 25% descending, keeping the first limit.
// Student details are left for the caller to fill.
func AbsenceRisk(parts []attendance.StudentSummary, limit int) []AbsenceRiskEntry {
	if limit <= 0 {
		limit = DefaultAbsenceRiskLimit
	}
	out := []AbsenceRiskEntry{}
	for _, p := range parts {
		if p.TotalRecords == 0 {
			continue
		}
		rate := p.AbsenceRate()
		if rate < absenceRiskThreshold {
			continue
		}
		out = append(out, AbsenceRiskEntry{
			StudentID:     p.StudentID,
			RiskLevel:     AbsenceLevel(rate),
			AbsenceRate:   Round1(rate),
			TotalRecords:  p.TotalRecords,
			AbsentRecords: p.Absent,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AbsenceRate > out[j].AbsenceRate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// IncidentCounts holds the open-incident KPIs.
type IncidentCounts struct {
	Open     int `json:"open_incidents"`
	Critical int `json:"critical_incidents"`
}

// CountIncidents counts open or in-progress incidents, and open critical ones.
func CountIncidents(incidents []model.IncidentRecord) IncidentCounts {
	var c IncidentCounts
	for _, in := range incidents {
		switch in.Status {
		case model.IncidentOpen:
			c.Open++
			if in.Priority == model.IncidentCritical {
				c.Critical++
			}
		case model.IncidentInProgress:
			c.Open++
		}
	}
	return c
}

// Performance reports incident resolution over the trailing window.
type Performance struct {
	TotalIncidents    int     `json:"total_incidents_month"`
	ResolvedIncidents int     `json:"resolved_incidents_month"`
	ResolutionRate    float64 `json:"incident_resolution_rate"`
}

// IncidentPerformance computes the resolution rate of incidents inside w.
func IncidentPerformance(incidents []model.IncidentRecord, w attendance.Window) Performance {
	var p Performance
	for _, in := range incidents {
		if !w.Contains(in.OccurredAt) {
			continue
		}
		p.TotalIncidents++
		if in.Status == model.IncidentResolved {
			p.ResolvedIncidents++
		}
	}
	if p.TotalIncidents > 0 {
		p.ResolutionRate = Round1(float64(p.ResolvedIncidents) / float64(p.TotalIncidents) * 100)
	}
	return p
}

// KPIs is the headline block of the dashboard.
type KPIs struct {
	ActiveStudents          int     `json:"total_active_students"`
	ActiveRoutes            int     `json:"total_active_routes"`
	Buses                   int     `json:"total_buses"`
	Schools                 int     `json:"total_schools"`
	OverallAttendanceRate   float64 `json:"overall_attendance_rate"`
	AverageFleetUtilization float64 `json:"average_fleet_utilization"`
	IncidentCounts
}

// Dashboard is the composed KPI snapshot.
type Dashboard struct {
	KPIs              KPIs               `json:"kpis"`
	FrequencyTrends   []TrendPoint       `json:"frequency_trends"`
	RouteEfficiency   EfficiencyReport   `json:"route_efficiency"`
	AbsenceRisk       []AbsenceRiskEntry `json:"risk_students"`
	MaintenanceAlerts []MaintenanceAlert `json:"maintenance_alerts"`
	Performance       Performance        `json:"performance_metrics"`
	Degraded          []string           `json:"degraded_sections"`
	Timestamp         time.Time          `json:"timestamp"`
}

// FleetKPIs counts active routes and buses (active or in maintenance).
func FleetKPIs(routes []model.Route, vehicles []model.Vehicle) (activeRoutes, buses int) {
	for _, r := range routes {
		if r.Status == model.RouteActive {
			activeRoutes++
		}
	}
	for _, v := range vehicles {
		if v.Status == model.VehicleActive || v.Status == model.VehicleMaintenance {
			buses++
		}
	}
	return activeRoutes, buses
}
