package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/domain/analytics"
	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

// Dashboard sections that degrade independently.
const (
	SectionStudents   = "students"
	SectionFleet      = "fleet"
	SectionAttendance = "attendance"
	SectionIncidents  = "incidents"
)

// DashboardAnalytics composes every analytics sub-computation. Sections are
// fetched concurrently; a failed section is reported in Degraded and served
// with empty values. A section publishes its data only when every fetch in it
// succeeded.
func (s *Service) DashboardAnalytics(ctx context.Context) (analytics.Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "service.DashboardAnalytics")
	defer span.End()

	now := s.now()
	trendWindow := attendance.NewWindow(now, analytics.DefaultTrendDays-1)
	window := attendance.NewWindow(now, s.windowDays)
	from := window.From
	if trendWindow.From.Before(from) {
		from = trendWindow.From
	}

	var (
		mu       sync.Mutex
		degraded []string

		active     []model.Student
		activeN    int
		routes     []model.Route
		vehicles   []model.Vehicle
		schools    int
		records    []model.AttendanceRecord
		open       []model.IncidentRecord
		monthly    []model.IncidentRecord
		studentsOK bool
	)
	g, gctx := errgroup.WithContext(ctx)
	section := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			fctx, cancel := s.fetch(gctx)
			defer cancel()
			if err := fn(fctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn(ctx, "dashboard section degraded", logger.String("section", name), logger.Error(err))
				metrics.RecordAnalyticsDegraded(name)
				mu.Lock()
				degraded = append(degraded, name)
				mu.Unlock()
			}
			return nil
		})
	}

	section(SectionStudents, func(ctx context.Context) error {
		n, err := s.store.CountActiveStudents(ctx)
		if err != nil {
			return err
		}
		list, err := s.store.ActiveStudents(ctx, 0, s.batchLimit)
		if err != nil {
			return err
		}
		activeN, active, studentsOK = n, list, true
		return nil
	})
	section(SectionFleet, func(ctx context.Context) error {
		rs, err := s.store.Routes(ctx)
		if err != nil {
			return err
		}
		vs, err := s.store.Vehicles(ctx)
		if err != nil {
			return err
		}
		n, err := s.store.CountSchools(ctx)
		if err != nil {
			return err
		}
		routes, vehicles, schools = rs, vs, n
		return nil
	})
	section(SectionAttendance, func(ctx context.Context) error {
		recs, err := s.store.Attendance(ctx, repository.AttendanceQuery{From: from, To: window.To})
		if err != nil {
			return err
		}
		records = recs
		return nil
	})
	section(SectionIncidents, func(ctx context.Context) error {
		o, err := s.store.Incidents(ctx, repository.IncidentQuery{
			Statuses: []string{model.IncidentOpen, model.IncidentInProgress},
		})
		if err != nil {
			return err
		}
		m, err := s.store.Incidents(ctx, repository.IncidentQuery{
			Since: model.Day(now).AddDate(0, 0, -analytics.PerformanceWindowDays),
		})
		if err != nil {
			return err
		}
		open, monthly = o, m
		return nil
	})
	if err := g.Wait(); err != nil {
		return analytics.Dashboard{}, fmt.Errorf("dashboard analytics: %w", err)
	}

	activeRoutes, buses := analytics.FleetKPIs(routes, vehicles)
	parts := attendance.ByStudent(records, window)
	if studentsOK {
		parts = activeOnly(parts, active)
	}
	risk := analytics.AbsenceRisk(parts, analytics.DefaultAbsenceRiskLimit)
	if studentsOK {
		fillStudentDetails(risk, active)
	}
	sort.Strings(degraded)
	if degraded == nil {
		degraded = []string{}
	}

	return analytics.Dashboard{
		KPIs: analytics.KPIs{
			ActiveStudents:          activeN,
			ActiveRoutes:            activeRoutes,
			Buses:                   buses,
			Schools:                 schools,
			OverallAttendanceRate:   analytics.Round1(attendance.Aggregate(records, window, "").Rate),
			AverageFleetUtilization: analytics.Round1(analytics.FleetUtilization(routes)),
			IncidentCounts:          analytics.CountIncidents(open),
		},
		FrequencyTrends:   analytics.FrequencyTrend(records, trendWindow),
		RouteEfficiency:   analytics.RouteEfficiency(routes),
		AbsenceRisk:       risk,
		MaintenanceAlerts: analytics.MaintenanceAlerts(vehicles, now, analytics.MaxMaintenanceAlerts),
		Performance:       analytics.IncidentPerformance(monthly, attendance.NewWindow(now, analytics.PerformanceWindowDays)),
		Degraded:          degraded,
		Timestamp:         now,
	}, nil
}

// FrequencyTrends returns one point per day with records over the last days days.
func (s *Service) FrequencyTrends(ctx context.Context, days int) ([]analytics.TrendPoint, error) {
	if days < 1 || days > analytics.MaxTrendDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidArgument, analytics.MaxTrendDays, days)
	}
	w := attendance.NewWindow(s.now(), days-1)
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	records, err := s.store.Attendance(fctx, repository.AttendanceQuery{From: w.From, To: w.To})
	if err != nil {
		return nil, fmt.Errorf("%w: attendance: %v", ErrDataUnavailable, err)
	}
	return analytics.FrequencyTrend(records, w), nil
}

// RouteEfficiency buckets active routes by seat utilization.
func (s *Service) RouteEfficiency(ctx context.Context) (analytics.EfficiencyReport, error) {
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	routes, err := s.store.Routes(fctx)
	if err != nil {
		return analytics.EfficiencyReport{}, fmt.Errorf("%w: routes: %v", ErrDataUnavailable, err)
	}
	return analytics.RouteEfficiency(routes), nil
}

// MaintenanceAlerts lists vehicles due for maintenance, soonest first.
func (s *Service) MaintenanceAlerts(ctx context.Context) ([]analytics.MaintenanceAlert, error) {
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	vehicles, err := s.store.Vehicles(fctx)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicles: %v", ErrDataUnavailable, err)
	}
	return analytics.MaintenanceAlerts(vehicles, s.now(), analytics.MaxMaintenanceAlerts), nil
}

// AbsenceRisk ranks active students by absence rate over the attendance window.
func (s *Service) AbsenceRisk(ctx context.Context, limit int) ([]analytics.AbsenceRiskEntry, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}
	w := attendance.NewWindow(s.now(), s.windowDays)
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	active, err := s.store.ActiveStudents(fctx, 0, s.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: students: %v", ErrDataUnavailable, err)
	}
	records, err := s.store.Attendance(fctx, repository.AttendanceQuery{From: w.From, To: w.To})
	if err != nil {
		return nil, fmt.Errorf("%w: attendance: %v", ErrDataUnavailable, err)
	}
	out := analytics.AbsenceRisk(activeOnly(attendance.ByStudent(records, w), active), limit)
	fillStudentDetails(out, active)
	return out, nil
}

// AbsencePatterns profiles absences per student over the last days days.
// An empty studentID analyses every student with records in the window.
func (s *Service) AbsencePatterns(ctx context.Context, studentID string, days int) (analytics.AbsencePatternReport, error) {
	if days < analytics.MinPatternDays || days > analytics.MaxPatternDays {
		return analytics.AbsencePatternReport{}, fmt.Errorf("%w: days must be between %d and %d, got %d",
			ErrInvalidArgument, analytics.MinPatternDays, analytics.MaxPatternDays, days)
	}
	w := attendance.NewWindow(s.now(), days)
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	records, err := s.store.Attendance(fctx, repository.AttendanceQuery{StudentID: studentID, From: w.From, To: w.To})
	if err != nil {
		return analytics.AbsencePatternReport{}, fmt.Errorf("%w: attendance: %v", ErrDataUnavailable, err)
	}
	rep := analytics.AbsencePatterns(records, w, studentID)
	s.logger.Debug(ctx, "absence patterns analysed",
		logger.String("student_id", studentID),
		logger.Int("days", days),
		logger.Int("analyzed", rep.AnalyzedStudents),
	)
	return rep, nil
}

func activeOnly(parts []attendance.StudentSummary, active []model.Student) []attendance.StudentSummary {
	ids := make(map[string]struct{}, len(active))
	for _, st := range active {
		ids[st.ID] = struct{}{}
	}
	out := parts[:0:0]
	for _, p := range parts {
		if _, ok := ids[p.StudentID]; ok {
			out = append(out, p)
		}
	}
	return out
}

func fillStudentDetails(entries []analytics.AbsenceRiskEntry, students []model.Student) {
	byID := make(map[string]model.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}
	for i := range entries {
		st := byID[entries[i].StudentID]
		entries[i].Name = st.Name
		entries[i].Registration = st.Registration
		entries[i].SchoolID = st.SchoolID
		entries[i].RouteID = st.RouteID
	}
}
