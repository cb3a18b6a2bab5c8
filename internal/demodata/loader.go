package demodata

import (
	"context"
	"fmt"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/pkg/logger"
)

// attendanceBatch bounds one AddAttendance call.
const attendanceBatch = 500

// Load writes ds into s, reference data first.
func Load(ctx context.Context, s repository.Seeder, ds Dataset) error {
	for _, sc := range ds.Schools {
		if err := s.AddSchool(ctx, sc); err != nil {
			return fmt.Errorf("add school %s: %w", sc.ID, err)
		}
	}
	for _, v := range ds.Vehicles {
		if err := s.AddVehicle(ctx, v); err != nil {
			return fmt.Errorf("add vehicle %s: %w", v.ID, err)
		}
	}
	for _, r := range ds.Routes {
		if err := s.AddRoute(ctx, r); err != nil {
			return fmt.Errorf("add route %s: %w", r.ID, err)
		}
	}
	for _, st := range ds.Students {
		if err := s.AddStudent(ctx, st); err != nil {
			return fmt.Errorf("add student %s: %w", st.ID, err)
		}
	}
	for start := 0; start < len(ds.Attendance); start += attendanceBatch {
		end := min(start+attendanceBatch, len(ds.Attendance))
		if err := s.AddAttendance(ctx, ds.Attendance[start:end]...); err != nil {
			return fmt.Errorf("add attendance batch at %d: %w", start, err)
		}
	}
	if len(ds.Incidents) > 0 {
		if err := s.AddIncident(ctx, ds.Incidents...); err != nil {
			return fmt.Errorf("add incidents: %w", err)
		}
	}
	logger.Get().Info(ctx, "demo population loaded",
		logger.Int("students", len(ds.Students)),
		logger.Int("attendance", len(ds.Attendance)),
	)
	return nil
}
