package service

import (
	"context"
	"time"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

// Trailing windows of the incident and intervention factors.
const (
	punctualityWindowDays  = 30
	incidentWindowDays     = 60
	interventionWindowDays = 180
)

// factorInputs is what the calculators read for one student.
type factorInputs struct {
	student    model.Student
	window     attendance.Window
	now        time.Time
	attendance []model.AttendanceRecord
}

// degrade is the single failure policy for calculators: log, count and use
// the factor's neutral default.
func (s *Service) degrade(ctx context.Context, studentID string, k scoring.FactorKind, err error) scoring.Factor {
	s.logger.Warn(ctx, "factor degraded to neutral default",
		logger.String("student_id", studentID),
		logger.String("factor", k.String()),
		logger.Error(err),
	)
	metrics.RecordDegradedFactor(k.String())
	return s.composer.Neutral(k)
}

// collectFactors runs all five calculators. It never fails; a collaborator
// error degrades only the factor that needed it.
func (s *Service) collectFactors(ctx context.Context, in *factorInputs) []scoring.Factor {
	return []scoring.Factor{
		s.frequencyFactor(ctx, in),
		s.punctualityFactor(ctx, in),
		s.incidentFactor(ctx, in),
		s.composer.SocioeconomicFactor(in.student),
		s.interventionFactor(ctx, in),
	}
}

func (s *Service) frequencyFactor(ctx context.Context, in *factorInputs) scoring.Factor {
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	recs, err := s.store.Attendance(fctx, repository.AttendanceQuery{
		StudentID: in.student.ID,
		From:      in.window.From,
		To:        in.window.To,
	})
	if err != nil {
		return s.degrade(ctx, in.student.ID, scoring.Frequency, err)
	}
	in.attendance = recs
	return s.composer.FrequencyFactor(attendance.Aggregate(recs, in.window, in.student.ID))
}

// punctualityFactor counts delays attributed to the student, plus delays on
// the student's route that name no student.
func (s *Service) punctualityFactor(ctx context.Context, in *factorInputs) scoring.Factor {
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	since := model.Day(in.now).AddDate(0, 0, -punctualityWindowDays)

	own, err := s.store.Incidents(fctx, repository.IncidentQuery{
		StudentID: in.student.ID,
		Types:     []string{model.IncidentDelay},
		Since:     since,
	})
	if err != nil {
		return s.degrade(ctx, in.student.ID, scoring.Punctuality, err)
	}
	seen := make(map[string]struct{}, len(own))
	for _, r := range own {
		seen[r.ID] = struct{}{}
	}
	if in.student.RouteID != "" {
		route, err := s.store.Incidents(fctx, repository.IncidentQuery{
			RouteID: in.student.RouteID,
			Types:   []string{model.IncidentDelay},
			Since:   since,
		})
		if err != nil {
			return s.degrade(ctx, in.student.ID, scoring.Punctuality, err)
		}
		for _, r := range route {
			if r.StudentID == "" {
				seen[r.ID] = struct{}{}
			}
		}
	}
	return s.composer.PunctualityFactor(len(seen))
}

func (s *Service) incidentFactor(ctx context.Context, in *factorInputs) scoring.Factor {
	if in.student.RouteID == "" {
		return s.composer.IncidentFactor("", 0)
	}
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	recs, err := s.store.Incidents(fctx, repository.IncidentQuery{
		RouteID:    in.student.RouteID,
		Priorities: []string{model.IncidentHigh, model.IncidentCritical},
		Since:      model.Day(in.now).AddDate(0, 0, -incidentWindowDays),
	})
	if err != nil {
		return s.degrade(ctx, in.student.ID, scoring.Incidents, err)
	}
	return s.composer.IncidentFactor(in.student.RouteID, len(recs))
}

func (s *Service) interventionFactor(ctx context.Context, in *factorInputs) scoring.Factor {
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	recs, err := s.store.Interventions(fctx, repository.InterventionQuery{
		StudentID: in.student.ID,
		Since:     model.Day(in.now).AddDate(0, 0, -interventionWindowDays),
	})
	if err != nil {
		return s.degrade(ctx, in.student.ID, scoring.InterventionHistory, err)
	}
	return s.composer.InterventionFactor(recs)
}
