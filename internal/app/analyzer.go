package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

const (
	historyLimit   = 10
	pendingOutcome = "Pending"
)

// AssessStudentRisk computes a fresh assessment for one student. It fails
// only when the student cannot be resolved; every other collaborator
// failure degrades the affected factor.
func (s *Service) AssessStudentRisk(ctx context.Context, studentID string, comprehensive bool) (scoring.Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "service.AssessStudentRisk", trace.WithAttributes(
		attribute.String("student.id", studentID),
		attribute.Bool("comprehensive", comprehensive),
	))
	defer span.End()
	start := time.Now()

	a, err := s.assess(ctx, studentID, comprehensive)
	latency := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		outcome := "error"
		if errors.Is(err, repository.ErrNotFound) {
			outcome = "not_found"
		}
		metrics.RecordAssessment(outcome, latency)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return scoring.Assessment{}, err
	}

	metrics.RecordAssessment("ok", latency)
	metrics.RecordRiskLevel(string(a.RiskLevel))
	span.SetAttributes(
		attribute.Float64("risk.score", a.RiskScore),
		attribute.String("risk.level", string(a.RiskLevel)),
		attribute.Int("risk.degraded_factors", len(a.DegradedFactors)),
	)
	return a, nil
}

func (s *Service) assess(ctx context.Context, studentID string, comprehensive bool) (scoring.Assessment, error) {
	fctx, cancel := s.fetch(ctx)
	st, err := s.store.Student(fctx, studentID)
	cancel()
	if err != nil {
		return scoring.Assessment{}, fmt.Errorf("resolve student %s: %w", studentID, err)
	}

	now := s.now()
	in := &factorInputs{
		student: st,
		window:  attendance.NewWindow(now, s.windowDays),
		now:     now,
	}
	factors := s.collectFactors(ctx, in)
	a := scoring.Assess(st, factors, now)
	a.InterventionHistory = s.history(ctx, studentID)
	if comprehensive {
		a.Extended = scoring.BuildExtended(st, factors, in.attendance)
	}
	return a, nil
}

// history returns up to ten recent interventions, newest first. It is
// display-only, so a failure yields an empty list.
func (s *Service) history(ctx context.Context, studentID string) []scoring.HistoryEntry {
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	recs, err := s.store.Interventions(fctx, repository.InterventionQuery{StudentID: studentID, Limit: historyLimit})
	if err != nil {
		s.logger.Warn(ctx, "intervention history unavailable",
			logger.String("student_id", studentID),
			logger.Error(err),
		)
		return []scoring.HistoryEntry{}
	}
	out := make([]scoring.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = pendingOutcome
		}
		out = append(out, scoring.HistoryEntry{Date: r.CreatedAt, Type: r.Type, Status: r.Status, Outcome: outcome})
	}
	return out
}
