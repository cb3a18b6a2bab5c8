package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sigte/riskengine/internal/adapters/mq/queue"
	"github.com/sigte/riskengine/internal/adapters/mq/worker"
	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

// AssessPopulationRisk assesses up to the batch limit of active students and
// summarises them. Per-student failures are skipped and counted. The
// comprehensive flag is accepted for symmetry; students are always assessed
// without the extended sub-analyses.
func (s *Service) AssessPopulationRisk(ctx context.Context, comprehensive bool) (scoring.PopulationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "service.AssessPopulationRisk")
	defer span.End()
	start := time.Now()
	now := s.now()

	fctx, cancel := s.fetch(ctx)
	students, err := s.store.ActiveStudents(fctx, 0, s.batchLimit)
	cancel()
	if err != nil {
		s.logger.Error(ctx, "active student listing unavailable", logger.Error(err))
		metrics.RecordAnalyticsDegraded("population")
		summary := scoring.Summarize(nil, s.topN, now)
		summary.Degraded = true
		return summary, nil
	}

	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	results := make([]*scoring.Assessment, len(ids))
	err = worker.Run(ctx, s.workerCount, s.queueSize, ids, func(ctx context.Context, j queue.Job) error {
		a, err := s.AssessStudentRisk(ctx, j.StudentID, false)
		if err != nil {
			return err
		}
		results[j.Index] = &a
		return nil
	})
	if err != nil {
		return scoring.PopulationSummary{}, fmt.Errorf("population analysis: %w", err)
	}

	assessed := make([]scoring.Assessment, 0, len(results))
	for i, a := range results {
		if a == nil {
			s.logger.Warn(ctx, "student skipped in population analysis", logger.String("student_id", ids[i]))
			continue
		}
		assessed = append(assessed, *a)
	}
	summary := scoring.Summarize(assessed, s.topN, now)
	summary.Skipped = len(ids) - len(assessed)

	metrics.RecordPopulationRun(summary.Skipped, float64(time.Since(start).Milliseconds()))
	span.SetAttributes(
		attribute.Int("population.analyzed", summary.TotalAnalyzed),
		attribute.Int("population.skipped", summary.Skipped),
		attribute.Bool("comprehensive", comprehensive),
	)
	s.logger.Info(ctx, "population analysis finished",
		logger.Int("analyzed", summary.TotalAnalyzed),
		logger.Int("skipped", summary.Skipped),
		logger.Float64("high_risk_percentage", summary.HighRiskPercentage),
	)
	return summary, nil
}
