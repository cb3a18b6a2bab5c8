package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/internal/domain/types"
	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

// Workflow triggers.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Reasons a workflow candidate produced no record.
const (
	SkipInFlight   = "in_flight"
	SkipNotFound   = "not_found"
	SkipPending    = "pending"
	SkipStoreError = "store_error"
)

// SkippedStudent explains why a candidate produced no record.
type SkippedStudent struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// WorkflowResult is the outcome of one workflow run.
type WorkflowResult struct {
	Created       int                        `json:"created_count"`
	Interventions []model.InterventionRecord `json:"interventions"`
	Skipped       []SkippedStudent           `json:"skipped"`
}

func (r *WorkflowResult) skip(id, reason string) {
	r.Skipped = append(r.Skipped, SkippedStudent{StudentID: id, Reason: reason})
	metrics.RecordInterventionSkipped(reason)
}

// InterventionType maps a risk level to the intervention it triggers.
func InterventionType(level types.RiskLevel) string {
	switch level {
	case types.RiskCritical:
		return model.InterventionEmergencyContact
	case types.RiskHigh:
		return model.InterventionFamilyMeeting
	case types.RiskMedium:
		return model.InterventionCounseling
	default:
		return model.InterventionMonitoring
	}
}

// InterventionActions returns the fixed action list for a risk level.
func InterventionActions(level types.RiskLevel) []string {
	switch level {
	case types.RiskCritical:
		return []string{
			"Contact guardians immediately",
			"Home visit",
			"Referral to social assistance",
			"Personalised recovery plan",
		}
	case types.RiskHigh:
		return []string{
			"Meeting with the family",
			"Weekly follow-up",
			"Specialised pedagogical support",
			"Socioeconomic situation check",
		}
	case types.RiskMedium:
		return []string{
			"Conversation with guardians",
			"Fortnightly follow-up",
			"Guidance on the importance of attendance",
			"Educational support",
		}
	case types.RiskLow:
		return []string{
			"Monthly monitoring",
			"Preventive communication",
			"Engagement activities",
		}
	default:
		return []string{"Standard monitoring"}
	}
}

// RunInterventionWorkflow creates pending interventions for studentIDs, or,
// when none are given, for up to the candidate limit of HIGH and CRITICAL
// students from a population analysis.
func (s *Service) RunInterventionWorkflow(ctx context.Context, studentIDs []string) (WorkflowResult, error) {
	return s.runWorkflow(ctx, studentIDs, TriggerAPI)
}

// RunScheduledWorkflow is the scheduler's entry point: an auto-selecting run.
func (s *Service) RunScheduledWorkflow(ctx context.Context) error {
	res, err := s.runWorkflow(ctx, nil, TriggerSchedule)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "scheduled workflow run",
		logger.Int("created", res.Created),
		logger.Int("skipped", len(res.Skipped)),
	)
	return nil
}

func (s *Service) runWorkflow(ctx context.Context, studentIDs []string, trigger string) (WorkflowResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.RunInterventionWorkflow", trace.WithAttributes(
		attribute.String("workflow.trigger", trigger),
		attribute.Int("workflow.requested", len(studentIDs)),
	))
	defer span.End()
	metrics.RecordWorkflowRun(trigger)

	res := WorkflowResult{Interventions: []model.InterventionRecord{}, Skipped: []SkippedStudent{}}
	candidates := studentIDs
	if len(candidates) == 0 {
		var err error
		if candidates, err = s.workflowCandidates(ctx); err != nil {
			return res, err
		}
	}

	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("intervention workflow: %w", err)
		}
		s.processCandidate(ctx, id, &res)
	}
	res.Created = len(res.Interventions)
	span.SetAttributes(
		attribute.Int("workflow.created", res.Created),
		attribute.Int("workflow.skipped", len(res.Skipped)),
	)
	return res, nil
}

// workflowCandidates selects HIGH and CRITICAL students in ranked order.
func (s *Service) workflowCandidates(ctx context.Context) ([]string, error) {
	summary, err := s.AssessPopulationRisk(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, e := range summary.TopStudents {
		if len(ids) == s.candidateLimit {
			break
		}
		if e.RiskLevel.AtLeast(types.RiskHigh) {
			ids = append(ids, e.StudentID)
		}
	}
	return ids, nil
}

func (s *Service) processCandidate(ctx context.Context, id string, res *WorkflowResult) {
	if !s.guard.Acquire(ctx, id) {
		res.skip(id, SkipInFlight)
		return
	}
	defer s.guard.Release(ctx, id)

	a, err := s.AssessStudentRisk(ctx, id, false)
	if err != nil {
		reason := SkipStoreError
		if errors.Is(err, repository.ErrNotFound) {
			reason = SkipNotFound
		}
		s.logger.Warn(ctx, "workflow candidate skipped", logger.String("student_id", id), logger.String("reason", reason), logger.Error(err))
		res.skip(id, reason)
		return
	}

	fctx, cancel := s.fetch(ctx)
	defer cancel()
	pending, err := s.store.HasPendingIntervention(fctx, id)
	if err != nil {
		s.logger.Warn(ctx, "pending check failed", logger.String("student_id", id), logger.Error(err))
		res.skip(id, SkipStoreError)
		return
	}
	if pending {
		res.skip(id, SkipPending)
		return
	}

	rec := s.newIntervention(a)
	if err := s.store.CreateIntervention(fctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			res.skip(id, SkipPending)
			return
		}
		s.logger.Error(ctx, "intervention not persisted", logger.String("student_id", id), logger.Error(err))
		res.skip(id, SkipStoreError)
		return
	}
	res.Interventions = append(res.Interventions, rec)
	metrics.RecordInterventionCreated(rec.Type)
	s.logger.Info(ctx, "intervention created",
		logger.String("student_id", id),
		logger.String("intervention_id", rec.ID),
		logger.String("type", rec.Type),
		logger.String("risk_level", rec.RiskLevel),
	)

	if err := s.publisher.PublishInterventionCreated(ctx, rec); err != nil {
		metrics.RecordPublishError()
		s.logger.Warn(ctx, "intervention event not published", logger.String("intervention_id", rec.ID), logger.Error(err))
	}
}

func (s *Service) newIntervention(a scoring.Assessment) model.InterventionRecord {
	now := s.now()
	return model.InterventionRecord{
		ID:                 uuid.NewString(),
		StudentID:          a.StudentID,
		StudentName:        a.StudentName,
		Type:               InterventionType(a.RiskLevel),
		Status:             model.InterventionPending,
		RiskLevel:          string(a.RiskLevel),
		RiskScore:          a.RiskScore,
		RecommendedActions: InterventionActions(a.RiskLevel),
		AssignedTo:         s.owner,
		CreatedAt:          now,
		ExpectedCompletion: now.AddDate(0, 0, s.horizonDays),
	}
}

// Interventions lists recorded interventions, newest first, optionally for one student.
func (s *Service) Interventions(ctx context.Context, studentID string) ([]model.InterventionRecord, error) {
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	recs, err := s.store.Interventions(fctx, repository.InterventionQuery{StudentID: studentID})
	if err != nil {
		return nil, fmt.Errorf("%w: interventions: %v", ErrDataUnavailable, err)
	}
	return recs, nil
}
