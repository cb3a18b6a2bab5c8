// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/sigte/riskengine/internal/app"
	"github.com/sigte/riskengine/internal/domain/analytics"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/pkg/logger"
)

// RiskAnalyzer computes student and population risk.
type RiskAnalyzer interface {
	AssessStudentRisk(ctx context.Context, studentID string, comprehensive bool) (scoring.Assessment, error)
	AssessPopulationRisk(ctx context.Context, comprehensive bool) (scoring.PopulationSummary, error)
}

// InterventionRunner triggers and lists interventions.
type InterventionRunner interface {
	RunInterventionWorkflow(ctx context.Context, studentIDs []string) (service.WorkflowResult, error)
	Interventions(ctx context.Context, studentID string) ([]model.InterventionRecord, error)
}

// AnalyticsProvider serves the dashboard and its standalone sections.
type AnalyticsProvider interface {
	DashboardAnalytics(ctx context.Context) (analytics.Dashboard, error)
	FrequencyTrends(ctx context.Context, days int) ([]analytics.TrendPoint, error)
	RouteEfficiency(ctx context.Context) (analytics.EfficiencyReport, error)
	MaintenanceAlerts(ctx context.Context) ([]analytics.MaintenanceAlert, error)
	AbsenceRisk(ctx context.Context, limit int) ([]analytics.AbsenceRiskEntry, error)
	AbsencePatterns(ctx context.Context, studentID string, days int) (analytics.AbsencePatternReport, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RiskAnalyzer
	InterventionRunner
	AnalyticsProvider
	HealthChecker
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	riskHandler         *RiskHandler
	interventionHandler *InterventionHandler
	analyticsHandler    *AnalyticsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(deps),
		statsHandler:        NewStatsHandler(statsProvider),
		riskHandler:         NewRiskHandler(deps),
		interventionHandler: NewInterventionHandler(deps),
		analyticsHandler:    NewAnalyticsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /api/analytics/student-risk/{id}", MetricsMiddleware(s.riskHandler.HandleStudentRisk, "student_risk"))
	mux.HandleFunc("GET /api/analytics/student-risk", MetricsMiddleware(s.riskHandler.HandlePopulationRisk, "population_risk"))

	mux.HandleFunc("POST /api/interventions/workflow", MetricsMiddleware(s.interventionHandler.HandleWorkflow, "intervention_workflow"))
	mux.HandleFunc("GET /api/interventions", MetricsMiddleware(s.interventionHandler.HandleList, "interventions"))

	mux.HandleFunc("GET /api/analytics/dashboard", MetricsMiddleware(s.analyticsHandler.HandleDashboard, "dashboard"))
	mux.HandleFunc("GET /api/analytics/frequency-trends", MetricsMiddleware(s.analyticsHandler.HandleFrequencyTrends, "frequency_trends"))
	mux.HandleFunc("GET /api/analytics/route-efficiency", MetricsMiddleware(s.analyticsHandler.HandleRouteEfficiency, "route_efficiency"))
	mux.HandleFunc("GET /api/analytics/maintenance-alerts", MetricsMiddleware(s.analyticsHandler.HandleMaintenanceAlerts, "maintenance_alerts"))
	mux.HandleFunc("GET /api/analytics/absence-risk", MetricsMiddleware(s.analyticsHandler.HandleAbsenceRisk, "absence_risk"))
	mux.HandleFunc("GET /api/analytics/absence-patterns", MetricsMiddleware(s.analyticsHandler.HandleAbsencePatterns, "absence_patterns"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes the error body.
// Server-side failures are logged; client errors are not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = &Error{Kind: kindOf(err), Err: err}
	}
	status := apiErr.Kind.status()
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: apiErr.Kind.code(), Message: err.Error()})
}
