package api

import (
	"net/http"
	"strings"

	"github.com/sigte/riskengine/internal/domain/analytics"
)

// AnalyticsHandler serves the dashboard and its sections.
type AnalyticsHandler struct {
	provider AnalyticsProvider
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(provider AnalyticsProvider) *AnalyticsHandler {
	return &AnalyticsHandler{provider: provider}
}

// HandleDashboard handles GET /api/analytics/dashboard.
func (h *AnalyticsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.provider.DashboardAnalytics(r.Context())
	if err != nil {
		writeError(w, r, Wrap("dashboard", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleFrequencyTrends handles GET /api/analytics/frequency-trends?days=N.
func (h *AnalyticsHandler) HandleFrequencyTrends(w http.ResponseWriter, r *http.Request) {
	const op = "frequency trends"
	days, err := queryInt(r, "days", analytics.DefaultTrendDays)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	points, err := h.provider.FrequencyTrends(r.Context(), days)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// HandleRouteEfficiency handles GET /api/analytics/route-efficiency.
func (h *AnalyticsHandler) HandleRouteEfficiency(w http.ResponseWriter, r *http.Request) {
	report, err := h.provider.RouteEfficiency(r.Context())
	if err != nil {
		writeError(w, r, Wrap("route efficiency", err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleMaintenanceAlerts handles GET /api/analytics/maintenance-alerts.
func (h *AnalyticsHandler) HandleMaintenanceAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.provider.MaintenanceAlerts(r.Context())
	if err != nil {
		writeError(w, r, Wrap("maintenance alerts", err))
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// HandleAbsenceRisk handles GET /api/analytics/absence-risk?limit=N.
func (h *AnalyticsHandler) HandleAbsenceRisk(w http.ResponseWriter, r *http.Request) {
	const op = "absence risk"
	limit, err := queryInt(r, "limit", analytics.DefaultAbsenceRiskLimit)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	entries, err := h.provider.AbsenceRisk(r.Context(), limit)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleAbsencePatterns handles GET /api/analytics/absence-patterns?student_id=ID&days=N.
func (h *AnalyticsHandler) HandleAbsencePatterns(w http.ResponseWriter, r *http.Request) {
	const op = "absence patterns"
	days, err := queryInt(r, "days", analytics.DefaultPatternDays)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
	report, err := h.provider.AbsencePatterns(r.Context(), studentID, days)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
