package api

import (
	"net/http"
	"strings"
)

// RiskHandler serves student and population risk assessments.
type RiskHandler struct {
	analyzer RiskAnalyzer
}

// NewRiskHandler creates a new risk handler.
func NewRiskHandler(analyzer RiskAnalyzer) *RiskHandler {
	return &RiskHandler{analyzer: analyzer}
}

// HandleStudentRisk handles GET /api/analytics/student-risk/{id}.
func (h *RiskHandler) HandleStudentRisk(w http.ResponseWriter, r *http.Request) {
	const op = "student risk"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, NewKind(op, KindBadRequest, "missing student id"))
		return
	}
	comprehensive, err := queryBool(r, "comprehensive")
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	a, err := h.analyzer.AssessStudentRisk(r.Context(), id, comprehensive)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandlePopulationRisk handles GET /api/analytics/student-risk.
func (h *RiskHandler) HandlePopulationRisk(w http.ResponseWriter, r *http.Request) {
	const op = "population risk"
	comprehensive, err := queryBool(r, "comprehensive")
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	summary, err := h.analyzer.AssessPopulationRisk(r.Context(), comprehensive)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
