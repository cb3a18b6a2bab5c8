package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxWorkflowBody = 1 << 20

// workflowRequest mirrors the OpenAPI schema for POST /api/interventions/workflow.
type workflowRequest struct {
	StudentIDs []string `json:"student_ids"`
}

func (req *workflowRequest) normalize() error {
	ids := make([]string, 0, len(req.StudentIDs))
	for i, id := range req.StudentIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("%w: student_ids[%d] is empty", ErrBadRequest, i)
		}
		ids = append(ids, id)
	}
	req.StudentIDs = ids
	return nil
}

// InterventionHandler triggers the intervention workflow and lists records.
type InterventionHandler struct {
	runner InterventionRunner
}

// NewInterventionHandler creates a new intervention handler.
func NewInterventionHandler(runner InterventionRunner) *InterventionHandler {
	return &InterventionHandler{runner: runner}
}

// HandleWorkflow handles POST /api/interventions/workflow. An empty body or
// an empty id list lets the service pick candidates itself.
func (h *InterventionHandler) HandleWorkflow(w http.ResponseWriter, r *http.Request) {
	const op = "intervention workflow"
	var req workflowRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWorkflowBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, WrapKind(op, KindBadRequest, fmt.Errorf("invalid JSON: %w", err)))
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	res, err := h.runner.RunInterventionWorkflow(r.Context(), req.StudentIDs)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleList handles GET /api/interventions with an optional student_id filter.
func (h *InterventionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.runner.Interventions(r.Context(), strings.TrimSpace(r.URL.Query().Get("student_id")))
	if err != nil {
		writeError(w, r, Wrap("list interventions", err))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
