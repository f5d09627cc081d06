package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkazarov/landpick/internal/config"
	"github.com/dkazarov/landpick/internal/fields"
	"github.com/dkazarov/landpick/internal/metrics"
	"github.com/dkazarov/landpick/internal/selector"
	"github.com/dkazarov/landpick/internal/session"
)

const (
	maxBatchSize = 100
	batchWorkers = 8
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng       *selector.Engine
	store     *session.Store
	loader    *config.Loader
	collector *fields.Collector
	mux       *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *selector.Engine, store *session.Store, loader *config.Loader, collector *fields.Collector) http.Handler {
	h := &Handler{eng: eng, store: store, loader: loader, collector: collector, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/sessions", h.createSession)
	h.mux.HandleFunc("GET /v1/sessions/{id}/next", h.nextQuestion)
	h.mux.HandleFunc("POST /v1/sessions/{id}/answers", h.recordAnswer)
	h.mux.HandleFunc("POST /v1/sessions/{id}/resolve", h.resolveSession)
	h.mux.HandleFunc("POST /v1/sessions/{id}/reset", h.resetSession)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}", h.deleteSession)

	h.mux.HandleFunc("POST /v1/quick-select", h.quickSelect)
	h.mux.HandleFunc("POST /v1/quick-select/batch", h.quickSelectBatch)

	h.mux.HandleFunc("GET /v1/templates", h.listTemplates)
	h.mux.HandleFunc("GET /v1/templates/{id}", h.templateInfo)
	h.mux.HandleFunc("GET /v1/templates/{id}/fields", h.templateFields)
	h.mux.HandleFunc("POST /v1/fields/validate", h.validateField)
	h.mux.HandleFunc("POST /v1/fields/format", h.formatFields)

	h.mux.HandleFunc("POST /v1/compatibility", h.checkCompatibility)
	h.mux.HandleFunc("POST /v1/modifications", h.recommendedModifications)

	h.mux.HandleFunc("GET /v1/rules", h.listRules)
	h.mux.HandleFunc("POST /v1/rules/reload", h.reloadRules)

	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// sessionEnvelope wraps every session response.
type sessionEnvelope struct {
	SessionID string          `json:"session_id"`
	Result    selector.Result `json:"result"`
}

// POST /v1/sessions — start a questionnaire. The response names the
// well-known first step; the caller records the first answer under it.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	id := h.store.Create()
	metrics.SessionsStarted.Inc()
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": id,
		"first_step": config.FirstStep,
	})
}

// GET /v1/sessions/{id}/next — idempotent: re-asks the pending question.
func (h *Handler) nextQuestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var res selector.Result
	ok := h.store.With(id, func(s *selector.Session) {
		res = s.Advance()
	})
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown session %s", id))
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{SessionID: id, Result: res})
}

type answerRequest struct {
	StepID string `json:"step_id"`
	Answer any    `json:"answer"`
}

// POST /v1/sessions/{id}/answers — record an answer and advance.
func (h *Handler) recordAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.StepID == "" {
		writeError(w, http.StatusBadRequest, "step_id is required")
		return
	}

	start := time.Now()
	var res selector.Result
	ok := h.store.With(id, func(s *selector.Session) {
		res = s.RecordAnswer(req.StepID, req.Answer)
	})
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown session %s", id))
		return
	}
	metrics.AnswersRecorded.Inc()
	metrics.SelectionDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	observeResult(res)
	writeJSON(w, http.StatusOK, sessionEnvelope{SessionID: id, Result: res})
}

// resolveEnvelope adds the compatibility report and recommended
// modifications for the selected template to the selection result.
type resolveEnvelope struct {
	SessionID     string                  `json:"session_id"`
	Result        selector.Result         `json:"result"`
	Compatibility selector.CompatReport   `json:"compatibility"`
	Modifications []selector.Modification `json:"modifications"`
}

// POST /v1/sessions/{id}/resolve — resolve early, before tree exhaustion.
func (h *Handler) resolveSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var env resolveEnvelope
	ok := h.store.With(id, func(s *selector.Session) {
		res := s.Resolve()
		scenarios := s.SpecialScenarios()
		base := res.BaseTemplate
		if base == "" {
			base = res.Template
		}
		env = resolveEnvelope{
			SessionID:     id,
			Result:        res,
			Compatibility: h.eng.CheckCompatibility(base, scenarios),
			Modifications: h.eng.RecommendedModifications(res.Template, scenarios),
		}
	})
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown session %s", id))
		return
	}
	if env.Modifications == nil {
		env.Modifications = []selector.Modification{}
	}
	metrics.CompatibilityWarnings.Add(float64(len(env.Compatibility.Warnings)))
	observeResult(env.Result)
	writeJSON(w, http.StatusOK, env)
}

// POST /v1/sessions/{id}/reset — clear answers, back to the first step.
func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok := h.store.With(id, func(s *selector.Session) {
		s.Reset()
	})
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown session %s", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /v1/sessions/{id}
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.Delete(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown session %s", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quickSelectRequest struct {
	Text string `json:"text"`
}

// POST /v1/quick-select — keyword fast path over one text.
func (h *Handler) quickSelect(w http.ResponseWriter, r *http.Request) {
	var req quickSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	res, ok := h.eng.QuickSelect(req.Text)
	if !ok {
		metrics.QuickSelects.WithLabelValues("miss").Inc()
		writeError(w, http.StatusNotFound, "no keyword match")
		return
	}
	metrics.QuickSelects.WithLabelValues("hit").Inc()
	writeJSON(w, http.StatusOK, res)
}

type batchQuickSelectRequest struct {
	Texts []string `json:"texts"`
}

type batchQuickSelectItem struct {
	Matched bool             `json:"matched"`
	Result  *selector.Result `json:"result,omitempty"`
}

// POST /v1/quick-select/batch — classify up to 100 texts concurrently.
func (h *Handler) quickSelectBatch(w http.ResponseWriter, r *http.Request) {
	var req batchQuickSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one text")
		return
	}
	if len(req.Texts) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(req.Texts), maxBatchSize))
		return
	}

	items := mapConcurrent(batchWorkers, req.Texts, func(text string) batchQuickSelectItem {
		res, ok := h.eng.QuickSelect(text)
		if !ok {
			metrics.QuickSelects.WithLabelValues("miss").Inc()
			return batchQuickSelectItem{Matched: false}
		}
		metrics.QuickSelects.WithLabelValues("hit").Inc()
		return batchQuickSelectItem{Matched: true, Result: &res}
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":  uuid.New().String(),
		"total":   len(items),
		"results": items,
	})
}

// GET /v1/templates — catalog listing.
func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.eng.Catalog().List()})
}

// GET /v1/templates/{id}
func (h *Handler) templateInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := h.eng.Catalog().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown template %s", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "template": t})
}

type templateFieldInfo struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Question string `json:"question"`
}

// GET /v1/templates/{id}/fields — ordered collection fields and prompts.
func (h *Handler) templateFields(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.eng.Catalog().Get(id); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown template %s", id))
		return
	}
	required := h.collector.RequiredFields(id)
	out := make([]templateFieldInfo, 0, len(required))
	for _, f := range required {
		out = append(out, templateFieldInfo{ID: f.ID, Type: f.Type, Question: h.collector.Question(f.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"template": id, "fields": out})
}

type validateFieldRequest struct {
	Template string `json:"template"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
}

// POST /v1/fields/validate
func (h *Handler) validateField(w http.ResponseWriter, r *http.Request) {
	var req validateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	if err := h.collector.ValidateField(req.Template, req.Field, req.Value); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

type formatFieldsRequest struct {
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// POST /v1/fields/format — the formatting pass, including the computed
// discount percentage.
func (h *Handler) formatFields(w http.ResponseWriter, r *http.Request) {
	var req formatFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Data == nil {
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"template": req.Template,
		"data":     h.collector.FormatCollected(req.Template, req.Data),
	})
}

type compatibilityRequest struct {
	Template  string   `json:"template"`
	Scenarios []string `json:"scenarios"`
}

// POST /v1/compatibility
func (h *Handler) checkCompatibility(w http.ResponseWriter, r *http.Request) {
	var req compatibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Template == "" {
		writeError(w, http.StatusBadRequest, "template is required")
		return
	}
	report := h.eng.CheckCompatibility(req.Template, req.Scenarios)
	metrics.CompatibilityWarnings.Add(float64(len(report.Warnings)))
	writeJSON(w, http.StatusOK, report)
}

// POST /v1/modifications
func (h *Handler) recommendedModifications(w http.ResponseWriter, r *http.Request) {
	var req compatibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	mods := h.eng.RecommendedModifications(req.Template, req.Scenarios)
	if mods == nil {
		mods = []selector.Modification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"modifications": mods})
}

// GET /v1/rules — the loaded selection logic summary.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	cfg := h.loader.Logic()
	writeJSON(w, http.StatusOK, map[string]any{
		"version": cfg.Version,
		"steps":   len(cfg.DecisionTree),
		"rules":   cfg.Rules(),
	})
}

// POST /v1/rules/reload — re-read the logic from disk. The loader
// validates before accepting, so a rejected config never replaces the
// serving one.
func (h *Handler) reloadRules(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		if errors.Is(err, config.ErrInvalidLogic) {
			metrics.LogicReloads.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		metrics.LogicReloads.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.eng.SwapLogic(cfg)
	metrics.LogicReloads.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"version":  cfg.Version,
		"steps":    len(cfg.DecisionTree),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — ready once configuration is loaded.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"sessions": h.store.Len(),
	})
}

// observeResult counts final selections; question results are not
// interesting to the selection counter.
func observeResult(res selector.Result) {
	if res.Kind != selector.KindTemplate {
		return
	}
	priority := res.Priority
	if priority == "" {
		priority = res.Confidence
	}
	metrics.TemplatesSelected.WithLabelValues(res.Template, priority).Inc()
}
