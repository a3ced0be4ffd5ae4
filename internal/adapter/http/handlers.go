// Package http provides the HTTP API for the optimization engine.
package http

import (
	"net/http"
	"time"

	"promptforge/internal/adapter/otel"
	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
	"promptforge/internal/service"
)

const maxBodySize = 1 << 20 // 1 MiB

// Handlers holds the services used by the HTTP API.
type Handlers struct {
	Optimizer *service.OptimizerService
	Analyzer  *service.AnalyzerService
	Feedback  *service.FeedbackService
	Metrics   *otel.Metrics // optional
}

// Optimize handles POST /api/v1/optimize.
func (h *Handlers) Optimize(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[prompt.OptimizationRequest](w, r, maxBodySize)
	if !ok {
		return
	}

	start := time.Now()
	res, err := h.Optimizer.Optimize(r.Context(), req)
	if err != nil {
		// The optimizer only fails on request validation.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordOptimization(r.Context(), time.Since(start), res.FromCache)
	}

	writeJSON(w, http.StatusOK, res)
}

type analyzeRequest struct {
	UserPrompt string `json:"user_prompt"`
}

// Analyze handles POST /api/v1/analyze.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[analyzeRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.UserPrompt == "" {
		writeError(w, http.StatusBadRequest, "user_prompt is required")
		return
	}

	analysis := h.Analyzer.Analyze(r.Context(), req.UserPrompt)
	writeJSON(w, http.StatusOK, analysis)
}

type feedbackResponse struct {
	Updated      []efficacy.Record `json:"updated"`
	StoreVersion uint64            `json:"store_version"`
}

// RecordFeedback handles POST /api/v1/feedback.
func (h *Handlers) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	fb, ok := readJSON[efficacy.Feedback](w, r, maxBodySize)
	if !ok {
		return
	}

	records, version, err := h.Feedback.Record(r.Context(), fb)
	if err != nil {
		writeDomainError(w, err, "feedback rejected")
		return
	}

	if h.Metrics != nil {
		h.Metrics.FeedbackEvents.Add(r.Context(), 1)
	}

	writeJSON(w, http.StatusOK, feedbackResponse{Updated: records, StoreVersion: version})
}

type historyResponse struct {
	Results []prompt.Result `json:"results"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// History handles GET /api/v1/history.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)
	model := r.URL.Query().Get("model")

	results, total, err := h.Optimizer.History(r.Context(), limit, offset, model)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if results == nil {
		results = []prompt.Result{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Results: results,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetResult handles GET /api/v1/history/{id}.
func (h *Handlers) GetResult(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	res, err := h.Optimizer.GetResult(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "result not found")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
