package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cltv-analytics/internal/errors"
	"cltv-analytics/internal/observability"
	"cltv-analytics/internal/services"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 500
)

type APIHandlers struct {
	pipeline *services.Pipeline
	logger   *slog.Logger
}

func NewAPIHandlers(pipeline *services.Pipeline, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		pipeline: pipeline,
		logger:   logger,
	}
}

var cacheHeaders = map[string]string{
	"Cache-Control": "public, max-age=300",
}

func (h *APIHandlers) HandleProjections(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.pipeline.Projections(), cacheHeaders)
}

func (h *APIHandlers) HandleSegments(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.pipeline.Segments(), cacheHeaders)
}

func (h *APIHandlers) HandleModel(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.pipeline.Model(), cacheHeaders)
}

// HandleTop ranks customers. by=clv (default) takes horizon in months,
// by=purchases takes horizon in model periods.
func (h *APIHandlers) HandleTop(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), defaultTopLimit)
	if err != nil || limit < 1 || limit > maxTopLimit {
		errors.WriteError(w, h.logger,
			errors.BadRequest(fmt.Sprintf("limit must be between 1 and %d", maxTopLimit)), requestID)
		return
	}

	by := q.Get("by")
	if by == "" {
		by = "clv"
	}

	var defaultHorizon int
	switch by {
	case "clv":
		defaultHorizon = h.pipeline.Result().Options.SegmentHorizon
	case "purchases":
		if hs := h.pipeline.Result().Options.PurchaseHorizons; len(hs) > 0 {
			defaultHorizon = hs[0]
		}
	default:
		errors.WriteError(w, h.logger, errors.BadRequest("by must be clv or purchases"), requestID)
		return
	}

	horizon, err := queryInt(q.Get("horizon"), defaultHorizon)
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "horizon must be an integer"), requestID)
		return
	}

	var rows any
	if by == "clv" {
		rows, err = h.pipeline.TopByCLV(horizon, limit)
	} else {
		rows, err = h.pipeline.TopByExpectedPurchases(horizon, limit)
	}
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccessWithHeaders(w, rows, cacheHeaders)
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.pipeline.Stats()

	errors.WriteSuccess(w, stats)
}
