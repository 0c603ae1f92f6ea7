package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/hireloop/notify-engine/internal/api/middleware"
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/service"
)

// defaultBusinessContext selects which provider credential set the engine
// uses when the caller does not pass X-Business-Context. Multi-tenant
// deployments route per-customer credentials through this header.
const defaultBusinessContext = "default"

// DispatchHandler handles dispatch submission and lookup endpoints.
type DispatchHandler struct {
	svc    *service.DispatchService
	logger *zap.Logger
}

func NewDispatchHandler(svc *service.DispatchService, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{svc: svc, logger: logger}
}

// Submit handles POST /api/v1/dispatches
//
// @Summary     Submit an asynchronous dispatch job
// @Tags        dispatches
// @Accept      json
// @Produce     json
// @Param       X-Idempotency-Key  header    string                  false  "Idempotency key"
// @Param       body               body      domain.DispatchRequest  true   "Dispatch payload"
// @Success     202                {object}  domain.DispatchJob
// @Success     200                {object}  domain.DispatchJob      "Duplicate: returned existing job"
// @Failure     422                {object}  map[string]string
// @Failure     503                {object}  map[string]string
// @Router      /api/v1/dispatches [post]
func (h *DispatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	job, isDuplicate, err := h.svc.Submit(r.Context(), req, idempotencyKey)
	if err != nil {
		h.logger.Warn("submit dispatch failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusAccepted
	if isDuplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, job)
}

// DispatchSync handles POST /api/v1/dispatches/sync
//
// The call blocks until every target's fallback chain resolves and
// returns the per-channel results in the response body. Used by
// interactive flows that need the outcome immediately.
//
// @Summary     Dispatch synchronously and return per-channel results
// @Tags        dispatches
// @Accept      json
// @Produce     json
// @Param       body  body      domain.DispatchRequest  true  "Dispatch payload"
// @Success     200   {object}  map[string]any
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/dispatches/sync [post]
func (h *DispatchHandler) DispatchSync(w http.ResponseWriter, r *http.Request) {
	var req domain.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	businessCtx := r.Header.Get("X-Business-Context")
	if businessCtx == "" {
		businessCtx = defaultBusinessContext
	}

	results, err := h.svc.DispatchNow(r.Context(), businessCtx, req)
	if err != nil {
		h.logger.Warn("sync dispatch failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GetByID handles GET /api/v1/dispatches/{id}
//
// @Summary  Get a dispatch job by ID
// @Tags     dispatches
// @Produce  json
// @Param    id   path      string  true  "Job UUID"
// @Success  200  {object}  domain.DispatchJob
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/dispatches/{id} [get]
func (h *DispatchHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
