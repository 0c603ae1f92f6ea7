package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/service"
)

// InboundHandler receives provider webhook callbacks for messages the
// recipient sent to us. Recording them opens the conversation gate and
// the free billing window for that (channel, sender) pair.
type InboundHandler struct {
	svc    *service.DispatchService
	logger *zap.Logger
}

func NewInboundHandler(svc *service.DispatchService, logger *zap.Logger) *InboundHandler {
	return &InboundHandler{svc: svc, logger: logger}
}

type inboundRequest struct {
	Channel    domain.ChannelName `json:"channel"`
	Sender     string             `json:"sender"`
	ReceivedAt *time.Time         `json:"received_at,omitempty"`
}

// Receive handles POST /api/v1/inbound
//
// @Summary     Record an inbound message from a recipient
// @Tags        inbound
// @Accept      json
// @Param       body  body  inboundRequest  true  "Inbound event"
// @Success     204
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/inbound [post]
func (h *InboundHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	receivedAt := time.Now().UTC()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	if err := h.svc.RecordInbound(r.Context(), req.Channel, req.Sender, receivedAt); err != nil {
		mapError(w, err)
		return
	}

	h.logger.Debug("inbound message recorded",
		zap.String("channel", string(req.Channel)),
		zap.String("sender", req.Sender),
	)
	w.WriteHeader(http.StatusNoContent)
}
