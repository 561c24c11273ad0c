package handler

import (
	"fmt"
	"net/http"
	"strings"

	"fairplay-wallet/internal/adapter/gateway"
	"fairplay-wallet/internal/adapter/http/dto"
	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/pkg/apperror"
	"fairplay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CallbackHandler receives gateway results. Both the browser return and the
// server notification go through DepositService.HandleCallback; only the
// response shape differs.
type CallbackHandler struct {
	depositSvc ports.DepositService
	gateways   ports.GatewayRegistry
	log        zerolog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(depositSvc ports.DepositService, gateways ports.GatewayRegistry, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{depositSvc: depositSvc, gateways: gateways, log: log}
}

// Return handles GET /api/v1/payments/:provider/return.
func (h *CallbackHandler) Return(c *gin.Context) {
	gw, ok := h.gateways.Get(c.Param("provider"))
	if !ok {
		response.Error(c, apperror.ErrUnsupportedPaymentMethod(c.Param("provider")))
		return
	}

	outcome, err := h.depositSvc.HandleCallback(c.Request.Context(), gw.Name(), domain.CallbackSourceReturn, queryPayload(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	switch outcome.Ack {
	case domain.AckInvalidSignature:
		response.Error(c, apperror.ErrInvalidSignature())
	case domain.AckOrderNotFound:
		response.Error(c, apperror.ErrNotFound("deposit"))
	case domain.AckInvalidAmount:
		response.Error(c, apperror.ErrInvalidAmount())
	case domain.AckRetry:
		response.Error(c, apperror.ErrTransactionConflict(fmt.Errorf("order %s not settled", outcome.OrderID)))
	default:
		response.OK(c, dto.CallbackResponse{
			OrderID: outcome.OrderID,
			Result:  outcome.Ack.String(),
			Status:  string(outcome.Status),
			Message: outcome.Message,
		})
	}
}

// Notify handles GET|POST /api/v1/payments/:provider/ipn and answers in the
// provider's acknowledgement format.
func (h *CallbackHandler) Notify(c *gin.Context) {
	gw, ok := h.gateways.Get(c.Param("provider"))
	if !ok {
		response.Error(c, apperror.ErrUnsupportedPaymentMethod(c.Param("provider")))
		return
	}

	payload, err := notifyPayload(c)
	if err != nil {
		h.log.Warn().Err(err).Str("provider", gw.Name()).Msg("unreadable callback payload")
		writeAck(c, gw, domain.AckInvalidSignature)
		return
	}

	outcome, err := h.depositSvc.HandleCallback(c.Request.Context(), gw.Name(), domain.CallbackSourceNotify, payload)
	if err != nil {
		h.log.Error().Err(err).Str("provider", gw.Name()).Msg("callback handling failed")
		writeAck(c, gw, domain.AckRetry)
		return
	}
	writeAck(c, gw, outcome.Ack)
}

func writeAck(c *gin.Context, gw ports.PaymentGateway, ack domain.CallbackAck) {
	status, body := gw.Acknowledge(ack)
	if body == nil {
		c.Status(status)
		return
	}
	c.JSON(status, body)
}

func queryPayload(c *gin.Context) map[string]string {
	query := c.Request.URL.Query()
	payload := make(map[string]string, len(query))
	for k, v := range query {
		if len(v) > 0 {
			payload[k] = v[0]
		}
	}
	return payload
}

// notifyPayload reads a notification from the query string (GET), a JSON
// body or a form body.
func notifyPayload(c *gin.Context) (map[string]string, error) {
	if c.Request.Method == http.MethodGet {
		return queryPayload(c), nil
	}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		return gateway.DecodeJSONPayload(c.Request.Body)
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	payload := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			payload[k] = v[0]
		}
	}
	return payload, nil
}
