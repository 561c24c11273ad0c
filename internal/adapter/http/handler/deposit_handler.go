package handler

import (
	"fairplay-wallet/internal/adapter/http/dto"
	"fairplay-wallet/internal/adapter/http/middleware"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/pkg/apperror"
	"fairplay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// DepositHandler starts gateway deposits.
type DepositHandler struct {
	depositSvc ports.DepositService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(depositSvc ports.DepositService) *DepositHandler {
	return &DepositHandler{depositSvc: depositSvc}
}

// CreateDeposit handles POST /api/v1/deposits.
func (h *DepositHandler) CreateDeposit(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.depositSvc.InitiateDeposit(c.Request.Context(), ports.DepositRequest{
		OwnerID:  ownerID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.PaymentMethod,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DepositResponse{
		TransactionID: result.TransactionID.String(),
		OrderID:       result.OrderID,
		PaymentURL:    result.PaymentURL,
	})
}
