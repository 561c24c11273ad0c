package handler

import (
	"math"
	"strconv"
	"time"

	"fairplay-wallet/internal/adapter/http/dto"
	"fairplay-wallet/internal/adapter/http/middleware"
	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/pkg/apperror"
	"fairplay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles the player's own wallet.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetWallet handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	w, err := h.walletSvc.GetOrCreateWallet(c.Request.Context(), ownerID, c.Query("currency"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(w))
}

// GetBalance handles GET /api/v1/wallets/me/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	view, err := h.walletSvc.GetBalance(c.Request.Context(), ownerID, c.Query("display_currency"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		WalletID:        view.WalletID.String(),
		Balance:         view.Balance,
		Currency:        view.Currency,
		DisplayBalance:  view.DisplayBalance,
		DisplayCurrency: view.DisplayCurrency,
	})
}

// ListTransactions handles GET /api/v1/wallets/me/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.LedgerListParams{
		OwnerID:  ownerID,
		Page:     page,
		PageSize: pageSize,
	}
	if t := c.Query("type"); t != "" {
		entryType, err := domain.ParseEntryType(t)
		if err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		params.Type = &entryType
	}

	entries, total, err := h.walletSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerEntryResponse(&entries[i]))
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// ChangeCurrency handles PUT /api/v1/wallets/me/currency.
func (h *WalletHandler) ChangeCurrency(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ChangeCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, entry, err := h.walletSvc.ChangeCurrency(c.Request.Context(), ownerID, req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.CurrencyChangeResponse{Wallet: toWalletResponse(w)}
	if entry != nil {
		e := toLedgerEntryResponse(entry)
		resp.Entry = &e
	}
	response.OK(c, resp)
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID.String(),
		Balance:   w.Balance,
		Currency:  w.Currency,
		Status:    string(w.Status),
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
	}
}

func toLedgerEntryResponse(e *domain.LedgerEntry) dto.LedgerEntryResponse {
	resp := dto.LedgerEntryResponse{
		ID:             e.ID.String(),
		Type:           string(e.Type),
		Amount:         e.Amount,
		BalanceBefore:  e.BalanceBefore,
		BalanceAfter:   e.BalanceAfter,
		Status:         string(e.Status),
		Gateway:        e.Gateway,
		GatewayOrderID: e.GatewayOrderID,
		Description:    e.Description,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
	if e.CompletedAt != nil {
		s := e.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}
