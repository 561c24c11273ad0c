package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fairplay-wallet/internal/adapter/http/dto"
	"fairplay-wallet/internal/adapter/http/middleware"
	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/internal/core/ports/mocks"
	"fairplay-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newAuthedContext builds a test context as if JWTAuth had accepted ownerID.
func newAuthedContext(method, target string, body io.Reader, ownerID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxOwnerID, ownerID)
	return c, w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func testWallet(ownerID uuid.UUID) *domain.Wallet {
	return &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   10_000,
		Currency:  "USD",
		Status:    domain.WalletStatusActive,
		Version:   2,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// --- Wallet Handler Tests ---

func TestGetWallet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc)

	owner := uuid.New()
	w := testWallet(owner)
	walletSvc.EXPECT().GetOrCreateWallet(gomock.Any(), owner, "VND").Return(w, nil)

	c, rec := newAuthedContext(http.MethodGet, "/api/v1/wallets/me?currency=VND", nil, owner)
	h.GetWallet(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, w.ID.String(), data["id"])
	assert.Equal(t, float64(10_000), data["balance"])
	assert.Equal(t, "USD", data["currency"])
	assert.Equal(t, "2026-03-01T00:00:00Z", data["created_at"])
}

func TestGetWallet_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h.GetWallet(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_003", decodeErrorCode(t, rec))
}

func TestGetBalance_DisplayCurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc)

	owner := uuid.New()
	walletID := uuid.New()
	walletSvc.EXPECT().GetBalance(gomock.Any(), owner, "VND").Return(&ports.BalanceView{
		WalletID:        walletID,
		Balance:         10_000,
		Currency:        "USD",
		DisplayBalance:  2_500_000,
		DisplayCurrency: "VND",
	}, nil)

	c, rec := newAuthedContext(http.MethodGet, "/api/v1/wallets/me/balance?display_currency=VND", nil, owner)
	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, walletID.String(), data["wallet_id"])
	assert.Equal(t, float64(2_500_000), data["display_balance"])
	assert.Equal(t, "VND", data["display_currency"])
}

func TestGetBalance_UnsupportedCurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc)

	owner := uuid.New()
	walletSvc.EXPECT().GetBalance(gomock.Any(), owner, "XXX").Return(nil, apperror.ErrUnsupportedCurrency("XXX"))

	c, rec := newAuthedContext(http.MethodGet, "/?display_currency=XXX", nil, owner)
	h.GetBalance(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PAY_008", decodeErrorCode(t, rec))
}

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc)

	owner := uuid.New()
	deposit := domain.EntryTypeDeposit
	completed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	walletSvc.EXPECT().ListTransactions(gomock.Any(), ports.LedgerListParams{
		OwnerID: owner, Type: &deposit, Page: 2, PageSize: 10,
	}).Return([]domain.LedgerEntry{{
		ID:            uuid.New(),
		Type:          domain.EntryTypeDeposit,
		Amount:        5_000,
		BalanceBefore: 10_000,
		BalanceAfter:  15_000,
		Status:        domain.EntryStatusCompleted,
		CreatedAt:     completed.Add(-time.Minute),
		CompletedAt:   &completed,
	}}, int64(11), nil)

	c, rec := newAuthedContext(http.MethodGet, "/api/v1/wallets/me/transactions?page=2&page_size=10&type=deposit", nil, owner)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "DEPOSIT", item["type"])
	assert.Equal(t, "2026-03-01T10:00:00Z", item["completed_at"])
}

func TestListTransactions_DefaultsPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc)

	owner := uuid.New()
	walletSvc.EXPECT().ListTransactions(gomock.Any(), ports.LedgerListParams{
		OwnerID: owner, Page: 1, PageSize: 20,
	}).Return([]domain.LedgerEntry{}, int64(0), nil)

	c, rec := newAuthedContext(http.MethodGet, "/?page=-3&page_size=5000", nil, owner)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Empty(t, data["items"])
}

func TestListTransactions_UnknownType(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl))

	c, rec := newAuthedContext(http.MethodGet, "/?type=REFUND", nil, uuid.New())
	h.ListTransactions(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTransactions_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc)

	walletSvc.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(nil, int64(0), errors.New("db down"))

	c, rec := newAuthedContext(http.MethodGet, "/", nil, uuid.New())
	h.ListTransactions(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChangeCurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(walletSvc)

	owner := uuid.New()
	w := testWallet(owner)
	w.Currency, w.Balance = "VND", 2_500_000
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		Type:          domain.EntryTypeCurrencyChange,
		BalanceBefore: 10_000,
		BalanceAfter:  2_500_000,
		Status:        domain.EntryStatusCompleted,
		Metadata:      map[string]any{"rate": "250"},
	}
	walletSvc.EXPECT().ChangeCurrency(gomock.Any(), owner, "vnd").Return(w, entry, nil)

	c, rec := newAuthedContext(http.MethodPut, "/api/v1/wallets/me/currency", jsonBody(t, dto.ChangeCurrencyRequest{Currency: "vnd"}), owner)
	h.ChangeCurrency(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "VND", data["wallet"].(map[string]any)["currency"])
	assert.Equal(t, "CURRENCY_CHANGE", data["entry"].(map[string]any)["type"])
}

func TestChangeCurrency_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl))

	c, rec := newAuthedContext(http.MethodPut, "/", jsonBody(t, map[string]string{"currency": "DOLLARS"}), uuid.New())
	h.ChangeCurrency(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Deposit Handler Tests ---

func TestCreateDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	depositSvc := mocks.NewMockDepositService(ctrl)
	h := NewDepositHandler(depositSvc)

	owner := uuid.New()
	txID := uuid.New()
	depositSvc.EXPECT().InitiateDeposit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req ports.DepositRequest) (*ports.DepositInitiation, error) {
			assert.Equal(t, owner, req.OwnerID)
			assert.Equal(t, int64(5_000), req.Amount)
			assert.Equal(t, "USD", req.Currency)
			assert.Equal(t, "vnpay", req.Method)
			assert.NotEmpty(t, req.ClientIP)
			return &ports.DepositInitiation{
				TransactionID: txID,
				OrderID:       "01J0ORDER",
				PaymentURL:    "https://sandbox.vnpayment.vn/pay?x=1",
			}, nil
		})

	c, rec := newAuthedContext(http.MethodPost, "/api/v1/deposits", jsonBody(t, dto.CreateDepositRequest{
		Amount: 5_000, Currency: "USD", PaymentMethod: "vnpay",
	}), owner)
	h.CreateDeposit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, txID.String(), data["transaction_id"])
	assert.Equal(t, "01J0ORDER", data["order_id"])
	assert.Equal(t, "https://sandbox.vnpayment.vn/pay?x=1", data["payment_url"])
}

func TestCreateDeposit_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewDepositHandler(mocks.NewMockDepositService(ctrl))

	c, rec := newAuthedContext(http.MethodPost, "/", bytes.NewReader([]byte(`{"amount":-5,"currency":"USD","payment_method":"vnpay"}`)), uuid.New())
	h.CreateDeposit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDeposit_GatewayUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	depositSvc := mocks.NewMockDepositService(ctrl)
	h := NewDepositHandler(depositSvc)

	txID := uuid.New()
	depositSvc.EXPECT().InitiateDeposit(gomock.Any(), gomock.Any()).Return(nil,
		apperror.ErrGatewayUnavailable(errors.New("timeout"), map[string]any{
			"transaction_id": txID.String(),
			"amount":         int64(5_000),
			"currency":       "USD",
			"method":         "momo",
		}))

	c, rec := newAuthedContext(http.MethodPost, "/", jsonBody(t, dto.CreateDepositRequest{
		Amount: 5_000, Currency: "USD", PaymentMethod: "momo",
	}), uuid.New())
	h.CreateDeposit(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "GW_001", resp["error_code"])
	assert.Equal(t, true, resp["retryable"])
	details := resp["details"].(map[string]any)
	assert.Equal(t, txID.String(), details["transaction_id"])
	assert.Equal(t, "momo", details["method"])
}

// --- Callback Handler Tests ---

func newCallbackRouter(t *testing.T) (*gin.Engine, *mocks.MockDepositService, *mocks.MockPaymentGateway, *mocks.MockGatewayRegistry) {
	t.Helper()
	ctrl := gomock.NewController(t)
	depositSvc := mocks.NewMockDepositService(ctrl)
	gw := mocks.NewMockPaymentGateway(ctrl)
	registry := mocks.NewMockGatewayRegistry(ctrl)

	gw.EXPECT().Name().Return("vnpay").AnyTimes()
	registry.EXPECT().Get("vnpay").Return(gw, true).AnyTimes()
	registry.EXPECT().Get(gomock.Not("vnpay")).Return(nil, false).AnyTimes()

	h := NewCallbackHandler(depositSvc, registry, zerolog.Nop())
	r := gin.New()
	r.GET("/payments/:provider/return", h.Return)
	r.GET("/payments/:provider/ipn", h.Notify)
	r.POST("/payments/:provider/ipn", h.Notify)
	return r, depositSvc, gw, registry
}

func TestNotify_GETQueryAcknowledged(t *testing.T) {
	r, depositSvc, gw, _ := newCallbackRouter(t)

	depositSvc.EXPECT().HandleCallback(gomock.Any(), "vnpay", domain.CallbackSourceNotify, map[string]string{
		"vnp_TxnRef": "01J0ORDER", "vnp_Amount": "125000000",
	}).Return(&ports.CallbackOutcome{Ack: domain.AckAccepted, OrderID: "01J0ORDER", Status: domain.EntryStatusCompleted}, nil)
	gw.EXPECT().Acknowledge(domain.AckAccepted).Return(http.StatusOK, map[string]string{"RspCode": "00", "Message": "Confirm Success"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/vnpay/ipn?vnp_TxnRef=01J0ORDER&vnp_Amount=125000000", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"RspCode":"00","Message":"Confirm Success"}`, rec.Body.String())
}

func TestNotify_POSTJSONBody(t *testing.T) {
	r, depositSvc, gw, _ := newCallbackRouter(t)

	depositSvc.EXPECT().HandleCallback(gomock.Any(), "vnpay", domain.CallbackSourceNotify, map[string]string{
		"orderId": "01J0ORDER", "amount": "1250000", "resultCode": "0",
	}).Return(&ports.CallbackOutcome{Ack: domain.AckAlreadyProcessed, OrderID: "01J0ORDER"}, nil)
	gw.EXPECT().Acknowledge(domain.AckAlreadyProcessed).Return(http.StatusNoContent, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/vnpay/ipn",
		bytes.NewReader([]byte(`{"orderId":"01J0ORDER","amount":1250000,"resultCode":0}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNotify_POSTForm(t *testing.T) {
	r, depositSvc, gw, _ := newCallbackRouter(t)

	depositSvc.EXPECT().HandleCallback(gomock.Any(), "vnpay", domain.CallbackSourceNotify, map[string]string{
		"vnp_TxnRef": "01J0ORDER",
	}).Return(&ports.CallbackOutcome{Ack: domain.AckInvalidSignature}, nil)
	gw.EXPECT().Acknowledge(domain.AckInvalidSignature).Return(http.StatusOK, map[string]string{"RspCode": "97"})

	req := httptest.NewRequest(http.MethodPost, "/payments/vnpay/ipn", bytes.NewReader([]byte("vnp_TxnRef=01J0ORDER")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "97")
}

func TestNotify_MalformedJSON(t *testing.T) {
	r, _, gw, _ := newCallbackRouter(t)

	gw.EXPECT().Acknowledge(domain.AckInvalidSignature).Return(http.StatusBadRequest, map[string]int{"resultCode": 97})

	req := httptest.NewRequest(http.MethodPost, "/payments/vnpay/ipn", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotify_ServiceErrorAsksForRetry(t *testing.T) {
	r, depositSvc, gw, _ := newCallbackRouter(t)

	depositSvc.EXPECT().HandleCallback(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("boom"))
	gw.EXPECT().Acknowledge(domain.AckRetry).Return(http.StatusInternalServerError, map[string]int{"resultCode": 99})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/vnpay/ipn?vnp_TxnRef=x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNotify_UnknownProvider(t *testing.T) {
	r, _, _, _ := newCallbackRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/paypal/ipn", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PAY_009", decodeErrorCode(t, rec))
}

func TestReturn_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		outcome    *ports.CallbackOutcome
		wantStatus int
		wantCode   string
		wantResult string
	}{
		{
			name:       "accepted",
			outcome:    &ports.CallbackOutcome{Ack: domain.AckAccepted, OrderID: "o1", Status: domain.EntryStatusCompleted},
			wantStatus: http.StatusOK,
			wantResult: "accepted",
		},
		{
			name:       "notify won the race",
			outcome:    &ports.CallbackOutcome{Ack: domain.AckAlreadyProcessed, OrderID: "o1", Status: domain.EntryStatusCompleted},
			wantStatus: http.StatusOK,
			wantResult: "already_processed",
		},
		{
			name:       "bad signature",
			outcome:    &ports.CallbackOutcome{Ack: domain.AckInvalidSignature},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "SEC_002",
		},
		{
			name:       "unknown order",
			outcome:    &ports.CallbackOutcome{Ack: domain.AckOrderNotFound, OrderID: "o2"},
			wantStatus: http.StatusNotFound,
			wantCode:   "PAY_004",
		},
		{
			name:       "amount mismatch",
			outcome:    &ports.CallbackOutcome{Ack: domain.AckInvalidAmount, OrderID: "o1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "PAY_002",
		},
		{
			name:       "retry",
			outcome:    &ports.CallbackOutcome{Ack: domain.AckRetry, OrderID: "o1"},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "SYS_004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, depositSvc, _, _ := newCallbackRouter(t)
			depositSvc.EXPECT().HandleCallback(gomock.Any(), "vnpay", domain.CallbackSourceReturn, map[string]string{"vnp_TxnRef": "o1"}).
				Return(tt.outcome, nil)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/vnpay/return?vnp_TxnRef=o1", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeErrorCode(t, rec))
				return
			}
			data := decodeData(t, rec)
			assert.Equal(t, tt.wantResult, data["result"])
			assert.Equal(t, "COMPLETED", data["status"])
		})
	}
}

// --- Game Handler Tests ---

func TestCommitSeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	gameSvc := mocks.NewMockGameService(ctrl)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewGameHandler(gameSvc, walletSvc)

	owner := uuid.New()
	w := testWallet(owner)
	walletSvc.EXPECT().GetOrCreateWallet(gomock.Any(), owner, "").Return(w, nil)
	gameSvc.EXPECT().CommitSeed(gomock.Any(), w.ID).Return(&ports.SeedView{ServerSeedHash: "abc", Nonce: 3}, nil)

	c, rec := newAuthedContext(http.MethodPost, "/api/v1/games/seed", nil, owner)
	h.CommitSeed(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "abc", data["server_seed_hash"])
	assert.Equal(t, float64(3), data["nonce"])
}

func placeBet(h *GameHandler, game string, body io.Reader, owner uuid.UUID) *httptest.ResponseRecorder {
	c, rec := newAuthedContext(http.MethodPost, "/api/v1/games/"+game+"/bets", body, owner)
	c.Params = gin.Params{{Key: "game", Value: game}}
	h.PlaceBet(c)
	return rec
}

func TestPlaceBet_StakeList(t *testing.T) {
	ctrl := gomock.NewController(t)
	gameSvc := mocks.NewMockGameService(ctrl)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewGameHandler(gameSvc, walletSvc)

	owner := uuid.New()
	w := testWallet(owner)
	roundID := uuid.New()
	walletSvc.EXPECT().GetOrCreateWallet(gomock.Any(), owner, "").Return(w, nil)
	gameSvc.EXPECT().PlaceBet(gomock.Any(), ports.PlaceBetRequest{
		PlayerWalletID: w.ID,
		Game:           domain.GameTaiXiu,
		Stakes:         []domain.Stake{{Kind: domain.BetTai, Amount: 100}, {Kind: domain.BetOdd, Amount: 50}},
		ClientSeed:     "lucky",
	}).Return(&ports.BetResult{
		RoundID:    roundID,
		Game:       domain.GameTaiXiu,
		Outcome:    []int{6, 4, 3},
		TotalStake: 150,
		TotalWin:   300,
		NewBalance: 10_150,
		Currency:   "USD",
		Fairness:   ports.FairnessProof{ServerSeedHash: "h", ServerSeed: "s", ClientSeed: "lucky", Nonce: 1},
	}, nil)

	rec := placeBet(h, "taixiu", jsonBody(t, map[string]any{
		"stakes":      []map[string]any{{"kind": "tai", "amount": 100}, {"kind": "ODD", "amount": 50}},
		"client_seed": "lucky",
	}), owner)

	assert.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, roundID.String(), data["round_id"])
	assert.Equal(t, float64(300), data["total_win"])
	assert.Equal(t, "s", data["fairness"].(map[string]any)["server_seed"])
}

func TestPlaceBet_Shorthand(t *testing.T) {
	ctrl := gomock.NewController(t)
	gameSvc := mocks.NewMockGameService(ctrl)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewGameHandler(gameSvc, walletSvc)

	owner := uuid.New()
	w := testWallet(owner)
	walletSvc.EXPECT().GetOrCreateWallet(gomock.Any(), owner, "").Return(w, nil)
	gameSvc.EXPECT().PlaceBet(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req ports.PlaceBetRequest) (*ports.BetResult, error) {
			assert.Equal(t, domain.GameWheel, req.Game)
			assert.Equal(t, []domain.Stake{{Kind: domain.BetSpin, Amount: 25}}, req.Stakes)
			return &ports.BetResult{RoundID: uuid.New(), Game: domain.GameWheel}, nil
		})

	rec := placeBet(h, "WHEEL", jsonBody(t, map[string]any{"bet_type": "spin", "amount": 25}), owner)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPlaceBet_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		game     string
		body     string
		wantCode string
	}{
		{"unknown game", "poker", `{"bet_type":"SPIN","amount":1}`, "GAME_003"},
		{"no stakes", "slots", `{}`, "GAME_002"},
		{"unknown kind", "taixiu", `{"stakes":[{"kind":"RED","amount":10}]}`, "GAME_002"},
		{"shorthand without amount", "slots", `{"bet_type":"SPIN"}`, "GAME_002"},
		{"negative amount", "taixiu", `{"stakes":[{"kind":"TAI","amount":-10}]}`, "PAY_002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewGameHandler(mocks.NewMockGameService(ctrl), mocks.NewMockWalletService(ctrl))

			rec := placeBet(h, tt.game, bytes.NewReader([]byte(tt.body)), uuid.New())

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeErrorCode(t, rec))
		})
	}
}

func TestPlaceBet_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	gameSvc := mocks.NewMockGameService(ctrl)
	walletSvc := mocks.NewMockWalletService(ctrl)
	h := NewGameHandler(gameSvc, walletSvc)

	owner := uuid.New()
	walletSvc.EXPECT().GetOrCreateWallet(gomock.Any(), owner, "").Return(testWallet(owner), nil)
	gameSvc.EXPECT().PlaceBet(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	rec := placeBet(h, "slots", bytes.NewReader([]byte(`{"bet_type":"SPIN","amount":1000000}`)), owner)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "PAY_001", decodeErrorCode(t, rec))
}

func TestGetRound(t *testing.T) {
	ctrl := gomock.NewController(t)
	gameSvc := mocks.NewMockGameService(ctrl)
	h := NewGameHandler(gameSvc, mocks.NewMockWalletService(ctrl))

	roundID := uuid.New()
	gameSvc.EXPECT().VerifyRound(gomock.Any(), roundID).Return(&ports.RoundVerification{
		Round:    &domain.Round{ID: roundID, Game: domain.GameSlots, Outcome: []int{1, 2, 3}},
		Verified: true,
	}, nil)

	c, rec := newAuthedContext(http.MethodGet, "/api/v1/games/rounds/"+roundID.String(), nil, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: roundID.String()}}
	h.GetRound(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, true, data["verified"])
	assert.Equal(t, roundID.String(), data["round"].(map[string]any)["id"])
}

func TestGetRound_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewGameHandler(mocks.NewMockGameService(ctrl), mocks.NewMockWalletService(ctrl))

	c, rec := newAuthedContext(http.MethodGet, "/", nil, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	h.GetRound(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	rd := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	rd.EXPECT().Name().Return("redis").AnyTimes()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(pg, rd)(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]any)
	assert.Equal(t, "healthy", deps["postgresql"].(map[string]any)["status"])
	assert.Equal(t, "connection refused", deps["redis"].(map[string]any)["error"])
}
