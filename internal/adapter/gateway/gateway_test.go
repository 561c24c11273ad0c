package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fairplay-wallet/config"
	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVNPay() *VNPay {
	g := NewVNPay(config.VNPayConfig{
		TmnCode:    "TESTTMN1",
		HashSecret: "vnpay-test-secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://wallet.example.com/api/v1/payments/vnpay/return",
	})
	g.now = func() time.Time { return time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC) }
	return g
}

// signedVNPayCallback builds a callback query the way VNPay would.
func signedVNPayCallback(g *VNPay, fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out[vnpaySecureHash] = strings.ToUpper(hmacSHA512(g.cfg.HashSecret, vnpayCanonical(fields)))
	out[vnpayHashType] = "HmacSHA512"
	return out
}

func TestVNPay_CreatePaymentURL(t *testing.T) {
	g := testVNPay()

	raw, err := g.CreatePaymentURL(context.Background(), ports.PaymentURLRequest{
		OrderID:   "01HX0000000000000000000000",
		Amount:    1250000,
		OrderInfo: "Deposit 01HX",
		ClientIP:  "203.0.113.7",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, g.cfg.PayURL+"?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "125000000", q.Get("vnp_Amount"))
	assert.Equal(t, "VND", q.Get("vnp_CurrCode"))
	assert.Equal(t, "vn", q.Get("vnp_Locale"))
	assert.Equal(t, "20260301120000", q.Get("vnp_CreateDate"))
	assert.Equal(t, "20260301121500", q.Get("vnp_ExpireDate"))

	payload := make(map[string]string, len(q))
	for k := range q {
		payload[k] = q.Get(k)
	}
	assert.True(t, g.VerifySignature(payload), "own URL must verify")
}

func TestVNPay_VerifySignature(t *testing.T) {
	g := testVNPay()
	fields := map[string]string{
		"vnp_TxnRef":            "ORDER1",
		"vnp_Amount":            "125000000",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
		"vnp_TransactionNo":     "14012345",
		"vnp_OrderInfo":         "Deposit ORDER1",
	}

	t.Run("valid uppercase hex", func(t *testing.T) {
		assert.True(t, g.VerifySignature(signedVNPayCallback(g, fields)))
	})

	t.Run("tampered amount", func(t *testing.T) {
		p := signedVNPayCallback(g, fields)
		p["vnp_Amount"] = "999900"
		assert.False(t, g.VerifySignature(p))
	})

	t.Run("missing hash", func(t *testing.T) {
		p := signedVNPayCallback(g, fields)
		delete(p, vnpaySecureHash)
		assert.False(t, g.VerifySignature(p))
	})

	t.Run("non vnp fields ignored", func(t *testing.T) {
		p := signedVNPayCallback(g, fields)
		p["provider"] = "vnpay"
		assert.True(t, g.VerifySignature(p))
	})
}

func TestVNPay_ProcessCallback(t *testing.T) {
	g := testVNPay()

	res := g.ProcessCallback(map[string]string{
		"vnp_TxnRef":            "ORDER1",
		"vnp_Amount":            "125000000",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
		"vnp_TransactionNo":     "14012345",
	})
	assert.True(t, res.Success)
	assert.Equal(t, "ORDER1", res.OrderID)
	assert.Equal(t, int64(1250000), res.Amount)
	assert.Equal(t, "14012345", res.ProviderTxnID)

	res = g.ProcessCallback(map[string]string{
		"vnp_TxnRef":            "ORDER2",
		"vnp_Amount":            "100",
		"vnp_ResponseCode":      "24",
		"vnp_TransactionStatus": "02",
	})
	assert.False(t, res.Success)
	assert.Equal(t, "Customer cancelled the transaction", res.Message)

	res = g.ProcessCallback(map[string]string{"vnp_TxnRef": "ORDER3", "vnp_Amount": "x"})
	assert.Equal(t, int64(-1), res.Amount)
	assert.False(t, res.Success)
}

func TestVNPay_Acknowledge(t *testing.T) {
	g := testVNPay()
	tests := []struct {
		ack  domain.CallbackAck
		code string
	}{
		{domain.AckAccepted, "00"},
		{domain.AckOrderNotFound, "01"},
		{domain.AckAlreadyProcessed, "02"},
		{domain.AckInvalidAmount, "04"},
		{domain.AckInvalidSignature, "97"},
		{domain.AckRetry, "99"},
		{domain.CallbackAck(42), "99"},
	}
	for _, tt := range tests {
		t.Run(tt.ack.String(), func(t *testing.T) {
			status, body := g.Acknowledge(tt.ack)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.code, body.(vnpayAck).RspCode)
		})
	}
}

func testMoMoConfig(endpoint string) config.MoMoConfig {
	return config.MoMoConfig{
		PartnerCode: "MOMOTEST",
		AccessKey:   "momo-access",
		SecretKey:   "momo-secret",
		Endpoint:    endpoint,
		RedirectURL: "https://wallet.example.com/api/v1/payments/momo/return",
		IPNURL:      "https://wallet.example.com/api/v1/payments/momo/ipn",
	}
}

func TestMoMo_CreatePaymentURL_Success(t *testing.T) {
	var captured momoCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, momoCreatePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(momoCreateResponse{ResultCode: 0, Message: "ok", PayURL: "https://test-payment.momo.vn/pay/abc"})
	}))
	defer srv.Close()

	cfg := testMoMoConfig(srv.URL)
	g := NewMoMo(cfg, time.Second)

	payURL, err := g.CreatePaymentURL(context.Background(), ports.PaymentURLRequest{
		OrderID: "ORDER1", Amount: 50000, OrderInfo: "Deposit ORDER1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://test-payment.momo.vn/pay/abc", payURL)

	assert.Equal(t, int64(50000), captured.Amount)
	assert.Equal(t, momoRequestType, captured.RequestType)
	assert.Equal(t, "vi", captured.Lang)

	raw := "accessKey=momo-access&amount=50000&extraData=&ipnUrl=" + cfg.IPNURL +
		"&orderId=ORDER1&orderInfo=Deposit ORDER1&partnerCode=MOMOTEST&redirectUrl=" + cfg.RedirectURL +
		"&requestId=ORDER1&requestType=captureWallet"
	assert.Equal(t, hmacSHA256(cfg.SecretKey, raw), captured.Signature)
}

func TestMoMo_CreatePaymentURL_Errors(t *testing.T) {
	t.Run("provider rejects", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(momoCreateResponse{ResultCode: 13, Message: "merchant auth failed"})
		}))
		defer srv.Close()

		_, err := NewMoMo(testMoMoConfig(srv.URL), time.Second).CreatePaymentURL(context.Background(), ports.PaymentURLRequest{OrderID: "O", Amount: 1})
		assert.ErrorContains(t, err, "merchant auth failed")
	})

	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewMoMo(testMoMoConfig(srv.URL), time.Second).CreatePaymentURL(context.Background(), ports.PaymentURLRequest{OrderID: "O", Amount: 1})
		assert.ErrorContains(t, err, "502")
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewMoMo(testMoMoConfig(srv.URL), 50*time.Millisecond).CreatePaymentURL(context.Background(), ports.PaymentURLRequest{OrderID: "O", Amount: 1})
		assert.Error(t, err)
	})
}

func signedMoMoCallback(cfg config.MoMoConfig, fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	signed := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		signed[k] = v
	}
	signed["accessKey"] = cfg.AccessKey
	out["signature"] = hmacSHA256(cfg.SecretKey, momoRaw(momoCallbackFields, signed))
	return out
}

func TestMoMo_Callback(t *testing.T) {
	cfg := testMoMoConfig("http://unused")
	g := NewMoMo(cfg, time.Second)

	body := `{"partnerCode":"MOMOTEST","orderId":"ORDER1","requestId":"ORDER1","amount":50000,` +
		`"orderInfo":"Deposit ORDER1","orderType":"momo_wallet","transId":4088878653,"resultCode":0,` +
		`"message":"Successful.","payType":"qr","responseTime":1721720663942,"extraData":""}`
	payload, err := DecodeJSONPayload(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "4088878653", payload["transId"])
	assert.Equal(t, "50000", payload["amount"])

	signed := signedMoMoCallback(cfg, payload)
	assert.True(t, g.VerifySignature(signed))

	res := g.ProcessCallback(signed)
	assert.True(t, res.Success)
	assert.Equal(t, int64(50000), res.Amount)
	assert.Equal(t, "4088878653", res.ProviderTxnID)

	signed["resultCode"] = "1006"
	assert.False(t, g.VerifySignature(signed))
	res = g.ProcessCallback(signed)
	assert.False(t, res.Success)
	assert.Equal(t, "User denied the payment", res.Message)
}

func TestMoMo_Acknowledge(t *testing.T) {
	g := NewMoMo(testMoMoConfig(""), time.Second)

	status, body := g.Acknowledge(domain.AckAccepted)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Nil(t, body)

	status, _ = g.Acknowledge(domain.AckAlreadyProcessed)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = g.Acknowledge(domain.AckInvalidSignature)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 97, body.(momoAck).ResultCode)

	status, _ = g.Acknowledge(domain.AckRetry)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestDecodeJSONPayload_Invalid(t *testing.T) {
	_, err := DecodeJSONPayload(strings.NewReader(`[1,2]`))
	assert.Error(t, err)

	p, err := DecodeJSONPayload(strings.NewReader(`{"a":null,"b":true,"c":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "", p["a"])
	assert.Equal(t, "true", p["b"])
	assert.Equal(t, `{"x":1}`, p["c"])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(testVNPay(), NewMoMo(testMoMoConfig(""), time.Second))

	g, ok := r.Get("VNPAY")
	require.True(t, ok)
	assert.Equal(t, "vnpay", g.Name())

	_, ok = r.Get("paypal")
	assert.False(t, ok)

	assert.Equal(t, []string{"momo", "vnpay"}, r.Methods())
}
