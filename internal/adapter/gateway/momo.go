package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fairplay-wallet/config"
	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
)

const (
	momoCreatePath   = "/v2/gateway/api/create"
	momoRequestType  = "captureWallet"
	momoMaxBodyBytes = 1 << 20
)

// Field orders of the HMAC-SHA256 raw signatures.
var (
	momoCreateFields = []string{
		"accessKey", "amount", "extraData", "ipnUrl", "orderId", "orderInfo",
		"partnerCode", "redirectUrl", "requestId", "requestType",
	}
	momoCallbackFields = []string{
		"accessKey", "amount", "extraData", "message", "orderId", "orderInfo",
		"orderType", "partnerCode", "payType", "requestId", "responseTime",
		"resultCode", "transId",
	}
)

var momoMessages = map[string]string{
	"0":    "Successful",
	"7000": "Transaction is being processed",
	"9000": "Transaction authorized",
	"1001": "Insufficient balance",
	"1002": "Rejected by issuer",
	"1003": "Transaction cancelled",
	"1004": "Amount exceeds payment limit",
	"1005": "Payment URL or QR code expired",
	"1006": "User denied the payment",
	"1007": "Account inactive",
	"1017": "Cancelled by partner",
	"1026": "Restricted by promotion rules",
	"1080": "Refund attempt failed",
	"4001": "Account restricted",
	"4100": "User failed to log in",
	"99":   "Unknown error",
}

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

type momoAck struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// MoMo creates payments through the MoMo API and verifies its callbacks.
type MoMo struct {
	cfg    config.MoMoConfig
	client HTTPClient
}

// NewMoMo creates a MoMo gateway whose create calls are bounded by timeout.
func NewMoMo(cfg config.MoMoConfig, timeout time.Duration) *MoMo {
	return &MoMo{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// WithHTTPClient replaces the HTTP client.
func (g *MoMo) WithHTTPClient(c HTTPClient) *MoMo {
	g.client = c
	return g
}

func (g *MoMo) Name() string     { return "momo" }
func (g *MoMo) Currency() string { return "VND" }

func (g *MoMo) CreatePaymentURL(ctx context.Context, req ports.PaymentURLRequest) (string, error) {
	lang := req.Locale
	if lang != "en" {
		lang = "vi"
	}
	body := momoCreateRequest{
		PartnerCode: g.cfg.PartnerCode,
		RequestID:   req.OrderID,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		OrderInfo:   req.OrderInfo,
		RedirectURL: g.cfg.RedirectURL,
		IpnURL:      g.cfg.IPNURL,
		RequestType: momoRequestType,
		Lang:        lang,
	}
	body.Signature = hmacSHA256(g.cfg.SecretKey, momoRaw(momoCreateFields, map[string]string{
		"accessKey":   g.cfg.AccessKey,
		"amount":      strconv.FormatInt(body.Amount, 10),
		"extraData":   body.ExtraData,
		"ipnUrl":      body.IpnURL,
		"orderId":     body.OrderID,
		"orderInfo":   body.OrderInfo,
		"partnerCode": body.PartnerCode,
		"redirectUrl": body.RedirectURL,
		"requestId":   body.RequestID,
		"requestType": body.RequestType,
	}))

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal momo request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(g.cfg.Endpoint, "/")+momoCreatePath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create momo request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("momo create: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, momoMaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read momo response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("momo create: http status %d", resp.StatusCode)
	}

	var out momoCreateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode momo response: %w", err)
	}
	if out.ResultCode != 0 || out.PayURL == "" {
		return "", fmt.Errorf("momo create: result %d: %s", out.ResultCode, out.Message)
	}
	return out.PayURL, nil
}

func (g *MoMo) VerifySignature(payload map[string]string) bool {
	given := payload["signature"]
	if given == "" {
		return false
	}
	fields := make(map[string]string, len(momoCallbackFields))
	for _, k := range momoCallbackFields {
		fields[k] = payload[k]
	}
	fields["accessKey"] = g.cfg.AccessKey
	return signatureEqual(hmacSHA256(g.cfg.SecretKey, momoRaw(momoCallbackFields, fields)), given)
}

func (g *MoMo) ProcessCallback(payload map[string]string) ports.CallbackResult {
	code := payload["resultCode"]
	res := ports.CallbackResult{
		OrderID:       payload["orderId"],
		ProviderTxnID: payload["transId"],
		Code:          code,
		Success:       code == "0",
		Message:       momoMessages[code],
	}
	if res.Message == "" {
		res.Message = payload["message"]
	}
	if amount, err := strconv.ParseInt(payload["amount"], 10, 64); err == nil {
		res.Amount = amount
	} else {
		res.Amount = -1
	}
	return res
}

// Acknowledge answers 204 once the notification needs no redelivery.
func (g *MoMo) Acknowledge(ack domain.CallbackAck) (int, any) {
	switch ack {
	case domain.AckAccepted, domain.AckAlreadyProcessed:
		return http.StatusNoContent, nil
	case domain.AckOrderNotFound:
		return http.StatusBadRequest, momoAck{ResultCode: 1, Message: "order not found"}
	case domain.AckInvalidAmount:
		return http.StatusBadRequest, momoAck{ResultCode: 2, Message: "invalid amount"}
	case domain.AckInvalidSignature:
		return http.StatusBadRequest, momoAck{ResultCode: 97, Message: "invalid signature"}
	default:
		return http.StatusInternalServerError, momoAck{ResultCode: 99, Message: "retry later"}
	}
}

func momoRaw(order []string, fields map[string]string) string {
	var b strings.Builder
	for i, k := range order {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}
