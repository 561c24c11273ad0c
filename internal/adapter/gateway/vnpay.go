package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"fairplay-wallet/config"
	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
)

const (
	vnpayVersion      = "2.1.0"
	vnpaySecureHash   = "vnp_SecureHash"
	vnpayHashType     = "vnp_SecureHashType"
	vnpayDateLayout   = "20060102150405"
	vnpayExpiry       = 15 * time.Minute
	vnpayAmountFactor = 100
)

// vnpayZone is the provider's local time (GMT+7).
var vnpayZone = time.FixedZone("ICT", 7*60*60)

// vnpayMessages maps vnp_ResponseCode to a description.
var vnpayMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Money deducted, transaction suspected of fraud",
	"09": "Card or account not registered for internet banking",
	"10": "Card or account verification failed more than 3 times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Wrong one-time password",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient balance",
	"65": "Daily transaction limit exceeded",
	"75": "Bank under maintenance",
	"79": "Wrong payment password too many times",
	"99": "Unknown error",
}

// vnpayAcks maps a callback outcome to the IPN RspCode.
var vnpayAcks = map[domain.CallbackAck]vnpayAck{
	domain.AckAccepted:         {RspCode: "00", Message: "Confirm Success"},
	domain.AckAlreadyProcessed: {RspCode: "02", Message: "Order already confirmed"},
	domain.AckOrderNotFound:    {RspCode: "01", Message: "Order not found"},
	domain.AckInvalidAmount:    {RspCode: "04", Message: "Invalid amount"},
	domain.AckInvalidSignature: {RspCode: "97", Message: "Invalid signature"},
	domain.AckRetry:            {RspCode: "99", Message: "Unknown error"},
}

type vnpayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VNPay builds signed redirect URLs and verifies VNPay callbacks.
type VNPay struct {
	cfg config.VNPayConfig
	now func() time.Time
}

// NewVNPay creates a new VNPay gateway.
func NewVNPay(cfg config.VNPayConfig) *VNPay {
	return &VNPay{cfg: cfg, now: time.Now}
}

func (g *VNPay) Name() string     { return "vnpay" }
func (g *VNPay) Currency() string { return "VND" }

// CreatePaymentURL signs the request locally; no network call is made.
func (g *VNPay) CreatePaymentURL(_ context.Context, req ports.PaymentURLRequest) (string, error) {
	now := g.now().In(vnpayZone)
	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}

	params := map[string]string{
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(req.Amount*vnpayAmountFactor, 10),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     req.OrderID,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "other",
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": now.Format(vnpayDateLayout),
		"vnp_ExpireDate": now.Add(vnpayExpiry).Format(vnpayDateLayout),
	}

	query := vnpayCanonical(params)
	return g.cfg.PayURL + "?" + query + "&" + vnpaySecureHash + "=" + hmacSHA512(g.cfg.HashSecret, query), nil
}

// VerifySignature re-signs every vnp_ field except the hash fields.
func (g *VNPay) VerifySignature(payload map[string]string) bool {
	given := payload[vnpaySecureHash]
	if given == "" {
		return false
	}

	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		if !strings.HasPrefix(k, "vnp_") || k == vnpaySecureHash || k == vnpayHashType {
			continue
		}
		fields[k] = v
	}
	return signatureEqual(hmacSHA512(g.cfg.HashSecret, vnpayCanonical(fields)), given)
}

func (g *VNPay) ProcessCallback(payload map[string]string) ports.CallbackResult {
	code := payload["vnp_ResponseCode"]
	res := ports.CallbackResult{
		OrderID:       payload["vnp_TxnRef"],
		ProviderTxnID: payload["vnp_TransactionNo"],
		Code:          code,
		Success:       code == "00" && payload["vnp_TransactionStatus"] == "00",
		Message:       vnpayMessages[code],
	}
	if res.Message == "" {
		res.Message = "Unknown response code " + code
	}
	if raw, err := strconv.ParseInt(payload["vnp_Amount"], 10, 64); err == nil {
		res.Amount = raw / vnpayAmountFactor
	} else {
		res.Amount = -1
	}
	return res
}

// Acknowledge always answers HTTP 200; the outcome travels in RspCode.
func (g *VNPay) Acknowledge(ack domain.CallbackAck) (int, any) {
	body, ok := vnpayAcks[ack]
	if !ok {
		body = vnpayAcks[domain.AckRetry]
	}
	return http.StatusOK, body
}

// vnpayCanonical sorts params by key, drops empty values and form-encodes
// the rest.
func vnpayCanonical(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
