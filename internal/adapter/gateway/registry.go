// Package gateway implements the payment providers behind ports.PaymentGateway.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"fairplay-wallet/internal/core/ports"
)

// HTTPClient is the subset of *http.Client used by gateways.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry selects a gateway by payment method name.
type Registry struct {
	gateways map[string]ports.PaymentGateway
}

// NewRegistry registers each gateway under its Name.
func NewRegistry(gateways ...ports.PaymentGateway) *Registry {
	r := &Registry{gateways: make(map[string]ports.PaymentGateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[strings.ToLower(g.Name())] = g
	}
	return r
}

func (r *Registry) Get(method string) (ports.PaymentGateway, bool) {
	g, ok := r.gateways[strings.ToLower(method)]
	return g, ok
}

// Methods lists registered method names in lexical order.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DecodeJSONPayload flattens a JSON object into string values, keeping
// numbers in their literal form so signatures can be recomputed.
func DecodeJSONPayload(r io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode callback payload: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode field %s: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

func hmacSHA512(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacSHA256(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// signatureEqual compares hex signatures in constant time, ignoring case.
func signatureEqual(expected, given string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(given)))
}
