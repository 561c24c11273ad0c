package domain

// CallbackSource identifies which path delivered a gateway result.
type CallbackSource string

const (
	CallbackSourceReturn CallbackSource = "RETURN" // browser redirect
	CallbackSourceNotify CallbackSource = "NOTIFY" // server-to-server notification
)

// CallbackAck is the provider-neutral acknowledgement a gateway adapter
// translates into its own response shape.
type CallbackAck int

const (
	AckAccepted CallbackAck = iota
	AckAlreadyProcessed
	AckOrderNotFound
	AckInvalidAmount
	AckInvalidSignature
	AckRetry
)

func (a CallbackAck) String() string {
	switch a {
	case AckAccepted:
		return "accepted"
	case AckAlreadyProcessed:
		return "already_processed"
	case AckOrderNotFound:
		return "order_not_found"
	case AckInvalidAmount:
		return "invalid_amount"
	case AckInvalidSignature:
		return "invalid_signature"
	case AckRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Deposit metadata keys recorded on the pending entry.
const (
	MetaRequestedAmount   = "requested_amount"
	MetaRequestedCurrency = "requested_currency"
	MetaGatewayAmount     = "gateway_amount"
	MetaGatewayCurrency   = "gateway_currency"
	MetaMethod            = "method"
	MetaProviderCode      = "provider_code"
	MetaProviderMessage   = "provider_message"
)
