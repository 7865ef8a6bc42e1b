// Package gateway implements the client for the external mobile-money
// payment provider. The provider's API is asynchronous: an initiate call
// may settle immediately, or only after status polling.
package gateway

import (
	"strings"
	"time"
)

// Normalized gateway statuses. SUCCESS, COMPLETED, FAILED and EXPIRED
// are terminal; PENDING and unknown are not.
const (
	StatusSuccess   = "SUCCESS"
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
	StatusExpired   = "EXPIRED"
	StatusUnknown   = ""
)

// InitiateRequest asks the provider to move money to a phone number on
// a given rail. Amount is in integer minor units.
type InitiateRequest struct {
	Phone     string
	Amount    int64
	Network   string
	Reference string
	Reason    string
}

// Response is the parsed provider reply. TransactionID is the canonical
// identifier, already resolved through the field-name fallback chain;
// Raw keeps the full body for diagnostics.
type Response struct {
	TransactionID    string
	Status           string
	ConfirmationCode string
	Raw              map[string]interface{}
}

// Terminal reports whether no further status change is expected.
func (r *Response) Terminal() bool {
	switch r.Status {
	case StatusSuccess, StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Succeeded reports a terminal success.
func (r *Response) Succeeded() bool {
	return r.Status == StatusSuccess || r.Status == StatusCompleted
}

// PollOptions bounds the status polling loop.
type PollOptions struct {
	Attempts     int
	InitialDelay time.Duration
	Interval     time.Duration
}

// Polling defaults: an initial pause gives the provider time to settle
// before the first check.
const (
	DefaultPollAttempts     = 30
	DefaultPollInitialDelay = 3 * time.Second
	DefaultPollInterval     = 10 * time.Second
)

func (o PollOptions) withDefaults() PollOptions {
	if o.Attempts <= 0 {
		o.Attempts = DefaultPollAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultPollInitialDelay
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	return o
}

// idFields is the fallback chain for the provider's transaction
// identifier. Different response shapes use different spellings; the
// first non-empty hit wins.
var idFields = []string{
	"transaction_id",
	"transactionId",
	"TransactionID",
	"tracking_id",
	"CheckoutRequestID",
	"checkout_request_id",
	"reference",
	"id",
}

// statusFields is the equivalent chain for the reported status.
var statusFields = []string{
	"status",
	"Status",
	"transaction_status",
	"ResultDesc",
	"state",
}

// confirmationFields locate the provider's human-facing receipt code.
var confirmationFields = []string{
	"confirmation_code",
	"MpesaReceiptNumber",
	"receipt",
	"provider_reference",
}

func parseResponse(raw map[string]interface{}) *Response {
	return &Response{
		TransactionID:    probeString(raw, idFields),
		Status:           NormalizeStatus(probeString(raw, statusFields)),
		ConfirmationCode: probeString(raw, confirmationFields),
		Raw:              raw,
	}
}

func probeString(raw map[string]interface{}, fields []string) string {
	for _, f := range fields {
		if v, ok := raw[f]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// NormalizeStatus maps the provider's status spellings onto the
// canonical set. Anything unrecognized comes back verbatim in upper
// case so callers can treat it as an explicit non-success.
func NormalizeStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "SUCCESSFUL", "SUCCEEDED":
		return StatusSuccess
	case "COMPLETED", "COMPLETE":
		return StatusCompleted
	case "PENDING", "QUEUED", "PROCESSING", "IN_PROGRESS":
		return StatusPending
	case "FAILED", "FAIL", "DECLINED", "REJECTED":
		return StatusFailed
	case "EXPIRED", "TIMEOUT":
		return StatusExpired
	case "":
		return StatusUnknown
	default:
		return strings.ToUpper(strings.TrimSpace(s))
	}
}
