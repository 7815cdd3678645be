package webhook

import "errors"

// Stable error identities for delivery outcomes. Detailed context is
// wrapped around them with fmt.Errorf / errors.Join at the call site.
//
//   - Configuration errors: invalid setup or parameters (fail fast)
//   - Delivery errors: network, timeout, or HTTP failures (may retry)
//   - Circuit breaker: protection when an endpoint consistently fails
var (
	ErrDeliveryFailed       = errors.New("webhook delivery failed")
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrPermanentFailure     = errors.New("permanent webhook failure")
	ErrTemporaryFailure     = errors.New("temporary webhook failure")
	ErrCircuitOpen          = errors.New("webhook circuit breaker is open")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrInvalidURL           = errors.New("invalid webhook URL")
	ErrTimeout              = errors.New("webhook request timeout")
)

// IsCircuitOpen checks if an error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
