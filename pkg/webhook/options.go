package webhook

import (
	"net/http"
	"time"
)

// DeliveryResult contains information about a single delivery attempt.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Error      error
}

// DeliveryHook is called after each delivery attempt.
type DeliveryHook func(result DeliveryResult)

type sendOptions struct {
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client

	maxRetries      int
	backoffStrategy BackoffStrategy

	signatureSecret string

	circuitBreaker *CircuitBreaker

	onDelivery DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:         10 * time.Second,
		headers:         make(map[string]string),
		maxRetries:      3,
		backoffStrategy: DefaultBackoffStrategy(),
	}
}

// SendOption is a functional option for configuring a send.
type SendOption func(*sendOptions)

// WithTimeout sets the per-request timeout. Default is 10 seconds.
// Every provider call is a suspension point for the dispatcher, so the
// timeout must always be bounded; zero or negative values are ignored.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a custom header to the request.
// Standard headers like Content-Type are set automatically.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithHeaders adds multiple custom headers to the request.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			if k != "" && v != "" {
				o.headers[k] = v
			}
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
// Default is 3. Set to 0 to disable retries (the dispatcher does this:
// it owns its own retry schedule and wants exactly one attempt per call).
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff sets the backoff strategy for retries.
// Default is exponential backoff with jitter.
func WithBackoff(strategy BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if strategy != nil {
			o.backoffStrategy = strategy
		}
	}
}

// WithSignature enables HMAC-SHA256 request signing with the given secret.
// Adds X-Webhook-Signature, X-Webhook-Timestamp, and X-Webhook-ID headers.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithHTTPClient sets a custom HTTP client for the request.
// Useful for custom transports, proxies, or testing.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithCircuitBreaker enables circuit breaker protection for the endpoint.
// Reuse the same instance per endpoint to track failure state across requests.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.circuitBreaker = cb
	}
}

// WithOnDelivery sets a callback invoked after each delivery attempt.
// Useful for logging and metrics.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}
