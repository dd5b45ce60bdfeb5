package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

const defaultCreateTimeout = 10 * time.Second

type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayProviderConfig configures the RazorpayProvider.
type RazorpayProviderConfig struct {
	KeyID     string
	KeySecret string
	Timeout   time.Duration
	Logger    GatewayLogger
	// API overrides the SDK-backed order client, primarily for tests.
	API razorpayOrderAPI
}

// RazorpayProvider implements the Gateway interface using the Razorpay Orders API.
type RazorpayProvider struct {
	api     razorpayOrderAPI
	timeout time.Duration
	logger  GatewayLogger
}

// NewRazorpayProvider constructs a Razorpay Gateway using the given configuration.
func NewRazorpayProvider(cfg RazorpayProviderConfig) (*RazorpayProvider, error) {
	api := cfg.API
	if api == nil {
		keyID := strings.TrimSpace(cfg.KeyID)
		keySecret := strings.TrimSpace(cfg.KeySecret)
		if keyID == "" || keySecret == "" {
			return nil, errors.New("razorpay: key id and key secret are required")
		}
		api = razorpay.NewClient(keyID, keySecret).Order
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCreateTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &RazorpayProvider{
		api:     api,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// CreateIntent creates a gateway order representing a pending charge.
// The SDK call has no context support, so it runs on its own goroutine and
// the result is abandoned once the deadline passes.
func (p *RazorpayProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if p == nil || p.api == nil {
		return Intent{}, errors.New("razorpay: provider is not initialised")
	}
	if req.Amount <= 0 {
		return Intent{}, errors.New("razorpay: amount must be positive")
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		return Intent{}, errors.New("razorpay: currency is required")
	}

	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": currency,
	}
	if receipt := strings.TrimSpace(req.Receipt); receipt != "" {
		data["receipt"] = receipt
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type createResult struct {
		body map[string]interface{}
		err  error
	}
	resultCh := make(chan createResult, 1)
	go func() {
		body, err := p.api.Create(data, nil)
		resultCh <- createResult{body: body, err: err}
	}()

	var body map[string]interface{}
	select {
	case <-ctx.Done():
		p.logger(ctx, "razorpay.order.create.timeout", map[string]any{
			"amount":   req.Amount,
			"currency": currency,
		})
		return Intent{}, fmt.Errorf("%w: create order: %v", ErrGatewayUnavailable, ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			p.logger(ctx, "razorpay.order.create.failed", map[string]any{
				"amount":   req.Amount,
				"currency": currency,
				"error":    res.err.Error(),
			})
			return Intent{}, fmt.Errorf("%w: create order: %v", ErrGatewayUnavailable, res.err)
		}
		body = res.body
	}

	intent := Intent{
		ID:       stringField(body, "id"),
		Amount:   int64Field(body, "amount"),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
		Raw:      body,
	}
	if intent.ID == "" {
		return Intent{}, fmt.Errorf("%w: create order: response missing order id", ErrGatewayUnavailable)
	}
	if intent.Amount == 0 {
		intent.Amount = req.Amount
	}
	if intent.Currency == "" {
		intent.Currency = currency
	}

	p.logger(ctx, "razorpay.order.created", map[string]any{
		"order_id": intent.ID,
		"amount":   intent.Amount,
		"currency": intent.Currency,
	})
	return intent, nil
}

func stringField(body map[string]interface{}, key string) string {
	if body == nil {
		return ""
	}
	value, _ := body[key].(string)
	return strings.TrimSpace(value)
}

func int64Field(body map[string]interface{}, key string) int64 {
	if body == nil {
		return 0
	}
	switch v := body[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
