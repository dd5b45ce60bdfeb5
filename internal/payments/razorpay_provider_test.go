package payments

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeOrderAPI struct {
	fn    func(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	calls int
	last  map[string]interface{}
}

func (f *fakeOrderAPI) Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error) {
	f.calls++
	f.last = data
	if f.fn != nil {
		return f.fn(data, extraHeaders)
	}
	return nil, errors.New("fake: no response configured")
}

func TestRazorpayCreateIntent(t *testing.T) {
	api := &fakeOrderAPI{fn: func(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
		return map[string]interface{}{
			"id":       "order_ABC123",
			"amount":   float64(50000),
			"currency": "INR",
			"receipt":  data["receipt"],
			"status":   "created",
		}, nil
	}}

	provider, err := NewRazorpayProvider(RazorpayProviderConfig{API: api})
	if err != nil {
		t.Fatalf("NewRazorpayProvider returned error: %v", err)
	}

	intent, err := provider.CreateIntent(context.Background(), IntentRequest{
		Amount:   50000,
		Currency: "INR",
		Receipt:  "order_rcpt_1",
	})
	if err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}

	if intent.ID != "order_ABC123" {
		t.Errorf("unexpected intent id %s", intent.ID)
	}
	if intent.Amount != 50000 {
		t.Errorf("unexpected amount %d", intent.Amount)
	}
	if intent.Currency != "INR" {
		t.Errorf("unexpected currency %s", intent.Currency)
	}
	if intent.Receipt != "order_rcpt_1" {
		t.Errorf("unexpected receipt %s", intent.Receipt)
	}
	if api.calls != 1 {
		t.Errorf("expected single gateway call, got %d", api.calls)
	}
	if got := api.last["amount"]; got != int64(50000) {
		t.Errorf("expected minor-unit amount forwarded, got %v", got)
	}
}

func TestRazorpayCreateIntentValidation(t *testing.T) {
	provider, err := NewRazorpayProvider(RazorpayProviderConfig{API: &fakeOrderAPI{}})
	if err != nil {
		t.Fatalf("NewRazorpayProvider returned error: %v", err)
	}

	if _, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 0, Currency: "INR"}); err == nil {
		t.Error("expected error for non-positive amount")
	}
	if _, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: " "}); err == nil {
		t.Error("expected error for missing currency")
	}
}

func TestRazorpayCreateIntentGatewayFailure(t *testing.T) {
	api := &fakeOrderAPI{fn: func(map[string]interface{}, map[string]string) (map[string]interface{}, error) {
		return nil, errors.New("BAD_REQUEST_ERROR: authentication failed")
	}}

	provider, err := NewRazorpayProvider(RazorpayProviderConfig{API: api})
	if err != nil {
		t.Fatalf("NewRazorpayProvider returned error: %v", err)
	}

	_, err = provider.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: "INR"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestRazorpayCreateIntentTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	api := &fakeOrderAPI{fn: func(map[string]interface{}, map[string]string) (map[string]interface{}, error) {
		<-release
		return map[string]interface{}{"id": "order_LATE"}, nil
	}}

	provider, err := NewRazorpayProvider(RazorpayProviderConfig{API: api, Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewRazorpayProvider returned error: %v", err)
	}

	_, err = provider.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: "INR"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable on timeout, got %v", err)
	}
}

func TestRazorpayCreateIntentMissingOrderID(t *testing.T) {
	api := &fakeOrderAPI{fn: func(map[string]interface{}, map[string]string) (map[string]interface{}, error) {
		return map[string]interface{}{"amount": float64(100)}, nil
	}}

	provider, err := NewRazorpayProvider(RazorpayProviderConfig{API: api})
	if err != nil {
		t.Fatalf("NewRazorpayProvider returned error: %v", err)
	}

	_, err = provider.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: "INR"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable for malformed response, got %v", err)
	}
}

func TestNewRazorpayProviderRequiresCredentials(t *testing.T) {
	if _, err := NewRazorpayProvider(RazorpayProviderConfig{}); err == nil {
		t.Fatal("expected error when credentials and API are absent")
	}
}
