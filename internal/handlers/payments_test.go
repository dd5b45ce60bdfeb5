package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/vastra-store/api/internal/domain"
	"github.com/vastra-store/api/internal/platform/auth"
	"github.com/vastra-store/api/internal/services"
)

func newPaymentRouter(service services.OrderService) chi.Router {
	handler := NewPaymentHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/payments", handler.Routes)
	return router
}

func TestPaymentHandlersCreateIntent(t *testing.T) {
	var captured services.CreatePaymentIntentCommand
	service := &stubOrderService{
		createIntentFn: func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
			captured = cmd
			return services.PaymentIntentResult{
				Intent: domain.PaymentIntent{
					ID:       "order_G42",
					Amount:   50000,
					Currency: "INR",
					Receipt:  "order_rcpt_1700000000000",
				},
				GatewayKey: "rzp_test_key",
			}, nil
		},
	}

	body := `{"amount": 500, "currency": "INR", "notes": {"campaign": "festive"}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/intents", bytes.NewBufferString(body))
	req = withIdentity(req, "user-1", auth.RoleUser)
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Amount != 500 || captured.Currency != "INR" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.Notes["campaign"] != "festive" {
		t.Fatalf("expected notes forwarded, got %v", captured.Notes)
	}

	var resp paymentIntentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.IntentID != "order_G42" || resp.Amount != 50000 || resp.Key != "rzp_test_key" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPaymentHandlersCreateIntentRejectsInvalidAmount(t *testing.T) {
	service := &stubOrderService{
		createIntentFn: func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
			return services.PaymentIntentResult{}, fmt.Errorf("%w: amount must be positive", services.ErrOrderInvalidInput)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/intents", bytes.NewBufferString(`{"amount": -5}`))
	req = withIdentity(req, "user-1", auth.RoleUser)
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentHandlersCreateIntentGatewayFailure(t *testing.T) {
	service := &stubOrderService{
		createIntentFn: func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
			return services.PaymentIntentResult{}, fmt.Errorf("%w: create order", services.ErrPaymentGateway)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/intents", bytes.NewBufferString(`{"amount": 500}`))
	req = withIdentity(req, "user-1", auth.RoleUser)
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "payment_gateway_unavailable" {
		t.Fatalf("expected payment_gateway_unavailable error, got %v", body["error"])
	}
}

func TestPaymentHandlersVerifySuccess(t *testing.T) {
	var captured services.VerifyPaymentCommand
	service := &stubOrderService{
		verifyFn: func(ctx context.Context, cmd services.VerifyPaymentCommand) error {
			captured = cmd
			return nil
		},
	}

	body := `{"gatewayOrderId": "order_G42", "gatewayPaymentId": "pay_G42", "signature": "deadbeef"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(body))
	req = withIdentity(req, "user-1", auth.RoleUser)
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.GatewayOrderID != "order_G42" || captured.GatewayPaymentID != "pay_G42" || captured.GatewaySignature != "deadbeef" {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var resp verifyPaymentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Verified {
		t.Fatalf("expected verified true")
	}
}

func TestPaymentHandlersVerifyAcceptsStoredSignatureField(t *testing.T) {
	var captured services.VerifyPaymentCommand
	service := &stubOrderService{
		verifyFn: func(ctx context.Context, cmd services.VerifyPaymentCommand) error {
			captured = cmd
			return nil
		},
	}

	body := `{"gatewayOrderId": "order_G42", "gatewayPaymentId": "pay_G42", "gatewaySignature": "cafe"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(body))
	req = withIdentity(req, "user-1", auth.RoleUser)
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.GatewaySignature != "cafe" {
		t.Fatalf("expected gatewaySignature alias accepted, got %+v", captured)
	}
}

func TestPaymentHandlersVerifyMismatch(t *testing.T) {
	service := &stubOrderService{
		verifyFn: func(ctx context.Context, cmd services.VerifyPaymentCommand) error {
			return fmt.Errorf("%w: signature mismatch", services.ErrPaymentVerification)
		},
	}

	body := `{"gatewayOrderId": "order_G42", "gatewayPaymentId": "pay_G42", "signature": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(body))
	req = withIdentity(req, "user-1", auth.RoleUser)
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp verifyPaymentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Verified {
		t.Fatalf("expected verified false")
	}
}

func TestPaymentHandlersVerifyMissingFields(t *testing.T) {
	service := &stubOrderService{
		verifyFn: func(ctx context.Context, cmd services.VerifyPaymentCommand) error {
			return fmt.Errorf("%w: gateway order id is required", services.ErrOrderInvalidInput)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(`{"signature": "x"}`))
	req = withIdentity(req, "user-1", auth.RoleUser)
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "invalid_request" {
		t.Fatalf("expected invalid_request error, got %v", body["error"])
	}
}

func TestPaymentHandlersCreateIntentRateLimited(t *testing.T) {
	service := &stubOrderService{
		createIntentFn: func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
			return services.PaymentIntentResult{Intent: domain.PaymentIntent{ID: "order_G1"}}, nil
		},
	}

	handler := NewPaymentHandlers(nil, service, WithIntentRateLimit(1, time.Minute))
	router := chi.NewRouter()
	router.Route("/payments", handler.Routes)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/intents", bytes.NewBufferString(`{"amount": 100}`))
		req = withIdentity(req, "user-1", auth.RoleUser)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(); rr.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}
	if rr := send(); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rate limited, got %d", rr.Code)
	}
}

func TestPaymentHandlersRequireAuth(t *testing.T) {
	service := &stubOrderService{}

	req := httptest.NewRequest(http.MethodPost, "/payments/intents", bytes.NewBufferString(`{"amount": 1}`))
	rr := httptest.NewRecorder()

	newPaymentRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
