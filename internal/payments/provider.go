package payments

import (
	"context"
	"errors"
)

// GatewayLogger defines the logging contract for gateway operations.
type GatewayLogger func(ctx context.Context, event string, fields map[string]any)

// ErrGatewayUnavailable wraps transport failures, timeouts, and upstream
// rejections from the payment gateway. Callers rely on errors.Is to
// distinguish gateway trouble from their own input mistakes.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// IntentRequest captures the payload required to create a gateway order.
// Amount is expressed in the currency's minor unit.
type IntentRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Intent mirrors the gateway's pending-charge object returned to the client.
type Intent struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Raw      map[string]any
}

// Gateway defines the contract payment gateway adapters implement.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}
