package services

import (
	"context"

	domain "github.com/vastra-store/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	PaymentMethod      = domain.PaymentMethod
	PaymentReference   = domain.PaymentReference
	TrackingEntry      = domain.TrackingEntry
	Address            = domain.Address
	CartLine           = domain.CartLine
	PaymentIntent      = domain.PaymentIntent
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService encapsulates order placement, payment reconciliation, and tracking flows.
type OrderService interface {
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error)
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) error
	GetOrder(ctx context.Context, cmd GetOrderQuery) (Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	ListAllOrders(ctx context.Context) ([]Order, error)
	SetStatus(ctx context.Context, cmd SetStatusCommand) (Order, error)
	AddTrackingEntry(ctx context.Context, cmd AddTrackingCommand) (Order, error)
	DeleteTrackingEntry(ctx context.Context, cmd DeleteTrackingCommand) (Order, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CreatePaymentIntentCommand requests a gateway order for the given amount in major currency units.
type CreatePaymentIntentCommand struct {
	Amount   float64
	Currency string
	Notes    map[string]string
}

// PaymentIntentResult pairs the created intent with the publishable gateway key.
type PaymentIntentResult struct {
	Intent     PaymentIntent
	GatewayKey string
}

// PlaceOrderCommand captures order placement input. When Items is empty the
// caller's stored cart is resolved instead.
type PlaceOrderCommand struct {
	UserID          string
	Items           []OrderItem
	ShippingAddress Address
	PaymentMethod   string
	PaymentRef      *PaymentReference
	TotalAmount     float64
}

// GetOrderQuery identifies an order read along with the caller for ownership checks.
type GetOrderQuery struct {
	OrderID     string
	RequesterID string
	IsAdmin     bool
}

// SetStatusCommand updates the order status and optionally records a location waypoint.
type SetStatusCommand struct {
	OrderID  string
	Status   string
	Location string
}

// AddTrackingCommand appends a full tracking entry to the order history.
type AddTrackingCommand struct {
	OrderID  string
	Location string
	Status   string
}

// DeleteTrackingCommand removes a single tracking entry by ID.
type DeleteTrackingCommand struct {
	OrderID string
	EntryID string
}

// VerifyPaymentCommand checks a gateway callback signature. Verification is
// stateless; it never creates or mutates an order.
type VerifyPaymentCommand struct {
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
}
