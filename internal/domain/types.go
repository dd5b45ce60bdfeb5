package domain

import (
	"errors"
	"strings"
	"time"
)

// OrderStatus enumerates valid lifecycle states for orders. Values are
// stored in their canonical lowercase form; use ParseOrderStatus at input
// boundaries to normalize caller-supplied variants.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every placed order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery indicates the shipment is on its final leg.
	OrderStatusOutForDelivery OrderStatus = "out-for-delivery"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ErrUnknownOrderStatus is returned when a status token cannot be parsed.
var ErrUnknownOrderStatus = errors.New("domain: unknown order status")

// ParseOrderStatus normalizes a caller-supplied status token to its
// canonical form. Matching is case-insensitive and tolerates spaces or
// underscores in place of hyphens.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch OrderStatus(normalized) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(normalized), nil
	}
	return "", ErrUnknownOrderStatus
}

// PaymentMethod enumerates how an order is paid for.
type PaymentMethod string

const (
	// PaymentMethodCOD marks cash-on-delivery orders.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodGateway marks orders paid through the payment gateway.
	PaymentMethodGateway PaymentMethod = "gateway"
)

// ErrUnknownPaymentMethod is returned when a payment method token cannot be parsed.
var ErrUnknownPaymentMethod = errors.New("domain: unknown payment method")

// ParsePaymentMethod normalizes a caller-supplied payment method token.
// The provider name "razorpay" is accepted as an alias for the gateway method.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cod", "cash-on-delivery":
		return PaymentMethodCOD, nil
	case "gateway", "razorpay":
		return PaymentMethodGateway, nil
	}
	return "", ErrUnknownPaymentMethod
}

// Address is the canonical shipping address recorded on an order.
type Address struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

// OrderItem is one purchased line on an order. Items are fixed at creation.
type OrderItem struct {
	ProductID string
	Quantity  int
}

// PaymentReference holds the gateway identifiers attached to a paid order.
type PaymentReference struct {
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
}

// TrackingEntry is one record in an order's shipment history. Entries
// appended by a plain status change carry only a location; entries appended
// through the tracking endpoint carry both location and status. Array
// position, not the timestamp, defines recency.
type TrackingEntry struct {
	ID        string
	Location  string
	Status    OrderStatus
	Timestamp time.Time
}

// Order is the aggregate root for a placed order and its payment and
// fulfillment state.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	PaymentRef      *PaymentReference
	IsPaid          bool
	PaidAt          *time.Time
	Status          OrderStatus
	CurrentLocation string
	TrackingHistory []TrackingEntry
	IsDelivered     bool
	DeliveredAt     *time.Time
	TotalAmount     float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LastTrackingEntry returns the most recent history entry by array order.
func (o Order) LastTrackingEntry() (TrackingEntry, bool) {
	if len(o.TrackingHistory) == 0 {
		return TrackingEntry{}, false
	}
	return o.TrackingHistory[len(o.TrackingHistory)-1], true
}

// CartLine is a priced line item resolved from a user's cart at
// order-placement time.
type CartLine struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

// PaymentIntent mirrors the gateway's pending-charge object. It is never
// persisted by this service; the gateway owns it.
type PaymentIntent struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}
