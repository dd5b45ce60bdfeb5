package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/vastra-store/api/internal/domain"
	"github.com/vastra-store/api/internal/payments"
	"github.com/vastra-store/api/internal/platform/textutil"
	"github.com/vastra-store/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix    = "ord_"
	trackingIDPrefix = "trk_"

	receiptPrefix = "order_rcpt_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the caller may not read or modify the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates duplicate inserts or concurrent update failures.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrTrackingEntryNotFound indicates the referenced tracking entry does not exist.
	ErrTrackingEntryNotFound = errors.New("order: tracking entry not found")
	// ErrCartEmpty indicates order placement found no cart lines to convert.
	ErrCartEmpty = errors.New("order: cart is empty")
	// ErrPaymentVerification indicates the gateway signature did not match.
	ErrPaymentVerification = errors.New("order: payment verification failed")
	// ErrPaymentGateway indicates the payment gateway rejected or never answered the request.
	ErrPaymentGateway = errors.New("order: payment gateway error")
)

// PaymentVerifier checks a gateway callback signature against the shared secret.
type PaymentVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// TransitionPolicy vetoes status transitions. A nil policy permits every transition.
type TransitionPolicy func(current, next OrderStatus) error

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	OccurredAt     time.Time
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Gateway     payments.Gateway
	Verifier    PaymentVerifier
	GatewayKey  string
	Currency    string
	Policy      TransitionPolicy
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	carts      repositories.CartRepository
	gateway    payments.Gateway
	verifier   PaymentVerifier
	gatewayKey string
	currency   string
	policy     TransitionPolicy
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("order service: payment verifier is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "INR"
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		carts:      deps.Carts,
		gateway:    deps.Gateway,
		verifier:   deps.Verifier,
		gatewayKey: strings.TrimSpace(deps.GatewayKey),
		currency:   currency,
		policy:     deps.Policy,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error) {
	if math.IsNaN(cmd.Amount) || math.IsInf(cmd.Amount, 0) {
		return PaymentIntentResult{}, fmt.Errorf("%w: amount must be a finite number", ErrOrderInvalidInput)
	}
	if cmd.Amount <= 0 {
		return PaymentIntentResult{}, fmt.Errorf("%w: amount must be positive", ErrOrderInvalidInput)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}

	now := s.now()
	req := payments.IntentRequest{
		Amount:   minorUnits(cmd.Amount),
		Currency: currency,
		Receipt:  fmt.Sprintf("%s%d", receiptPrefix, now.UnixMilli()),
		Notes:    textutil.NormalizeStringMap(cmd.Notes),
	}

	intent, err := s.gateway.CreateIntent(ctx, req)
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	return PaymentIntentResult{
		Intent: domain.PaymentIntent{
			ID:       intent.ID,
			Amount:   intent.Amount,
			Currency: intent.Currency,
			Receipt:  intent.Receipt,
		},
		GatewayKey: s.gatewayKey,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	method, err := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	if err := validateAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		ID:              orderIDPrefix + s.newID(),
		UserID:          userID,
		ShippingAddress: trimAddress(cmd.ShippingAddress),
		PaymentMethod:   method,
		Status:          domain.OrderStatusPending,
		TrackingHistory: []TrackingEntry{},
		TotalAmount:     cmd.TotalAmount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	fromCart := len(cmd.Items) == 0
	if fromCart {
		items, total, err := s.resolveCart(ctx, userID)
		if err != nil {
			return Order{}, err
		}
		order.Items = items
		order.TotalAmount = total
	} else {
		items, err := validateItems(cmd.Items)
		if err != nil {
			return Order{}, err
		}
		order.Items = items
		if cmd.TotalAmount < 0 {
			return Order{}, fmt.Errorf("%w: total amount must not be negative", ErrOrderInvalidInput)
		}
	}

	if cmd.PaymentRef != nil {
		ref := domain.PaymentReference{
			GatewayOrderID:   strings.TrimSpace(cmd.PaymentRef.GatewayOrderID),
			GatewayPaymentID: strings.TrimSpace(cmd.PaymentRef.GatewayPaymentID),
			GatewaySignature: strings.TrimSpace(cmd.PaymentRef.GatewaySignature),
		}
		order.PaymentRef = &ref
	}

	if method == domain.PaymentMethodGateway && order.PaymentRef != nil && order.PaymentRef.GatewayPaymentID != "" {
		order.IsPaid = true
		paidAt := now
		order.PaidAt = &paidAt
	}

	inserted, err := s.orders.Insert(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if fromCart && s.carts != nil {
		if err := s.carts.Clear(ctx, userID); err != nil {
			s.logger(ctx, "order.cart.clear.failed", map[string]any{
				"order": inserted.ID,
				"user":  userID,
				"error": err.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       inserted.ID,
		UserID:        userID,
		CurrentStatus: string(inserted.Status),
		OccurredAt:    now,
	})

	return inserted, nil
}

func (s *orderService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) error {
	gatewayOrderID := strings.TrimSpace(cmd.GatewayOrderID)
	gatewayPaymentID := strings.TrimSpace(cmd.GatewayPaymentID)
	signature := strings.TrimSpace(cmd.GatewaySignature)
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return fmt.Errorf("%w: gateway order id, payment id, and signature are required", ErrOrderInvalidInput)
	}

	if !s.verifier.Verify(gatewayOrderID, gatewayPaymentID, signature) {
		s.logger(ctx, "order.payment.verification.failed", map[string]any{
			"gatewayOrder": gatewayOrderID,
		})
		return ErrPaymentVerification
	}
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderQuery) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !cmd.IsAdmin && order.UserID != strings.TrimSpace(cmd.RequesterID) {
		return Order{}, ErrOrderForbidden
	}
	return order, nil
}

func (s *orderService) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	orders, err := s.orders.ListByUser(ctx, uid)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) ListAllOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) SetStatus(ctx context.Context, cmd SetStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	status, err := domain.ParseOrderStatus(cmd.Status)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	location := strings.TrimSpace(cmd.Location)

	now := s.now()
	var prevStatus OrderStatus

	order, err := s.orders.Mutate(ctx, orderID, func(order domain.Order) (domain.Order, error) {
		prevStatus = order.Status
		if err := s.allowTransition(order.Status, status); err != nil {
			return domain.Order{}, err
		}

		order.Status = status
		if location != "" {
			last, ok := order.LastTrackingEntry()
			if !ok || last.Location != location {
				order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEntry{
					ID:        trackingIDPrefix + s.newID(),
					Location:  location,
					Timestamp: now,
				})
			}
			order.CurrentLocation = location
		}
		applyDeliveredState(&order, now)
		order.UpdatedAt = now
		return order, nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if prevStatus != order.Status {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(order.Status),
			OccurredAt:     now,
		})
	}

	return order, nil
}

func (s *orderService) AddTrackingEntry(ctx context.Context, cmd AddTrackingCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	location := strings.TrimSpace(cmd.Location)
	if location == "" {
		return Order{}, fmt.Errorf("%w: location is required", ErrOrderInvalidInput)
	}

	status, err := domain.ParseOrderStatus(cmd.Status)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	now := s.now()
	var prevStatus OrderStatus

	order, err := s.orders.Mutate(ctx, orderID, func(order domain.Order) (domain.Order, error) {
		prevStatus = order.Status
		if err := s.allowTransition(order.Status, status); err != nil {
			return domain.Order{}, err
		}

		order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEntry{
			ID:        trackingIDPrefix + s.newID(),
			Location:  location,
			Status:    status,
			Timestamp: now,
		})
		order.Status = status
		order.CurrentLocation = location
		applyDeliveredState(&order, now)
		order.UpdatedAt = now
		return order, nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if prevStatus != order.Status {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(order.Status),
			OccurredAt:     now,
		})
	}

	return order, nil
}

func (s *orderService) DeleteTrackingEntry(ctx context.Context, cmd DeleteTrackingCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	entryID := strings.TrimSpace(cmd.EntryID)
	if entryID == "" {
		return Order{}, fmt.Errorf("%w: tracking entry id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var prevStatus OrderStatus

	order, err := s.orders.Mutate(ctx, orderID, func(order domain.Order) (domain.Order, error) {
		prevStatus = order.Status

		index := -1
		for i, entry := range order.TrackingHistory {
			if entry.ID == entryID {
				index = i
				break
			}
		}
		if index < 0 {
			return domain.Order{}, ErrTrackingEntryNotFound
		}

		order.TrackingHistory = append(order.TrackingHistory[:index], order.TrackingHistory[index+1:]...)

		// The remaining last entry dictates status and location. Entries
		// recorded without a status fall back to pending.
		status := domain.OrderStatusPending
		location := ""
		if last, ok := order.LastTrackingEntry(); ok {
			location = last.Location
			if last.Status != "" {
				status = last.Status
			}
		}
		order.Status = status
		order.CurrentLocation = location
		applyDeliveredState(&order, now)
		order.UpdatedAt = now
		return order, nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if prevStatus != order.Status {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(order.Status),
			OccurredAt:     now,
		})
	}

	return order, nil
}

func (s *orderService) resolveCart(ctx context.Context, userID string) ([]OrderItem, float64, error) {
	if s.carts == nil {
		return nil, 0, fmt.Errorf("%w: no items provided", ErrOrderInvalidInput)
	}

	lines, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, 0, ErrCartEmpty
		}
		return nil, 0, s.mapRepositoryError(err)
	}
	if len(lines) == 0 {
		return nil, 0, ErrCartEmpty
	}

	items := make([]OrderItem, 0, len(lines))
	var total float64
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" || line.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: cart contains an invalid line", ErrOrderInvalidInput)
		}
		items = append(items, OrderItem{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  line.Quantity,
		})
		total += line.UnitPrice * float64(line.Quantity)
	}
	return items, total, nil
}

func (s *orderService) allowTransition(current, next OrderStatus) error {
	if s.policy == nil || current == next {
		return nil
	}
	if err := s.policy(current, next); err != nil {
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	return nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

// applyDeliveredState marks delivery exactly once. Flags are sticky: leaving
// the delivered status later does not erase the recorded delivery time.
func applyDeliveredState(order *domain.Order, now time.Time) {
	if order.Status != domain.OrderStatusDelivered {
		return
	}
	order.IsDelivered = true
	if order.DeliveredAt == nil {
		deliveredAt := now
		order.DeliveredAt = &deliveredAt
	}
}

func validateAddress(addr Address) error {
	if strings.TrimSpace(addr.Address) == "" || strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.PostalCode) == "" || strings.TrimSpace(addr.Country) == "" {
		return fmt.Errorf("%w: shipping address is incomplete", ErrOrderInvalidInput)
	}
	return nil
}

func trimAddress(addr Address) Address {
	return Address{
		Address:    strings.TrimSpace(addr.Address),
		City:       strings.TrimSpace(addr.City),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
	}
}

func validateItems(items []OrderItem) ([]OrderItem, error) {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: item product id is required", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrOrderInvalidInput)
		}
		out = append(out, OrderItem{ProductID: productID, Quantity: item.Quantity})
	}
	return out, nil
}

// minorUnits converts a major-unit amount to the gateway's integer minor units,
// rounding half away from zero.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
