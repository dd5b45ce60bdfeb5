package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/vastra-store/api/internal/domain"
	pfirestore "github.com/vastra-store/api/internal/platform/firestore"
	"github.com/vastra-store/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order documents within Firestore.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert creates the order document, failing if the ID is already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	doc := encodeOrder(order)
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return decodeOrder(orderID, doc), nil
}

// FindByID loads a single order document.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// ListByUser returns the user's orders, most recent first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", uid).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs), nil
}

// ListAll returns every order, most recent first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs), nil
}

// Mutate loads the order, applies fn, and writes the result within a single transaction.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn repositories.OrderMutator) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if fn == nil {
		return domain.Order{}, errors.New("order repository: mutator is required")
	}

	var mutated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}

		next, err := fn(decodeOrder(id, doc))
		if err != nil {
			return err
		}
		next.ID = id

		if err := tx.Set(ref, encodeOrder(next)); err != nil {
			return err
		}
		mutated = next
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.mutate", err)
	}
	return mutated, nil
}

func decodeOrders(docs []pfirestore.Document[orderDocument]) []domain.Order {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		UserID:          strings.TrimSpace(order.UserID),
		PaymentMethod:   string(order.PaymentMethod),
		IsPaid:          order.IsPaid,
		Status:          string(order.Status),
		CurrentLocation: strings.TrimSpace(order.CurrentLocation),
		IsDelivered:     order.IsDelivered,
		TotalAmount:     order.TotalAmount,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}

	doc.ShippingAddress = orderAddressDocument{
		Address:    strings.TrimSpace(order.ShippingAddress.Address),
		City:       strings.TrimSpace(order.ShippingAddress.City),
		PostalCode: strings.TrimSpace(order.ShippingAddress.PostalCode),
		Country:    strings.TrimSpace(order.ShippingAddress.Country),
	}

	doc.Items = make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	doc.TrackingHistory = make([]trackingEntryDocument, 0, len(order.TrackingHistory))
	for _, entry := range order.TrackingHistory {
		doc.TrackingHistory = append(doc.TrackingHistory, trackingEntryDocument{
			ID:        strings.TrimSpace(entry.ID),
			Location:  strings.TrimSpace(entry.Location),
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp.UTC(),
		})
	}

	if order.PaymentRef != nil {
		doc.PaymentRef = &orderPaymentRefDocument{
			GatewayOrderID:   strings.TrimSpace(order.PaymentRef.GatewayOrderID),
			GatewayPaymentID: strings.TrimSpace(order.PaymentRef.GatewayPaymentID),
			GatewaySignature: strings.TrimSpace(order.PaymentRef.GatewaySignature),
		}
	}
	if order.PaidAt != nil {
		paidAt := order.PaidAt.UTC()
		doc.PaidAt = &paidAt
	}
	if order.DeliveredAt != nil {
		deliveredAt := order.DeliveredAt.UTC()
		doc.DeliveredAt = &deliveredAt
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:              id,
		UserID:          doc.UserID,
		PaymentMethod:   domain.PaymentMethod(doc.PaymentMethod),
		IsPaid:          doc.IsPaid,
		Status:          domain.OrderStatus(doc.Status),
		CurrentLocation: doc.CurrentLocation,
		IsDelivered:     doc.IsDelivered,
		TotalAmount:     doc.TotalAmount,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}

	order.ShippingAddress = domain.Address{
		Address:    doc.ShippingAddress.Address,
		City:       doc.ShippingAddress.City,
		PostalCode: doc.ShippingAddress.PostalCode,
		Country:    doc.ShippingAddress.Country,
	}

	order.Items = make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order.TrackingHistory = make([]domain.TrackingEntry, 0, len(doc.TrackingHistory))
	for _, entry := range doc.TrackingHistory {
		order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEntry{
			ID:        entry.ID,
			Location:  entry.Location,
			Status:    domain.OrderStatus(entry.Status),
			Timestamp: entry.Timestamp,
		})
	}

	if doc.PaymentRef != nil {
		order.PaymentRef = &domain.PaymentReference{
			GatewayOrderID:   doc.PaymentRef.GatewayOrderID,
			GatewayPaymentID: doc.PaymentRef.GatewayPaymentID,
			GatewaySignature: doc.PaymentRef.GatewaySignature,
		}
	}
	if doc.PaidAt != nil {
		paidAt := *doc.PaidAt
		order.PaidAt = &paidAt
	}
	if doc.DeliveredAt != nil {
		deliveredAt := *doc.DeliveredAt
		order.DeliveredAt = &deliveredAt
	}
	return order
}

type orderDocument struct {
	UserID          string                   `firestore:"userId"`
	Items           []orderItemDocument      `firestore:"items"`
	ShippingAddress orderAddressDocument     `firestore:"shippingAddress"`
	PaymentMethod   string                   `firestore:"paymentMethod"`
	PaymentRef      *orderPaymentRefDocument `firestore:"paymentRef,omitempty"`
	IsPaid          bool                     `firestore:"isPaid"`
	PaidAt          *time.Time               `firestore:"paidAt,omitempty"`
	Status          string                   `firestore:"status"`
	CurrentLocation string                   `firestore:"currentLocation,omitempty"`
	TrackingHistory []trackingEntryDocument  `firestore:"trackingHistory"`
	IsDelivered     bool                     `firestore:"isDelivered"`
	DeliveredAt     *time.Time               `firestore:"deliveredAt,omitempty"`
	TotalAmount     float64                  `firestore:"totalAmount"`
	CreatedAt       time.Time                `firestore:"createdAt"`
	UpdatedAt       time.Time                `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"quantity"`
}

type orderAddressDocument struct {
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderPaymentRefDocument struct {
	GatewayOrderID   string `firestore:"gatewayOrderId"`
	GatewayPaymentID string `firestore:"gatewayPaymentId,omitempty"`
	GatewaySignature string `firestore:"gatewaySignature,omitempty"`
}

type trackingEntryDocument struct {
	ID        string    `firestore:"id"`
	Location  string    `firestore:"location,omitempty"`
	Status    string    `firestore:"status,omitempty"`
	Timestamp time.Time `firestore:"timestamp"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
