package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vastra-store/api/internal/platform/auth"
	"github.com/vastra-store/api/internal/platform/httpx"
	"github.com/vastra-store/api/internal/platform/pagination"
	"github.com/vastra-store/api/internal/services"
)

const (
	maxPlaceOrderBodySize = 64 * 1024
	maxStatusBodySize     = 8 * 1024
	maxTrackingBodySize   = 8 * 1024

	defaultAdminPageSize = 50
	maxAdminPageSize     = 200
)

// OrderHandlers exposes order placement, read, and fulfillment endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.placeOrder)
	r.Get("/", h.listAllOrders)
	r.Get("/mine", h.listMyOrders)
	r.Get("/user/{userID}", h.listUserOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/status", h.setStatus)
	r.Post("/{orderID}/tracking", h.addTrackingEntry)
	r.Delete("/{orderID}/tracking/{entryID}", h.deleteTrackingEntry)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxPlaceOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req placeOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.PlaceOrderCommand{
		UserID:          strings.TrimSpace(identity.UID),
		Items:           req.items(),
		ShippingAddress: req.ShippingAddress.toAddress(),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		TotalAmount:     req.TotalAmount,
	}
	if req.PaymentRef != nil {
		cmd.PaymentRef = &services.PaymentReference{
			GatewayOrderID:   strings.TrimSpace(req.PaymentRef.GatewayOrderID),
			GatewayPaymentID: strings.TrimSpace(req.PaymentRef.GatewayPaymentID),
			GatewaySignature: strings.TrimSpace(req.PaymentRef.GatewaySignature),
		}
	}

	order, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrdersByUser(ctx, strings.TrimSpace(identity.UID))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(orders))
}

func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !requireAdmin(ctx, w, identity) {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultAdminPageSize,
		MaxPageSize:     maxAdminPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListAllOrders(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	page, next, err := paginateOrders(orders, params)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	response := buildOrderListResponse(page)
	response.NextPageToken = next
	writeJSONResponse(w, http.StatusOK, response)
}

// paginateOrders windows the listing using an opaque cursor that names the
// last order of the previous page. A cursor that no longer matches any
// order is reported instead of silently restarting at page one.
func paginateOrders(orders []services.Order, params pagination.Params) ([]services.Order, string, error) {
	start := 0
	if len(params.Cursor.StartAfter) == 1 {
		lastID, ok := params.Cursor.StartAfter[0].(string)
		if !ok {
			return nil, "", fmt.Errorf("%w: malformed cursor", pagination.ErrInvalidPageToken)
		}
		start = -1
		for i, order := range orders {
			if order.ID == lastID {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, "", fmt.Errorf("%w: cursor no longer matches the listing", pagination.ErrInvalidPageToken)
		}
	}

	end := len(orders)
	if params.PageSize > 0 && start+params.PageSize < end {
		end = start + params.PageSize
	}

	page := orders[start:end]
	if end >= len(orders) || len(page) == 0 {
		return page, "", nil
	}
	token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{page[len(page)-1].ID}})
	if err != nil {
		return page, "", nil
	}
	return page, token, nil
}

func (h *OrderHandlers) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !requireAdmin(ctx, w, identity) {
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(orders))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID:     orderID,
		RequesterID: strings.TrimSpace(identity.UID),
		IsAdmin:     identity.IsAdmin(),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !requireAdmin(ctx, w, identity) {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxStatusBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req setStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SetStatus(ctx, services.SetStatusCommand{
		OrderID:  orderID,
		Status:   strings.TrimSpace(req.Status),
		Location: strings.TrimSpace(req.Location),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) addTrackingEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !requireAdmin(ctx, w, identity) {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxTrackingBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addTrackingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	order, err := h.orders.AddTrackingEntry(ctx, services.AddTrackingCommand{
		OrderID:  orderID,
		Location: strings.TrimSpace(req.Location),
		Status:   strings.TrimSpace(req.Status),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) deleteTrackingEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !requireAdmin(ctx, w, identity) {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	entryID := strings.TrimSpace(chi.URLParam(r, "entryID"))
	if orderID == "" || entryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id and entry id are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.DeleteTrackingEntry(ctx, services.DeleteTrackingCommand{
		OrderID: orderID,
		EntryID: entryID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func requireAdmin(ctx context.Context, w http.ResponseWriter, identity *auth.Identity) bool {
	if identity == nil || !identity.IsAdmin() {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "admin role required", http.StatusForbidden))
		return false
	}
	return true
}

type placeOrderRequest struct {
	Items           []orderItemRequest  `json:"items"`
	ShippingAddress orderAddressRequest `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	PaymentRef      *paymentRefRequest  `json:"paymentRef"`
	TotalAmount     float64             `json:"totalAmount"`
}

func (r placeOrderRequest) items() []services.OrderItem {
	if len(r.Items) == 0 {
		return nil
	}
	items := make([]services.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, services.OrderItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}
	return items
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// orderAddressRequest tolerates both the canonical field names and the
// street/zipCode aliases used by older storefront clients.
type orderAddressRequest struct {
	Address    string `json:"address"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	ZipCode    string `json:"zipCode"`
	Country    string `json:"country"`
}

func (a orderAddressRequest) toAddress() services.Address {
	return services.Address{
		Address:    firstNonEmpty(a.Address, a.Street),
		City:       strings.TrimSpace(a.City),
		PostalCode: firstNonEmpty(a.PostalCode, a.ZipCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

type paymentRefRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewaySignature string `json:"gatewaySignature"`
}

type setStatusRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
}

type addTrackingRequest struct {
	Location string `json:"location"`
	Status   string `json:"status"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"userId"`
	Items           []orderItemPayload     `json:"items"`
	ShippingAddress orderAddressPayload    `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	PaymentRef      *paymentRefPayload     `json:"paymentRef,omitempty"`
	IsPaid          bool                   `json:"isPaid"`
	PaidAt          string                 `json:"paidAt,omitempty"`
	Status          string                 `json:"status"`
	CurrentLocation string                 `json:"currentLocation,omitempty"`
	TrackingHistory []trackingEntryPayload `json:"trackingHistory"`
	IsDelivered     bool                   `json:"isDelivered"`
	DeliveredAt     string                 `json:"deliveredAt,omitempty"`
	TotalAmount     float64                `json:"totalAmount"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt,omitempty"`
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type orderAddressPayload struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type paymentRefPayload struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string `json:"gatewaySignature,omitempty"`
}

type trackingEntryPayload struct {
	ID        string `json:"id"`
	Location  string `json:"location,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildOrderListResponse(orders []services.Order) orderListResponse {
	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderPayload(order))
	}
	return orderListResponse{Items: items}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:     strings.TrimSpace(order.ID),
		UserID: strings.TrimSpace(order.UserID),
		Items:  make([]orderItemPayload, 0, len(order.Items)),
		ShippingAddress: orderAddressPayload{
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		PaymentMethod:   string(order.PaymentMethod),
		IsPaid:          order.IsPaid,
		PaidAt:          formatTime(pointerTime(order.PaidAt)),
		Status:          string(order.Status),
		CurrentLocation: strings.TrimSpace(order.CurrentLocation),
		TrackingHistory: make([]trackingEntryPayload, 0, len(order.TrackingHistory)),
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     formatTime(pointerTime(order.DeliveredAt)),
		TotalAmount:     order.TotalAmount,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	for _, entry := range order.TrackingHistory {
		payload.TrackingHistory = append(payload.TrackingHistory, trackingEntryPayload{
			ID:        entry.ID,
			Location:  entry.Location,
			Status:    string(entry.Status),
			Timestamp: formatTime(entry.Timestamp),
		})
	}

	if order.PaymentRef != nil {
		payload.PaymentRef = &paymentRefPayload{
			GatewayOrderID:   order.PaymentRef.GatewayOrderID,
			GatewayPaymentID: order.PaymentRef.GatewayPaymentID,
			GatewaySignature: order.PaymentRef.GatewaySignature,
		}
	}

	return payload
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items to place an order from", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTrackingEntryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("tracking_entry_not_found", "tracking entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_unavailable", "payment gateway request failed", http.StatusBadGateway))
	case errors.Is(err, services.ErrPaymentVerification):
		httpx.WriteError(ctx, w, httpx.NewError("payment_verification_failed", "payment signature verification failed", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
