package repositories

import (
	"context"

	domain "github.com/vastra-store/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderMutator rewrites an order inside an atomic read-modify-write cycle.
// Returning an error aborts the mutation without persisting anything.
type OrderMutator func(order domain.Order) (domain.Order, error)

// OrderRepository persists order documents and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	// Mutate loads the order, applies fn, and persists the result atomically.
	Mutate(ctx context.Context, orderID string, fn OrderMutator) (domain.Order, error)
}

// CartRepository exposes the stored cart for order placement.
type CartRepository interface {
	Snapshot(ctx context.Context, userID string) ([]domain.CartLine, error)
	Clear(ctx context.Context, userID string) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
