// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
)

// PurchaseRecorder appends one confirmed purchase to the external ledger.
// An error means the row was not written; callers may retry the same row.
type PurchaseRecorder interface {
	AppendPurchase(ctx context.Context, row domain.PurchaseRow) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
