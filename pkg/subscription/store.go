package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store persists subscription records. Implementations return
// ErrRecordNotFound when no row exists.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)
	GetByCustomerID(ctx context.Context, customerID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}
