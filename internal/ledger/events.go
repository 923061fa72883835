package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ApprovedEvent is emitted after a transaction's stock deltas have committed.
type ApprovedEvent struct {
	TransactionID uuid.UUID
	CompanyID     uuid.UUID
	Type          TransactionType
	ApprovedBy    uuid.UUID
	ApprovedAt    time.Time
	Warehouses    []uuid.UUID
}

// DeletedEvent is emitted after a transaction has been removed.
type DeletedEvent struct {
	TransactionID uuid.UUID
	CompanyID     uuid.UUID
	Type          TransactionType
	WasCompleted  bool
}

// EventSink receives lifecycle notifications. Delivery is best effort and
// never affects the outcome of the committed operation.
type EventSink interface {
	TransactionApproved(ctx context.Context, evt ApprovedEvent)
	TransactionDeleted(ctx context.Context, evt DeletedEvent)
}
