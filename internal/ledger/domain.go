package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TypeInbound represents stock entering a warehouse.
	TypeInbound TransactionType = "inbound"
	// TypeOutbound represents stock leaving a warehouse.
	TypeOutbound TransactionType = "outbound"
	// TypeTransfer moves stock between two warehouses.
	TypeTransfer TransactionType = "transfer"
	// TypeCount records a physical count that overrides the system quantity.
	TypeCount TransactionType = "count"
)

// Status enumerates the transaction lifecycle states.
type Status string

const (
	// StatusDraft is the initial state, no stock touched yet.
	StatusDraft Status = "draft"
	// StatusCompleted means the stock deltas have been applied.
	StatusCompleted Status = "completed"
	// StatusCancelled means the draft was abandoned before approval.
	StatusCancelled Status = "cancelled"
)

// Transaction models one inventory movement request with its lifecycle status.
type Transaction struct {
	ID              uuid.UUID
	CompanyID       uuid.UUID
	Type            TransactionType
	Status          Status
	WarehouseID     uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Note            string
	CreatedBy       uuid.UUID
	ApprovedBy      uuid.UUID
	ApprovedAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []LineItem
}

// LineItem is one product movement within a transaction.
type LineItem struct {
	ID            int64
	TransactionID uuid.UUID
	ProductID     uuid.UUID
	Quantity      decimal.Decimal
}

// Balance is the on-hand quantity of one product in one warehouse.
type Balance struct {
	CompanyID         uuid.UUID
	ProductID         uuid.UUID
	WarehouseID       uuid.UUID
	Quantity          decimal.Decimal
	ReservedQuantity  decimal.Decimal
	LastTransactionAt time.Time
}

// CreateInput describes a draft transaction to record.
type CreateInput struct {
	Type            TransactionType
	WarehouseID     uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Note            string
	Items           []LineInput
}

// LineInput is one product+quantity entry of CreateInput.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	Status  Status
	Type    TransactionType
	Page    int
	PerPage int
}

// BalanceFilter narrows stock level listings.
type BalanceFilter struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
}

// ErrTransactionNotFound indicates the id does not resolve within the caller's company.
var ErrTransactionNotFound = errors.New("ledger: transaction not found")

// ErrAlreadyCompleted triggered when approving a completed transaction.
var ErrAlreadyCompleted = errors.New("ledger: transaction already completed")

// ErrTransactionCancelled triggered when approving a cancelled transaction.
var ErrTransactionCancelled = errors.New("ledger: cancelled transaction cannot be approved")

// ErrCancelCompleted triggered when cancelling a completed transaction.
var ErrCancelCompleted = errors.New("ledger: completed transaction must be reversed via delete, not cancelled")

// ErrInsufficientStock triggered when a movement would drive a balance below zero.
var ErrInsufficientStock = errors.New("ledger: stock quantity cannot be negative")

// ErrDeleteCountTransaction triggered when deleting a completed count transaction.
var ErrDeleteCountTransaction = errors.New("ledger: count transactions cannot be deleted, record a corrective count instead")

// ErrInvalidQuantity indicates a non-positive line quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrWarehouseRequired indicates a missing warehouse reference for the transaction type.
var ErrWarehouseRequired = errors.New("ledger: warehouse required for transaction type")
