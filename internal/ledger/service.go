package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodestar-erp/lodestar-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, companyID, id uuid.UUID) (Transaction, error)
	ListTransactions(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Transaction, int, error)
	ListBalances(ctx context.Context, companyID uuid.UUID, filter BalanceFilter) ([]Balance, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger lifecycle operations. Every operation is
// scoped by an explicit company id; nothing is read from ambient state.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	events EventSink
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, events EventSink) *Service {
	return &Service{repo: repo, audit: audit, events: events}
}

// Create records a draft transaction with its line items.
func (s *Service) Create(ctx context.Context, actor shared.Identity, input CreateInput) (Transaction, error) {
	if err := validateCreate(input); err != nil {
		return Transaction{}, err
	}
	trans := Transaction{
		CompanyID:       actor.CompanyID,
		Type:            input.Type,
		Status:          StatusDraft,
		WarehouseID:     input.WarehouseID,
		FromWarehouseID: input.FromWarehouseID,
		ToWarehouseID:   input.ToWarehouseID,
		Note:            input.Note,
		CreatedBy:       actor.UserID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransaction(ctx, trans)
		if err != nil {
			return err
		}
		trans.ID = id
		items := make([]LineItem, 0, len(input.Items))
		for _, line := range input.Items {
			items = append(items, LineItem{TransactionID: id, ProductID: line.ProductID, Quantity: line.Quantity})
		}
		trans.Items = items
		return tx.InsertLineItems(ctx, id, items)
	})
	if err != nil {
		return Transaction{}, err
	}
	return trans, nil
}

// Get loads one transaction with items.
func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (Transaction, error) {
	return s.repo.GetTransaction(ctx, companyID, id)
}

// List returns a page of transactions.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Transaction, int, error) {
	return s.repo.ListTransactions(ctx, companyID, filter)
}

// StockLevels returns current balances.
func (s *Service) StockLevels(ctx context.Context, companyID uuid.UUID, filter BalanceFilter) ([]Balance, error) {
	return s.repo.ListBalances(ctx, companyID, filter)
}

// countDifference captures physical minus system quantity per counted line.
type countDifference struct {
	ProductID  uuid.UUID
	System     decimal.Decimal
	Physical   decimal.Decimal
	Difference decimal.Decimal
}

// Approve applies the transaction's stock deltas and marks it completed.
// The whole call runs inside one database transaction: either every line
// item's delta lands and the status flips, or nothing is written.
func (s *Service) Approve(ctx context.Context, actor shared.Identity, id uuid.UUID) error {
	var (
		trans Transaction
		diffs []countDifference
	)
	now := time.Now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		trans, err = tx.GetTransactionForUpdate(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		switch trans.Status {
		case StatusCompleted:
			return ErrAlreadyCompleted
		case StatusCancelled:
			return ErrTransactionCancelled
		}
		for _, item := range trans.Items {
			if trans.Type == TypeCount {
				diff, err := s.applyCount(ctx, tx, &trans, item, now)
				if err != nil {
					return err
				}
				diffs = append(diffs, diff)
				continue
			}
			deltas, err := approvalDeltas(&trans, item)
			if err != nil {
				return err
			}
			for _, delta := range deltas {
				if err := applyDelta(ctx, tx, actor.CompanyID, delta, now); err != nil {
					return err
				}
			}
		}
		return tx.UpdateTransactionStatus(ctx, actor.CompanyID, id, StatusUpdate{
			Status:     StatusCompleted,
			ApprovedBy: actor.UserID,
			ApprovedAt: now,
		})
	})
	if err != nil {
		return err
	}

	if s.audit != nil {
		meta := map[string]any{
			"transaction_type": string(trans.Type),
			"line_items":       len(trans.Items),
		}
		if len(diffs) > 0 {
			counted := make([]map[string]any, 0, len(diffs))
			for _, d := range diffs {
				counted = append(counted, map[string]any{
					"product_id": d.ProductID.String(),
					"system":     d.System.String(),
					"physical":   d.Physical.String(),
					"difference": d.Difference.String(),
				})
			}
			meta["count_differences"] = counted
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: actor.CompanyID.String(),
			ActorID:   actor.UserID.String(),
			Action:    "ledger:approve",
			Entity:    "inventory_transaction",
			EntityID:  id.String(),
			Meta:      meta,
		})
	}
	if s.events != nil {
		s.events.TransactionApproved(ctx, ApprovedEvent{
			TransactionID: id,
			CompanyID:     actor.CompanyID,
			Type:          trans.Type,
			ApprovedBy:    actor.UserID,
			ApprovedAt:    now,
			Warehouses:    affectedWarehouses(&trans),
		})
	}
	return nil
}

// Cancel abandons a draft transaction. A completed transaction already moved
// stock and must be reversed via Delete instead.
func (s *Service) Cancel(ctx context.Context, actor shared.Identity, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trans, err := tx.GetTransactionForUpdate(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		if trans.Status == StatusCompleted {
			return ErrCancelCompleted
		}
		return tx.UpdateTransactionStatus(ctx, actor.CompanyID, id, StatusUpdate{Status: StatusCancelled})
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: actor.CompanyID.String(),
			ActorID:   actor.UserID.String(),
			Action:    "ledger:cancel",
			Entity:    "inventory_transaction",
			EntityID:  id.String(),
		})
	}
	return nil
}

// Delete removes a transaction. If it was completed, the inverse deltas are
// applied first so every affected balance returns to its pre-approval value.
// A completed count cannot be reversed; the whole call fails before any write.
// If any reversal leg would drive a balance negative the delete aborts and the
// transaction stays completed.
func (s *Service) Delete(ctx context.Context, actor shared.Identity, id uuid.UUID) error {
	var trans Transaction
	now := time.Now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		trans, err = tx.GetTransactionForUpdate(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		if trans.Status == StatusCompleted {
			if trans.Type == TypeCount {
				return ErrDeleteCountTransaction
			}
			for _, item := range trans.Items {
				deltas, err := reversalDeltas(&trans, item)
				if err != nil {
					return err
				}
				for _, delta := range deltas {
					if err := applyDelta(ctx, tx, actor.CompanyID, delta, now); err != nil {
						return err
					}
				}
			}
		}
		if err := tx.DeleteLineItems(ctx, actor.CompanyID, id); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, actor.CompanyID, id)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: actor.CompanyID.String(),
			ActorID:   actor.UserID.String(),
			Action:    "ledger:delete",
			Entity:    "inventory_transaction",
			EntityID:  id.String(),
			Meta: map[string]any{
				"transaction_type": string(trans.Type),
				"was_completed":    trans.Status == StatusCompleted,
			},
		})
	}
	if s.events != nil {
		s.events.TransactionDeleted(ctx, DeletedEvent{
			TransactionID: id,
			CompanyID:     actor.CompanyID,
			Type:          trans.Type,
			WasCompleted:  trans.Status == StatusCompleted,
		})
	}
	return nil
}

// applyDelta is the single mutation path for balances. It reads the current
// row under lock, rejects any result below zero and creates the row on the
// first positive delta.
func applyDelta(ctx context.Context, tx TxRepository, companyID uuid.UUID, delta stockDelta, now time.Time) error {
	if delta.Qty.IsZero() {
		return ErrInvalidQuantity
	}
	bal, err := tx.GetBalanceForUpdate(ctx, companyID, delta.ProductID, delta.WarehouseID)
	if err != nil {
		if !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if delta.Qty.Sign() <= 0 {
			return ErrInsufficientStock
		}
		bal = Balance{
			CompanyID:        companyID,
			ProductID:        delta.ProductID,
			WarehouseID:      delta.WarehouseID,
			Quantity:         decimal.Zero,
			ReservedQuantity: decimal.Zero,
		}
	}
	newQty := bal.Quantity.Add(delta.Qty)
	if newQty.IsNegative() {
		return ErrInsufficientStock
	}
	bal.Quantity = newQty
	bal.LastTransactionAt = now
	return tx.UpsertBalance(ctx, bal)
}

// applyCount overwrites the balance with the physically counted quantity and
// reports the difference against the system quantity for the audit trail.
func (s *Service) applyCount(ctx context.Context, tx TxRepository, trans *Transaction, item LineItem, now time.Time) (countDifference, error) {
	if trans.WarehouseID == uuid.Nil {
		return countDifference{}, ErrWarehouseRequired
	}
	bal, err := tx.GetBalanceForUpdate(ctx, trans.CompanyID, item.ProductID, trans.WarehouseID)
	if err != nil {
		if !errors.Is(err, ErrBalanceNotFound) {
			return countDifference{}, err
		}
		bal = Balance{
			CompanyID:        trans.CompanyID,
			ProductID:        item.ProductID,
			WarehouseID:      trans.WarehouseID,
			Quantity:         decimal.Zero,
			ReservedQuantity: decimal.Zero,
		}
	}
	diff := countDifference{
		ProductID:  item.ProductID,
		System:     bal.Quantity,
		Physical:   item.Quantity,
		Difference: item.Quantity.Sub(bal.Quantity),
	}
	bal.Quantity = item.Quantity
	bal.LastTransactionAt = now
	if err := tx.UpsertBalance(ctx, bal); err != nil {
		return countDifference{}, err
	}
	return diff, nil
}

func validateCreate(input CreateInput) error {
	switch input.Type {
	case TypeInbound, TypeOutbound, TypeCount:
		if input.WarehouseID == uuid.Nil {
			return ErrWarehouseRequired
		}
	case TypeTransfer:
		if input.FromWarehouseID == uuid.Nil || input.ToWarehouseID == uuid.Nil {
			return ErrWarehouseRequired
		}
		if input.FromWarehouseID == input.ToWarehouseID {
			return errors.New("ledger: source and destination warehouse must differ")
		}
	default:
		return errors.New("ledger: unknown transaction type")
	}
	if len(input.Items) == 0 {
		return errors.New("ledger: at least one line item required")
	}
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil {
			return errors.New("ledger: product required")
		}
		if line.Quantity.Sign() <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

func affectedWarehouses(trans *Transaction) []uuid.UUID {
	if trans.Type == TypeTransfer {
		return []uuid.UUID{trans.FromWarehouseID, trans.ToWarehouseID}
	}
	if trans.WarehouseID != uuid.Nil {
		return []uuid.UUID{trans.WarehouseID}
	}
	return nil
}
