package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-erp/lodestar-erp/internal/shared"
)

type memoryRepo struct {
	transactions map[uuid.UUID]Transaction
	balances     map[string]Balance
	nextItemID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		transactions: make(map[uuid.UUID]Transaction),
		balances:     make(map[string]Balance),
	}
}

func balanceKey(companyID, productID, warehouseID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", companyID, productID, warehouseID)
}

// memoryTx stages all writes and only commits them when the callback
// succeeds, mirroring the database transaction the real repository uses.
type memoryTx struct {
	repo         *memoryRepo
	transactions map[uuid.UUID]Transaction
	balances     map[string]Balance
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{
		repo:         r,
		transactions: make(map[uuid.UUID]Transaction, len(r.transactions)),
		balances:     make(map[string]Balance, len(r.balances)),
	}
	for id, trans := range r.transactions {
		tx.transactions[id] = cloneTransaction(trans)
	}
	for key, bal := range r.balances {
		tx.balances[key] = bal
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.transactions = tx.transactions
	r.balances = tx.balances
	return nil
}

func (r *memoryRepo) GetTransaction(ctx context.Context, companyID, id uuid.UUID) (Transaction, error) {
	trans, ok := r.transactions[id]
	if !ok || trans.CompanyID != companyID {
		return Transaction{}, ErrTransactionNotFound
	}
	return cloneTransaction(trans), nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Transaction, int, error) {
	result := []Transaction{}
	for _, trans := range r.transactions {
		if trans.CompanyID != companyID {
			continue
		}
		if filter.Status != "" && trans.Status != filter.Status {
			continue
		}
		if filter.Type != "" && trans.Type != filter.Type {
			continue
		}
		result = append(result, cloneTransaction(trans))
	}
	return result, len(result), nil
}

func (r *memoryRepo) ListBalances(ctx context.Context, companyID uuid.UUID, filter BalanceFilter) ([]Balance, error) {
	result := []Balance{}
	for _, bal := range r.balances {
		if bal.CompanyID != companyID {
			continue
		}
		result = append(result, bal)
	}
	return result, nil
}

func (r *memoryRepo) balance(companyID, productID, warehouseID uuid.UUID) (Balance, bool) {
	bal, ok := r.balances[balanceKey(companyID, productID, warehouseID)]
	return bal, ok
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, trans Transaction) (uuid.UUID, error) {
	id := uuid.New()
	trans.ID = id
	tx.transactions[id] = trans
	return id, nil
}

func (tx *memoryTx) InsertLineItems(ctx context.Context, transactionID uuid.UUID, items []LineItem) error {
	trans, ok := tx.transactions[transactionID]
	if !ok {
		return ErrTransactionNotFound
	}
	for i := range items {
		tx.repo.nextItemID++
		items[i].ID = tx.repo.nextItemID
		items[i].TransactionID = transactionID
	}
	trans.Items = append([]LineItem{}, items...)
	tx.transactions[transactionID] = trans
	return nil
}

func (tx *memoryTx) GetTransactionForUpdate(ctx context.Context, companyID, id uuid.UUID) (Transaction, error) {
	trans, ok := tx.transactions[id]
	if !ok || trans.CompanyID != companyID {
		return Transaction{}, ErrTransactionNotFound
	}
	return cloneTransaction(trans), nil
}

func (tx *memoryTx) UpdateTransactionStatus(ctx context.Context, companyID, id uuid.UUID, update StatusUpdate) error {
	trans, ok := tx.transactions[id]
	if !ok || trans.CompanyID != companyID {
		return ErrTransactionNotFound
	}
	trans.Status = update.Status
	if update.ApprovedBy != uuid.Nil {
		trans.ApprovedBy = update.ApprovedBy
	}
	if !update.ApprovedAt.IsZero() {
		trans.ApprovedAt = update.ApprovedAt
	}
	tx.transactions[id] = trans
	return nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, companyID, productID, warehouseID uuid.UUID) (Balance, error) {
	bal, ok := tx.balances[balanceKey(companyID, productID, warehouseID)]
	if !ok {
		return Balance{CompanyID: companyID, ProductID: productID, WarehouseID: warehouseID}, ErrBalanceNotFound
	}
	return bal, nil
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.balances[balanceKey(balance.CompanyID, balance.ProductID, balance.WarehouseID)] = balance
	return nil
}

func (tx *memoryTx) DeleteLineItems(ctx context.Context, companyID, transactionID uuid.UUID) error {
	trans, ok := tx.transactions[transactionID]
	if !ok || trans.CompanyID != companyID {
		return nil
	}
	trans.Items = nil
	tx.transactions[transactionID] = trans
	return nil
}

func (tx *memoryTx) DeleteTransaction(ctx context.Context, companyID, id uuid.UUID) error {
	trans, ok := tx.transactions[id]
	if !ok || trans.CompanyID != companyID {
		return ErrTransactionNotFound
	}
	delete(tx.transactions, id)
	return nil
}

func cloneTransaction(trans Transaction) Transaction {
	trans.Items = append([]LineItem{}, trans.Items...)
	return trans
}

func qty(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	repo    *memoryRepo
	svc     *Service
	actor   shared.Identity
	product uuid.UUID
	whA     uuid.UUID
	whB     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	return &fixture{
		repo:    repo,
		svc:     NewService(repo, nil, nil),
		actor:   shared.Identity{UserID: uuid.New(), CompanyID: uuid.New()},
		product: uuid.New(),
		whA:     uuid.New(),
		whB:     uuid.New(),
	}
}

func (f *fixture) create(t *testing.T, input CreateInput) Transaction {
	t.Helper()
	trans, err := f.svc.Create(context.Background(), f.actor, input)
	require.NoError(t, err)
	return trans
}

func (f *fixture) approveInbound(t *testing.T, warehouse uuid.UUID, quantity string) Transaction {
	t.Helper()
	trans := f.create(t, CreateInput{
		Type:        TypeInbound,
		WarehouseID: warehouse,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty(quantity)}},
	})
	require.NoError(t, f.svc.Approve(context.Background(), f.actor, trans.ID))
	return trans
}

func (f *fixture) balanceQty(t *testing.T, warehouse uuid.UUID) decimal.Decimal {
	t.Helper()
	bal, ok := f.repo.balance(f.actor.CompanyID, f.product, warehouse)
	require.True(t, ok, "balance row expected")
	return bal.Quantity
}

func TestApproveInboundCreatesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trans := f.create(t, CreateInput{
		Type:        TypeInbound,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("50")}},
	})
	require.Equal(t, StatusDraft, trans.Status)

	require.NoError(t, f.svc.Approve(ctx, f.actor, trans.ID))

	require.True(t, f.balanceQty(t, f.whA).Equal(qty("50")))
	stored, err := f.svc.Get(ctx, f.actor.CompanyID, trans.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, f.actor.UserID, stored.ApprovedBy)
	require.False(t, stored.ApprovedAt.IsZero())
}

func TestApproveOutboundInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approveInbound(t, f.whA, "50")

	trans := f.create(t, CreateInput{
		Type:        TypeOutbound,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("70")}},
	})
	err := f.svc.Approve(ctx, f.actor, trans.ID)
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.True(t, f.balanceQty(t, f.whA).Equal(qty("50")))
	stored, err := f.svc.Get(ctx, f.actor.CompanyID, trans.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestApproveOutboundMissingBalance(t *testing.T) {
	f := newFixture(t)
	trans := f.create(t, CreateInput{
		Type:        TypeOutbound,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("1")}},
	})
	err := f.svc.Approve(context.Background(), f.actor, trans.ID)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestDeleteRestoresBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approveInbound(t, f.whA, "50")

	outbound := f.create(t, CreateInput{
		Type:        TypeOutbound,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("30")}},
	})
	require.NoError(t, f.svc.Approve(ctx, f.actor, outbound.ID))
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("20")))

	require.NoError(t, f.svc.Delete(ctx, f.actor, outbound.ID))
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("50")))

	_, err := f.svc.Get(ctx, f.actor.CompanyID, outbound.ID)
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestTransferConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approveInbound(t, f.whA, "20")
	seedB := f.create(t, CreateInput{
		Type:        TypeInbound,
		WarehouseID: f.whB,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("5")}},
	})
	require.NoError(t, f.svc.Approve(ctx, f.actor, seedB.ID))

	transfer := f.create(t, CreateInput{
		Type:            TypeTransfer,
		FromWarehouseID: f.whA,
		ToWarehouseID:   f.whB,
		Items:           []LineInput{{ProductID: f.product, Quantity: qty("10")}},
	})
	require.NoError(t, f.svc.Approve(ctx, f.actor, transfer.ID))

	balA := f.balanceQty(t, f.whA)
	balB := f.balanceQty(t, f.whB)
	require.True(t, balA.Equal(qty("10")))
	require.True(t, balB.Equal(qty("15")))
	require.True(t, balA.Add(balB).Equal(qty("25")))

	// Reversal returns both legs to their pre-transfer values.
	require.NoError(t, f.svc.Delete(ctx, f.actor, transfer.ID))
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("20")))
	require.True(t, f.balanceQty(t, f.whB).Equal(qty("5")))
}

func TestTransferInsufficientSourceStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approveInbound(t, f.whA, "5")

	transfer := f.create(t, CreateInput{
		Type:            TypeTransfer,
		FromWarehouseID: f.whA,
		ToWarehouseID:   f.whB,
		Items:           []LineInput{{ProductID: f.product, Quantity: qty("10")}},
	})
	err := f.svc.Approve(ctx, f.actor, transfer.ID)
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.True(t, f.balanceQty(t, f.whA).Equal(qty("5")))
	_, exists := f.repo.balance(f.actor.CompanyID, f.product, f.whB)
	require.False(t, exists, "destination balance must not be created")
}

func TestCountSetsAbsoluteQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approveInbound(t, f.whA, "50")

	count := f.create(t, CreateInput{
		Type:        TypeCount,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("45")}},
	})
	require.NoError(t, f.svc.Approve(ctx, f.actor, count.ID))
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("45")))

	err := f.svc.Delete(ctx, f.actor, count.ID)
	require.ErrorIs(t, err, ErrDeleteCountTransaction)
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("45")))

	stored, err := f.svc.Get(ctx, f.actor.CompanyID, count.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
}

func TestCountCreatesMissingBalance(t *testing.T) {
	f := newFixture(t)
	count := f.create(t, CreateInput{
		Type:        TypeCount,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("12")}},
	})
	require.NoError(t, f.svc.Approve(context.Background(), f.actor, count.ID))
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("12")))
}

func TestApproveTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trans := f.approveInbound(t, f.whA, "10")

	err := f.svc.Approve(ctx, f.actor, trans.ID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	// No double-applied delta.
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("10")))
}

func TestApproveCancelledFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trans := f.create(t, CreateInput{
		Type:        TypeInbound,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("10")}},
	})
	require.NoError(t, f.svc.Cancel(ctx, f.actor, trans.ID))

	err := f.svc.Approve(ctx, f.actor, trans.ID)
	require.ErrorIs(t, err, ErrTransactionCancelled)
}

func TestCancelCompletedFails(t *testing.T) {
	f := newFixture(t)
	trans := f.approveInbound(t, f.whA, "10")

	err := f.svc.Cancel(context.Background(), f.actor, trans.ID)
	require.ErrorIs(t, err, ErrCancelCompleted)
}

func TestApproveIsAtomicAcrossLineItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := uuid.New()
	f.approveInbound(t, f.whA, "50")

	// First item would succeed, second has no stock; nothing may be applied.
	outbound := f.create(t, CreateInput{
		Type:        TypeOutbound,
		WarehouseID: f.whA,
		Items: []LineInput{
			{ProductID: f.product, Quantity: qty("30")},
			{ProductID: second, Quantity: qty("1")},
		},
	})
	err := f.svc.Approve(ctx, f.actor, outbound.ID)
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.True(t, f.balanceQty(t, f.whA).Equal(qty("50")))
	stored, err := f.svc.Get(ctx, f.actor.CompanyID, outbound.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestDeleteReversalConflictAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approveInbound(t, f.whA, "20")

	transfer := f.create(t, CreateInput{
		Type:            TypeTransfer,
		FromWarehouseID: f.whA,
		ToWarehouseID:   f.whB,
		Items:           []LineInput{{ProductID: f.product, Quantity: qty("10")}},
	})
	require.NoError(t, f.svc.Approve(ctx, f.actor, transfer.ID))

	// Drain the destination so the reversal's debit leg cannot be applied.
	drain := f.create(t, CreateInput{
		Type:        TypeOutbound,
		WarehouseID: f.whB,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("10")}},
	})
	require.NoError(t, f.svc.Approve(ctx, f.actor, drain.ID))

	err := f.svc.Delete(ctx, f.actor, transfer.ID)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// The transfer stays completed and no balance moved.
	stored, err := f.svc.Get(ctx, f.actor.CompanyID, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.True(t, f.balanceQty(t, f.whA).Equal(qty("10")))
	require.True(t, f.balanceQty(t, f.whB).Equal(qty("0")))
}

func TestDeleteDraftSkipsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trans := f.create(t, CreateInput{
		Type:        TypeOutbound,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("5")}},
	})

	require.NoError(t, f.svc.Delete(ctx, f.actor, trans.ID))
	_, err := f.svc.Get(ctx, f.actor.CompanyID, trans.ID)
	require.ErrorIs(t, err, ErrTransactionNotFound)
	_, exists := f.repo.balance(f.actor.CompanyID, f.product, f.whA)
	require.False(t, exists)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.actor, CreateInput{
		Type:  TypeInbound,
		Items: []LineInput{{ProductID: f.product, Quantity: qty("1")}},
	})
	require.ErrorIs(t, err, ErrWarehouseRequired)

	_, err = f.svc.Create(ctx, f.actor, CreateInput{
		Type:            TypeTransfer,
		FromWarehouseID: f.whA,
		ToWarehouseID:   f.whA,
		Items:           []LineInput{{ProductID: f.product, Quantity: qty("1")}},
	})
	require.Error(t, err)

	_, err = f.svc.Create(ctx, f.actor, CreateInput{
		Type:        TypeInbound,
		WarehouseID: f.whA,
		Items:       []LineInput{{ProductID: f.product, Quantity: qty("0")}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestOperationsAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trans := f.approveInbound(t, f.whA, "10")

	stranger := shared.Identity{UserID: uuid.New(), CompanyID: uuid.New()}
	err := f.svc.Approve(ctx, stranger, trans.ID)
	require.ErrorIs(t, err, ErrTransactionNotFound)
	err = f.svc.Delete(ctx, stranger, trans.ID)
	require.ErrorIs(t, err, ErrTransactionNotFound)
}
