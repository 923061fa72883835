package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestApprovalDeltas(t *testing.T) {
	product := uuid.New()
	whA := uuid.New()
	whB := uuid.New()
	item := LineItem{ProductID: product, Quantity: qty("7")}

	t.Run("inbound", func(t *testing.T) {
		trans := &Transaction{Type: TypeInbound, WarehouseID: whA}
		deltas, err := approvalDeltas(trans, item)
		require.NoError(t, err)
		require.Len(t, deltas, 1)
		require.Equal(t, whA, deltas[0].WarehouseID)
		require.True(t, deltas[0].Qty.Equal(qty("7")))
	})

	t.Run("outbound", func(t *testing.T) {
		trans := &Transaction{Type: TypeOutbound, WarehouseID: whA}
		deltas, err := approvalDeltas(trans, item)
		require.NoError(t, err)
		require.Len(t, deltas, 1)
		require.True(t, deltas[0].Qty.Equal(qty("-7")))
	})

	t.Run("transfer debits source before crediting destination", func(t *testing.T) {
		trans := &Transaction{Type: TypeTransfer, FromWarehouseID: whA, ToWarehouseID: whB}
		deltas, err := approvalDeltas(trans, item)
		require.NoError(t, err)
		require.Len(t, deltas, 2)
		require.Equal(t, whA, deltas[0].WarehouseID)
		require.True(t, deltas[0].Qty.Equal(qty("-7")))
		require.Equal(t, whB, deltas[1].WarehouseID)
		require.True(t, deltas[1].Qty.Equal(qty("7")))
	})

	t.Run("count yields no deltas", func(t *testing.T) {
		trans := &Transaction{Type: TypeCount, WarehouseID: whA}
		deltas, err := approvalDeltas(trans, item)
		require.NoError(t, err)
		require.Empty(t, deltas)
	})

	t.Run("missing warehouse", func(t *testing.T) {
		trans := &Transaction{Type: TypeInbound}
		_, err := approvalDeltas(trans, item)
		require.ErrorIs(t, err, ErrWarehouseRequired)

		trans = &Transaction{Type: TypeTransfer, FromWarehouseID: whA}
		_, err = approvalDeltas(trans, item)
		require.ErrorIs(t, err, ErrWarehouseRequired)
	})
}

func TestReversalDeltas(t *testing.T) {
	product := uuid.New()
	whA := uuid.New()
	whB := uuid.New()
	item := LineItem{ProductID: product, Quantity: qty("3")}

	t.Run("inbound reverses to debit", func(t *testing.T) {
		trans := &Transaction{Type: TypeInbound, WarehouseID: whA}
		deltas, err := reversalDeltas(trans, item)
		require.NoError(t, err)
		require.Len(t, deltas, 1)
		require.True(t, deltas[0].Qty.Equal(qty("-3")))
	})

	t.Run("outbound reverses to credit", func(t *testing.T) {
		trans := &Transaction{Type: TypeOutbound, WarehouseID: whA}
		deltas, err := reversalDeltas(trans, item)
		require.NoError(t, err)
		require.Len(t, deltas, 1)
		require.True(t, deltas[0].Qty.Equal(qty("3")))
	})

	t.Run("transfer reverses destination first", func(t *testing.T) {
		trans := &Transaction{Type: TypeTransfer, FromWarehouseID: whA, ToWarehouseID: whB}
		deltas, err := reversalDeltas(trans, item)
		require.NoError(t, err)
		require.Len(t, deltas, 2)
		require.Equal(t, whB, deltas[0].WarehouseID)
		require.True(t, deltas[0].Qty.Equal(qty("-3")))
		require.Equal(t, whA, deltas[1].WarehouseID)
		require.True(t, deltas[1].Qty.Equal(qty("3")))
	})

	t.Run("count cannot be reversed", func(t *testing.T) {
		trans := &Transaction{Type: TypeCount, WarehouseID: whA}
		_, err := reversalDeltas(trans, item)
		require.ErrorIs(t, err, ErrDeleteCountTransaction)
	})
}
