package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stockDelta is one signed quantity change against a (product, warehouse) balance.
type stockDelta struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         decimal.Decimal
}

// approvalDeltas computes the signed movements one line item applies on approval.
// Count transactions set the balance absolutely and return no deltas; the
// service handles them through applyCount instead.
func approvalDeltas(t *Transaction, item LineItem) ([]stockDelta, error) {
	switch t.Type {
	case TypeInbound:
		if t.WarehouseID == uuid.Nil {
			return nil, ErrWarehouseRequired
		}
		return []stockDelta{{ProductID: item.ProductID, WarehouseID: t.WarehouseID, Qty: item.Quantity}}, nil
	case TypeOutbound:
		if t.WarehouseID == uuid.Nil {
			return nil, ErrWarehouseRequired
		}
		return []stockDelta{{ProductID: item.ProductID, WarehouseID: t.WarehouseID, Qty: item.Quantity.Neg()}}, nil
	case TypeTransfer:
		if t.FromWarehouseID == uuid.Nil || t.ToWarehouseID == uuid.Nil {
			return nil, ErrWarehouseRequired
		}
		return []stockDelta{
			{ProductID: item.ProductID, WarehouseID: t.FromWarehouseID, Qty: item.Quantity.Neg()},
			{ProductID: item.ProductID, WarehouseID: t.ToWarehouseID, Qty: item.Quantity},
		}, nil
	case TypeCount:
		return nil, nil
	}
	return nil, ErrWarehouseRequired
}

// reversalDeltas computes the inverse movements applied when deleting a
// completed transaction. The destination leg of a transfer is debited before
// the source leg is credited, mirroring the approval order in reverse.
func reversalDeltas(t *Transaction, item LineItem) ([]stockDelta, error) {
	switch t.Type {
	case TypeInbound:
		return []stockDelta{{ProductID: item.ProductID, WarehouseID: t.WarehouseID, Qty: item.Quantity.Neg()}}, nil
	case TypeOutbound:
		return []stockDelta{{ProductID: item.ProductID, WarehouseID: t.WarehouseID, Qty: item.Quantity}}, nil
	case TypeTransfer:
		return []stockDelta{
			{ProductID: item.ProductID, WarehouseID: t.ToWarehouseID, Qty: item.Quantity.Neg()},
			{ProductID: item.ProductID, WarehouseID: t.FromWarehouseID, Qty: item.Quantity},
		}, nil
	case TypeCount:
		return nil, ErrDeleteCountTransaction
	}
	return nil, ErrDeleteCountTransaction
}
