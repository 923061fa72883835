package masterdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTermStripsDiacritics(t *testing.T) {
	require.Equal(t, "deposito central", normalizeTerm("  Depósito Central "))
	require.Equal(t, "sayim", normalizeTerm("Sayım"))
	require.Equal(t, "sayim", normalizeTerm("SAYIM"))
	require.Equal(t, "istanbul depo", normalizeTerm("İstanbul Depo"))
}

func TestFilterProductsMatchesSKUAndName(t *testing.T) {
	products := []Product{
		{SKU: "WID-001", Name: "Widget"},
		{SKU: "GAD-002", Name: "Gadget Azúl"},
		{SKU: "SPR-003", Name: "Spring"},
	}

	require.Len(t, filterProducts(products, "wid"), 1)
	require.Len(t, filterProducts(products, "azul"), 1)
	require.Len(t, filterProducts(products, "missing"), 0)
}

func TestFilterWarehousesMatchesCodeAndName(t *testing.T) {
	warehouses := []Warehouse{
		{Code: "MAIN", Name: "Main Warehouse"},
		{Code: "DEP-1", Name: "Depósito Uno"},
	}

	got := filterWarehouses(warehouses, "deposito")
	require.Len(t, got, 1)
	require.Equal(t, "DEP-1", got[0].Code)
}
