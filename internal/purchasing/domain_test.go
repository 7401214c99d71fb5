package purchasing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCalculateTotals(t *testing.T) {
	po := PurchaseOrder{
		TaxAmount:      decimal.RequireFromString("1.115"),
		DiscountAmount: decimal.RequireFromString("0.50"),
		Items: []Item{
			{Quantity: 3, UnitCost: decimal.RequireFromString("2.333")},
			{Quantity: 2, UnitCost: decimal.RequireFromString("5.00")},
		},
	}
	po.CalculateTotals()

	// line totals keep full precision
	require.True(t, po.Items[0].TotalCost.Equal(decimal.RequireFromString("6.999")))
	require.True(t, po.Items[1].TotalCost.Equal(decimal.RequireFromString("10")))
	// 6.999 + 10 + 1.115 - 0.50 = 17.614, rounded to 17.61
	require.True(t, po.TotalAmount.Equal(decimal.RequireFromString("17.61")))
}

func TestStatusPredicates(t *testing.T) {
	require.True(t, StatusPending.CanEdit())
	require.True(t, StatusPending.CanCancel())
	require.True(t, StatusPending.CanApply())
	require.True(t, StatusPending.CanReceive())
	require.True(t, StatusPartiallyReceived.CanReceive())

	for _, s := range []Status{StatusReceived, StatusCancelled, StatusApplied} {
		require.False(t, s.CanEdit(), s)
		require.False(t, s.CanCancel(), s)
		require.False(t, s.CanReceive(), s)
	}
	require.False(t, Status("bogus").IsValid())
}

func TestTransitionTable(t *testing.T) {
	require.True(t, transitionAllowed(StatusPending, StatusReceived))
	require.True(t, transitionAllowed(StatusPending, StatusCancelled))
	require.True(t, transitionAllowed(StatusPending, StatusApplied))
	require.False(t, transitionAllowed(StatusPending, StatusPartiallyReceived))
	require.False(t, transitionAllowed(StatusReceived, StatusCancelled))
	require.False(t, transitionAllowed(StatusCancelled, StatusPending))
	require.False(t, transitionAllowed(StatusPartiallyReceived, StatusCancelled))
}

func TestValidateHeader(t *testing.T) {
	valid := PurchaseOrder{
		OrganizationID: 1,
		SupplierID:     2,
		CreatedBy:      3,
		OrderDate:      time.Now(),
	}
	require.NoError(t, valid.Validate())

	missingSupplier := valid
	missingSupplier.SupplierID = 0
	require.ErrorIs(t, missingSupplier.Validate(), ErrValidation)

	negativeTax := valid
	negativeTax.TaxAmount = decimal.RequireFromString("-1")
	require.ErrorIs(t, negativeTax.Validate(), ErrValidation)
}

func TestValidateItems(t *testing.T) {
	po := PurchaseOrder{}
	require.ErrorIs(t, po.ValidateItems(), ErrValidation)

	po.Items = []Item{{MedicineID: 1, Quantity: 1, UnitCost: decimal.Zero}}
	require.NoError(t, po.ValidateItems())

	po.Items[0].Quantity = 0
	require.ErrorIs(t, po.ValidateItems(), ErrValidation)

	po.Items[0].Quantity = 1
	po.Items[0].UnitCost = decimal.RequireFromString("-0.01")
	require.ErrorIs(t, po.ValidateItems(), ErrValidation)
}

func TestOrderedAndReceivedQuantities(t *testing.T) {
	po := PurchaseOrder{Items: []Item{
		{Quantity: 10, ReceivedQuantity: 4},
		{Quantity: 5, ReceivedQuantity: 11},
	}}
	require.EqualValues(t, 15, po.OrderedQuantity())
	require.EqualValues(t, 15, po.ReceivedQuantity())
}
