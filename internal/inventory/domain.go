// Package inventory tracks medicine stock levels and the transaction
// ledger they are reconciled against. Stock is only ever mutated through
// receipts posted by the purchasing receive routine; this package owns the
// ledger types and the read side.
package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TypePurchaseReceive TransactionType = "purchase_receive"
	TypeSale            TransactionType = "sale"
	TypeAdjustment      TransactionType = "adjustment"
)

// IsValid checks if the type is a known value.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypePurchaseReceive, TypeSale, TypeAdjustment:
		return true
	default:
		return false
	}
}

// Receipt is the write-side payload appended by a purchase receipt. The
// ReferenceKey is deterministic per receipt event so replays are visible.
type Receipt struct {
	OrganizationID int64
	MedicineID     int64
	Type           TransactionType
	Quantity       int64
	UnitPrice      decimal.Decimal
	TotalAmount    decimal.Decimal
	ReferenceID    int64
	ReferenceType  string
	ReferenceKey   string
	CreatedBy      int64
}

// Transaction is one persisted ledger row.
type Transaction struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	MedicineID     int64           `json:"medicine_id"`
	MedicineName   string          `json:"medicine_name,omitempty"`
	Type           TransactionType `json:"transaction_type"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ReferenceID    int64           `json:"reference_id,omitempty"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceKey   string          `json:"reference_key,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// StockLevel is the current on-hand snapshot for one medicine.
type StockLevel struct {
	MedicineID   int64           `json:"medicine_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     int64           `json:"quantity"`
	ReorderLevel int64           `json:"reorder_level"`
	CostPrice    decimal.Decimal `json:"cost_price"`
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	MedicineID int64
	Type       TransactionType
	From       time.Time
	To         time.Time
}

// ErrNotFound indicates the medicine does not exist in the organization.
var ErrNotFound = errors.New("inventory: medicine not found")
