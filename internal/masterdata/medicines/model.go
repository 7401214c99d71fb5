package medicines

import (
	"time"

	"github.com/shopspring/decimal"
)

// Medicine represents a medicine entity scoped to an organization. The
// stock quantity is maintained by inventory receipts, not by this package.
type Medicine struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	GenericName    string          `json:"generic_name,omitempty"`
	Category       string          `json:"category,omitempty"`
	Unit           string          `json:"unit,omitempty"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	StockQuantity  int64           `json:"stock_quantity"`
	ReorderLevel   int64           `json:"reorder_level"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
