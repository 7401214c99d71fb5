// Package purchasing provides the purchase order aggregate and its lifecycle.
package purchasing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a purchase order.
type Status string

const (
	StatusPending           Status = "pending"
	StatusReceived          Status = "received"
	StatusPartiallyReceived Status = "partially_received"
	StatusCancelled         Status = "cancelled"
	StatusApplied           Status = "applied"
)

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusReceived, StatusPartiallyReceived, StatusCancelled, StatusApplied:
		return true
	default:
		return false
	}
}

// CanEdit reports whether header and items may still change.
func (s Status) CanEdit() bool {
	return s == StatusPending
}

// CanCancel reports whether the order may be cancelled.
func (s Status) CanCancel() bool {
	return s == StatusPending
}

// CanReceive reports whether goods may be received against the order.
// Partial receipts keep the order receivable until the ordered quantity
// is fully covered.
func (s Status) CanReceive() bool {
	return s == StatusPending || s == StatusPartiallyReceived
}

// CanApply reports whether the order may be applied to inventory directly.
func (s Status) CanApply() bool {
	return s == StatusPending
}

// directTransitions lists the targets reachable through UpdateStatus.
// received and partially_received are also reached automatically by the
// receive routine, which bypasses this table.
var directTransitions = map[Status][]Status{
	StatusPending: {StatusReceived, StatusCancelled, StatusApplied},
}

func transitionAllowed(from, to Status) bool {
	for _, t := range directTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// PurchaseOrder models one order against a supplier, scoped to an organization.
type PurchaseOrder struct {
	ID               int64           `json:"id"`
	OrganizationID   int64           `json:"organization_id"`
	Number           string          `json:"po_number"`
	SupplierID       int64           `json:"supplier_id"`
	Status           Status          `json:"status"`
	OrderDate        time.Time       `json:"order_date"`
	ExpectedDelivery time.Time       `json:"expected_delivery"`
	ActualDelivery   *time.Time      `json:"actual_delivery,omitempty"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Notes            string          `json:"notes,omitempty"`
	CreatedBy        int64           `json:"created_by"`
	ApprovedBy       *int64          `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	AppliedAt        *time.Time      `json:"applied_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []Item          `json:"items,omitempty"`
}

// Item is one medicine line on a purchase order. ReceivedQuantity is
// cumulative across receive calls and may exceed Quantity.
type Item struct {
	ID               int64           `json:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	MedicineID       int64           `json:"medicine_id"`
	Quantity         int64           `json:"quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	ReceivedQuantity int64           `json:"received_quantity"`
}

// StatusChange is one appended history row. Newest first when listed.
type StatusChange struct {
	ID              int64     `json:"id"`
	PurchaseOrderID int64     `json:"purchase_order_id"`
	OldStatus       Status    `json:"old_status"`
	NewStatus       Status    `json:"new_status"`
	ChangedBy       int64     `json:"changed_by"`
	Notes           string    `json:"notes,omitempty"`
	ChangedAt       time.Time `json:"changed_at"`
}

// ListItem is the shape returned by order listings.
type ListItem struct {
	ID               int64           `json:"id"`
	Number           string          `json:"po_number"`
	SupplierID       int64           `json:"supplier_id"`
	SupplierName     string          `json:"supplier_name"`
	Status           Status          `json:"status"`
	OrderDate        time.Time       `json:"order_date"`
	ExpectedDelivery time.Time       `json:"expected_delivery"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ItemCount        int             `json:"item_count"`
	CreatedAt        time.Time       `json:"created_at"`
}

// OverdueOrder is a pending order past its expected delivery, surfaced
// by the background scan.
type OverdueOrder struct {
	ID               int64     `json:"id"`
	OrganizationID   int64     `json:"organization_id"`
	Number           string    `json:"po_number"`
	SupplierID       int64     `json:"supplier_id"`
	ExpectedDelivery time.Time `json:"expected_delivery"`
}

// ListFilters narrows and orders purchase order listings.
type ListFilters struct {
	Status     Status
	SupplierID int64
	StartDate  time.Time
	EndDate    time.Time
	SortBy     string
	SortDir    string
}

var (
	// ErrNotFound indicates the order does not exist in the organization.
	ErrNotFound = errors.New("purchasing: purchase order not found")
	// ErrValidation indicates missing or out-of-range input.
	ErrValidation = errors.New("purchasing: invalid input")
	// ErrInvalidState occurs when an action is forbidden by current status.
	ErrInvalidState = errors.New("purchasing: action not allowed in current status")
	// ErrInvalidTransition occurs when a requested status change is not
	// in the transition table. Wrapped by TransitionError.
	ErrInvalidTransition = errors.New("purchasing: invalid status transition")
	// ErrDuplicateNumber indicates a po_number uniqueness conflict.
	ErrDuplicateNumber = errors.New("purchasing: po number already exists")
)

// TransitionError names the attempted source and target statuses.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("purchasing: cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CalculateTotals recomputes line totals and the order total as
// sum(items) + tax - discount. Only the order total is rounded to two
// decimal places; line math keeps full precision.
func (po *PurchaseOrder) CalculateTotals() {
	sum := decimal.Zero
	for i := range po.Items {
		po.Items[i].TotalCost = po.Items[i].UnitCost.Mul(decimal.NewFromInt(po.Items[i].Quantity))
		sum = sum.Add(po.Items[i].TotalCost)
	}
	po.TotalAmount = sum.Add(po.TaxAmount).Sub(po.DiscountAmount).Round(2)
}

// OrderedQuantity sums the ordered quantity across all items.
func (po *PurchaseOrder) OrderedQuantity() int64 {
	var total int64
	for _, item := range po.Items {
		total += item.Quantity
	}
	return total
}

// ReceivedQuantity sums the cumulative received quantity across all items.
func (po *PurchaseOrder) ReceivedQuantity() int64 {
	var total int64
	for _, item := range po.Items {
		total += item.ReceivedQuantity
	}
	return total
}

// Validate checks header fields per the persistence contract.
func (po *PurchaseOrder) Validate() error {
	if po.OrganizationID == 0 {
		return fmt.Errorf("%w: organization is required", ErrValidation)
	}
	if po.SupplierID == 0 {
		return fmt.Errorf("%w: supplier is required", ErrValidation)
	}
	if po.CreatedBy == 0 {
		return fmt.Errorf("%w: created_by is required", ErrValidation)
	}
	if po.OrderDate.IsZero() {
		return fmt.Errorf("%w: order date is required", ErrValidation)
	}
	if po.TaxAmount.IsNegative() {
		return fmt.Errorf("%w: tax amount must be >= 0", ErrValidation)
	}
	if po.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: discount amount must be >= 0", ErrValidation)
	}
	if po.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: total amount must be >= 0", ErrValidation)
	}
	return nil
}

// ValidateItems checks the item list is non-empty and each line sane.
func (po *PurchaseOrder) ValidateItems() error {
	if len(po.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for i, item := range po.Items {
		if item.MedicineID == 0 {
			return fmt.Errorf("%w: item %d: medicine is required", ErrValidation, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be > 0", ErrValidation, i+1)
		}
		if item.UnitCost.IsNegative() {
			return fmt.Errorf("%w: item %d: unit cost must be >= 0", ErrValidation, i+1)
		}
	}
	return nil
}
