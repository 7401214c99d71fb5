package purchasing

import "time"

// CreateRequest is the payload to create a purchase order.
type CreateRequest struct {
	SupplierID       int64           `json:"supplier_id" validate:"required,gt=0"`
	OrderDate        time.Time       `json:"order_date" validate:"required"`
	ExpectedDelivery time.Time       `json:"expected_delivery"`
	TaxAmount        string          `json:"tax_amount,omitempty"`
	DiscountAmount   string          `json:"discount_amount,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Items            []ItemRequest   `json:"items" validate:"required,min=1,dive"`
}

// ItemRequest is one line in a create or update payload.
type ItemRequest struct {
	MedicineID int64  `json:"medicine_id" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	UnitCost   string `json:"unit_cost" validate:"required"`
}

// UpdateRequest replaces header fields and the whole item list while pending.
type UpdateRequest struct {
	SupplierID       int64         `json:"supplier_id" validate:"required,gt=0"`
	OrderDate        time.Time     `json:"order_date" validate:"required"`
	ExpectedDelivery time.Time     `json:"expected_delivery"`
	TaxAmount        string        `json:"tax_amount,omitempty"`
	DiscountAmount   string        `json:"discount_amount,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	Items            []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// StatusRequest asks for a direct status transition.
type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
	Notes  string `json:"notes,omitempty" validate:"max=500"`
}

// CancelRequest cancels a pending order.
type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// ReceiveRequest posts quantities received in this call, not cumulative totals.
type ReceiveRequest struct {
	Items []ReceiveItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ReceiveItemRequest is the per-line delta being received.
type ReceiveItemRequest struct {
	ItemID           int64 `json:"item_id" validate:"required,gt=0"`
	ReceivedQuantity int64 `json:"received_quantity" validate:"gte=0"`
}

// ReceiveResult summarises one receive call.
type ReceiveResult struct {
	Order         PurchaseOrder `json:"purchase_order"`
	TotalOrdered  int64         `json:"total_ordered"`
	TotalReceived int64         `json:"total_received"`
}

// ListResponse is the API shape for listings.
type ListResponse struct {
	Orders []ListItem `json:"purchase_orders"`
	Total  int        `json:"total"`
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
}
