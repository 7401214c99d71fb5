package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmacore/pharmacore/internal/inventory"
	"github.com/pharmacore/pharmacore/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id, orgID int64) (PurchaseOrder, error)
	List(ctx context.Context, orgID int64, limit, offset int, filters ListFilters) ([]ListItem, int, error)
	NextNumber(ctx context.Context, orgID int64) (string, error)
	RecentNumbers(ctx context.Context, orgID int64, limit int) ([]string, error)
	StatusHistory(ctx context.Context, poID int64) ([]StatusChange, error)
	AppendStatusHistory(ctx context.Context, change StatusChange) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdateOrder(ctx context.Context, po PurchaseOrder) error
	DeleteItems(ctx context.Context, poID int64) error
	InsertItem(ctx context.Context, item Item) (int64, error)
	CountMedicines(ctx context.Context, orgID int64, medicineIDs []int64) (int, error)
	GetItemForUpdate(ctx context.Context, poID, itemID int64) (Item, error)
	AddItemReceived(ctx context.Context, itemID, delta int64) (int64, error)
	AddMedicineStock(ctx context.Context, orgID, medicineID, delta int64) (int64, error)
	InsertReceipt(ctx context.Context, receipt inventory.Receipt) error
	OrderQuantities(ctx context.Context, poID int64) (ordered int64, received int64, err error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetActualDelivery(ctx context.Context, id int64, at time.Time) error
	SetAppliedAt(ctx context.Context, id int64, at time.Time) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockInvalidator drops cached stock snapshots after a receipt posts.
type StockInvalidator interface {
	Invalidate(ctx context.Context, orgID int64) error
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	stock  StockInvalidator
	logger *slog.Logger
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, audit AuditPort, stock StockInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, stock: stock, logger: logger}
}

// Create validates and persists a new order with its items in one
// transaction. Inserting items does not touch medicine stock; only
// ReceiveItems mutates stock.
func (s *Service) Create(ctx context.Context, orgID, userID int64, input CreateRequest) (PurchaseOrder, error) {
	po, err := buildOrder(orgID, userID, input.SupplierID, input.OrderDate, input.ExpectedDelivery, input.TaxAmount, input.DiscountAmount, input.Notes, input.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := po.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	if err := po.ValidateItems(); err != nil {
		return PurchaseOrder{}, err
	}
	po.CalculateTotals()

	number, err := s.repo.NextNumber(ctx, orgID)
	if err != nil {
		recent, rerr := s.repo.RecentNumbers(ctx, orgID, numberScanWindow)
		if rerr != nil {
			return PurchaseOrder{}, fmt.Errorf("purchasing: generate number: %w", rerr)
		}
		number = nextFallbackNumber(recent, time.Now().UTC())
	}
	po.Number = number

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkMedicines(ctx, tx, orgID, po.Items); err != nil {
			return err
		}
		id, err := tx.InsertOrder(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		for i := range po.Items {
			po.Items[i].PurchaseOrderID = id
			itemID, err := tx.InsertItem(ctx, po.Items[i])
			if err != nil {
				return err
			}
			po.Items[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, orgID, userID, "PO_CREATE", po.ID, map[string]any{"number": po.Number, "total": po.TotalAmount})
	return s.repo.GetOrder(ctx, po.ID, orgID)
}

// Get returns the order with its items.
func (s *Service) Get(ctx context.Context, id, orgID int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id, orgID)
}

// List returns a page of orders for the organization.
func (s *Service) List(ctx context.Context, orgID int64, page, limit int, filters ListFilters) ([]ListItem, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	return s.repo.List(ctx, orgID, limit, (page-1)*limit, filters)
}

// Update replaces header fields and the entire item list. Allowed only
// while the order is pending; items are deleted and re-inserted wholesale.
func (s *Service) Update(ctx context.Context, id, orgID, userID int64, input UpdateRequest) (PurchaseOrder, error) {
	current, err := s.repo.GetOrder(ctx, id, orgID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !current.Status.CanEdit() {
		return PurchaseOrder{}, fmt.Errorf("%w: order %s is %s", ErrInvalidState, current.Number, current.Status)
	}

	po, err := buildOrder(orgID, current.CreatedBy, input.SupplierID, input.OrderDate, input.ExpectedDelivery, input.TaxAmount, input.DiscountAmount, input.Notes, input.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.ID = current.ID
	po.Number = current.Number
	po.Status = current.Status
	if err := po.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	if err := po.ValidateItems(); err != nil {
		return PurchaseOrder{}, err
	}
	po.CalculateTotals()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkMedicines(ctx, tx, orgID, po.Items); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, po); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, po.ID); err != nil {
			return err
		}
		for i := range po.Items {
			po.Items[i].PurchaseOrderID = po.ID
			itemID, err := tx.InsertItem(ctx, po.Items[i])
			if err != nil {
				return err
			}
			po.Items[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, orgID, userID, "PO_UPDATE", po.ID, map[string]any{"number": po.Number, "total": po.TotalAmount})
	return s.repo.GetOrder(ctx, po.ID, orgID)
}

// UpdateStatus performs a direct transition. Only pending orders move, and
// only to received, cancelled or applied. The history row is appended after
// commit and its failure never rolls the transition back.
func (s *Service) UpdateStatus(ctx context.Context, id, orgID, userID int64, newStatus Status, notes string) (PurchaseOrder, error) {
	po, err := s.repo.GetOrder(ctx, id, orgID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !newStatus.IsValid() {
		return PurchaseOrder{}, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}
	if !transitionAllowed(po.Status, newStatus) {
		return PurchaseOrder{}, &TransitionError{From: po.Status, To: newStatus}
	}

	now := time.Now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, newStatus); err != nil {
			return err
		}
		switch newStatus {
		case StatusReceived:
			return tx.SetActualDelivery(ctx, id, now)
		case StatusApplied:
			return tx.SetAppliedAt(ctx, id, now)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.appendHistory(ctx, id, po.Status, newStatus, userID, notes)
	s.recordAudit(ctx, orgID, userID, "PO_STATUS", id, map[string]any{"from": po.Status, "to": newStatus})
	return s.repo.GetOrder(ctx, id, orgID)
}

// ReceiveItems posts per-line received deltas against the order. The whole
// routine runs in a single transaction: cumulative received quantities and
// medicine stock move by atomic increments, one inventory transaction row is
// appended per line, and the order status is settled from the totals.
func (s *Service) ReceiveItems(ctx context.Context, id, orgID, userID int64, input ReceiveRequest) (ReceiveResult, error) {
	po, err := s.repo.GetOrder(ctx, id, orgID)
	if err != nil {
		return ReceiveResult{}, err
	}
	if !po.Status.CanReceive() {
		return ReceiveResult{}, fmt.Errorf("%w: order %s is %s", ErrInvalidState, po.Number, po.Status)
	}

	var receivable int
	for _, delta := range input.Items {
		if delta.ItemID == 0 {
			return ReceiveResult{}, fmt.Errorf("%w: item reference is required", ErrValidation)
		}
		if delta.ReceivedQuantity < 0 {
			return ReceiveResult{}, fmt.Errorf("%w: received quantity must be >= 0", ErrValidation)
		}
		if delta.ReceivedQuantity > 0 {
			receivable++
		}
	}
	if receivable == 0 {
		return ReceiveResult{}, fmt.Errorf("%w: nothing to receive", ErrValidation)
	}

	now := time.Now().UTC()
	var newStatus Status
	var ordered, received int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, delta := range input.Items {
			if delta.ReceivedQuantity == 0 {
				continue
			}
			item, err := tx.GetItemForUpdate(ctx, id, delta.ItemID)
			if err != nil {
				return fmt.Errorf("receive item %d: %w", delta.ItemID, err)
			}
			cumulative, err := tx.AddItemReceived(ctx, item.ID, delta.ReceivedQuantity)
			if err != nil {
				return fmt.Errorf("receive item %d: update received quantity: %w", item.ID, err)
			}
			if _, err := tx.AddMedicineStock(ctx, orgID, item.MedicineID, delta.ReceivedQuantity); err != nil {
				return fmt.Errorf("receive item %d: update stock: %w", item.ID, err)
			}
			qty := decimal.NewFromInt(delta.ReceivedQuantity)
			refKey := uuid.NewSHA1(uuid.Nil, fmt.Appendf(nil, "PO:%d:%d:%d", id, item.ID, cumulative))
			receipt := inventory.Receipt{
				OrganizationID: orgID,
				MedicineID:     item.MedicineID,
				Type:           inventory.TypePurchaseReceive,
				Quantity:       delta.ReceivedQuantity,
				UnitPrice:      item.UnitCost,
				TotalAmount:    item.UnitCost.Mul(qty),
				ReferenceID:    id,
				ReferenceType:  "purchase_order",
				ReferenceKey:   refKey.String(),
				CreatedBy:      userID,
			}
			if err := tx.InsertReceipt(ctx, receipt); err != nil {
				return fmt.Errorf("receive item %d: record transaction: %w", item.ID, err)
			}
		}

		ordered, received, err = tx.OrderQuantities(ctx, id)
		if err != nil {
			return err
		}
		newStatus = StatusPartiallyReceived
		if received >= ordered {
			newStatus = StatusReceived
		}
		if err := tx.UpdateStatus(ctx, id, newStatus); err != nil {
			return err
		}
		if newStatus == StatusReceived {
			return tx.SetActualDelivery(ctx, id, now)
		}
		return nil
	})
	if err != nil {
		return ReceiveResult{}, err
	}

	if po.Status != newStatus {
		s.appendHistory(ctx, id, po.Status, newStatus, userID, "")
	}
	s.recordAudit(ctx, orgID, userID, "PO_RECEIVE", id, map[string]any{"number": po.Number, "received": received, "ordered": ordered})
	if s.stock != nil {
		if err := s.stock.Invalidate(ctx, orgID); err != nil {
			s.logger.Warn("invalidate stock cache", slog.Int64("org_id", orgID), slog.Any("error", err))
		}
	}

	updated, err := s.repo.GetOrder(ctx, id, orgID)
	if err != nil {
		return ReceiveResult{}, err
	}
	return ReceiveResult{Order: updated, TotalOrdered: ordered, TotalReceived: received}, nil
}

// Cancel delegates to UpdateStatus with the cancelled target.
func (s *Service) Cancel(ctx context.Context, id, orgID, userID int64, reason string) (PurchaseOrder, error) {
	po, err := s.repo.GetOrder(ctx, id, orgID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanCancel() {
		return PurchaseOrder{}, fmt.Errorf("%w: order %s is %s", ErrInvalidState, po.Number, po.Status)
	}
	return s.UpdateStatus(ctx, id, orgID, userID, StatusCancelled, reason)
}

// StatusHistory lists transitions for the order, newest first.
func (s *Service) StatusHistory(ctx context.Context, id, orgID int64) ([]StatusChange, error) {
	if _, err := s.repo.GetOrder(ctx, id, orgID); err != nil {
		return nil, err
	}
	return s.repo.StatusHistory(ctx, id)
}

func (s *Service) checkMedicines(ctx context.Context, tx TxRepository, orgID int64, items []Item) error {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.MedicineID]; ok {
			continue
		}
		seen[item.MedicineID] = struct{}{}
		ids = append(ids, item.MedicineID)
	}
	count, err := tx.CountMedicines(ctx, orgID, ids)
	if err != nil {
		return err
	}
	if count != len(ids) {
		return fmt.Errorf("%w: one or more medicines not found in organization", ErrValidation)
	}
	return nil
}

func (s *Service) appendHistory(ctx context.Context, poID int64, from, to Status, userID int64, notes string) {
	change := StatusChange{
		PurchaseOrderID: poID,
		OldStatus:       from,
		NewStatus:       to,
		ChangedBy:       userID,
		Notes:           notes,
		ChangedAt:       time.Now().UTC(),
	}
	if err := s.repo.AppendStatusHistory(ctx, change); err != nil {
		s.logger.Warn("append status history",
			slog.Int64("purchase_order_id", poID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{OrganizationID: orgID, ActorID: actorID, Action: action, Entity: "purchase_order", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func buildOrder(orgID, userID, supplierID int64, orderDate, expected time.Time, tax, discount, notes string, items []ItemRequest) (PurchaseOrder, error) {
	taxAmount, err := parseAmount(tax, "tax_amount")
	if err != nil {
		return PurchaseOrder{}, err
	}
	discountAmount, err := parseAmount(discount, "discount_amount")
	if err != nil {
		return PurchaseOrder{}, err
	}
	po := PurchaseOrder{
		OrganizationID:   orgID,
		SupplierID:       supplierID,
		Status:           StatusPending,
		OrderDate:        orderDate,
		ExpectedDelivery: expected,
		TaxAmount:        taxAmount,
		DiscountAmount:   discountAmount,
		Notes:            notes,
		CreatedBy:        userID,
	}
	for _, line := range items {
		unitCost, err := parseAmount(line.UnitCost, "unit_cost")
		if err != nil {
			return PurchaseOrder{}, err
		}
		po.Items = append(po.Items, Item{
			MedicineID: line.MedicineID,
			Quantity:   line.Quantity,
			UnitCost:   unitCost,
		})
	}
	return po, nil
}

func parseAmount(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a valid amount", ErrValidation, field)
	}
	return d, nil
}
