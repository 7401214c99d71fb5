package purchasing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pharmacore/pharmacore/internal/inventory"
	"github.com/pharmacore/pharmacore/internal/shared"
)

type memoryRepo struct {
	orders     map[int64]*PurchaseOrder
	history    []StatusChange
	medicines  map[int64]bool
	stock      map[int64]int64
	receipts   []inventory.Receipt
	numbers    []string
	nextID     int64
	nextItemID int64
	seqErr     error
	historyErr error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:    make(map[int64]*PurchaseOrder),
		medicines: map[int64]bool{1: true, 2: true, 3: true},
		stock:     make(map[int64]int64),
		seqErr:    errors.New("sequence unavailable"),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOrder(ctx context.Context, id, orgID int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok || po.OrganizationID != orgID {
		return PurchaseOrder{}, ErrNotFound
	}
	out := *po
	out.Items = make([]Item, len(po.Items))
	copy(out.Items, po.Items)
	return out, nil
}

func (r *memoryRepo) List(ctx context.Context, orgID int64, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	var items []ListItem
	for _, po := range r.orders {
		if po.OrganizationID != orgID {
			continue
		}
		if filters.Status != "" && po.Status != filters.Status {
			continue
		}
		items = append(items, ListItem{ID: po.ID, Number: po.Number, Status: po.Status, SupplierID: po.SupplierID})
	}
	return items, len(items), nil
}

func (r *memoryRepo) NextNumber(ctx context.Context, orgID int64) (string, error) {
	if r.seqErr != nil {
		return "", r.seqErr
	}
	return "PO-SEQ-00042", nil
}

func (r *memoryRepo) RecentNumbers(ctx context.Context, orgID int64, limit int) ([]string, error) {
	return r.numbers, nil
}

func (r *memoryRepo) StatusHistory(ctx context.Context, poID int64) ([]StatusChange, error) {
	var out []StatusChange
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].PurchaseOrderID == poID {
			out = append(out, r.history[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) AppendStatusHistory(ctx context.Context, change StatusChange) error {
	if r.historyErr != nil {
		return r.historyErr
	}
	change.ID = int64(len(r.history) + 1)
	r.history = append(r.history, change)
	return nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	for _, existing := range tx.repo.orders {
		if existing.Number == po.Number {
			return 0, ErrDuplicateNumber
		}
	}
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	po.Items = nil
	tx.repo.orders[po.ID] = &po
	tx.repo.numbers = append(tx.repo.numbers, po.Number)
	return po.ID, nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, po PurchaseOrder) error {
	stored, ok := tx.repo.orders[po.ID]
	if !ok {
		return ErrNotFound
	}
	items := stored.Items
	status := stored.Status
	*stored = po
	stored.Items = items
	stored.Status = status
	return nil
}

func (tx *memoryTx) DeleteItems(ctx context.Context, poID int64) error {
	if po, ok := tx.repo.orders[poID]; ok {
		po.Items = nil
	}
	return nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	po, ok := tx.repo.orders[item.PurchaseOrderID]
	if !ok {
		return 0, ErrNotFound
	}
	tx.repo.nextItemID++
	item.ID = tx.repo.nextItemID
	po.Items = append(po.Items, item)
	return item.ID, nil
}

func (tx *memoryTx) CountMedicines(ctx context.Context, orgID int64, medicineIDs []int64) (int, error) {
	count := 0
	for _, id := range medicineIDs {
		if tx.repo.medicines[id] {
			count++
		}
	}
	return count, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, poID, itemID int64) (Item, error) {
	po, ok := tx.repo.orders[poID]
	if !ok {
		return Item{}, ErrNotFound
	}
	for _, item := range po.Items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return Item{}, errors.Join(ErrValidation, errors.New("item does not belong to order"))
}

func (tx *memoryTx) AddItemReceived(ctx context.Context, itemID, delta int64) (int64, error) {
	for _, po := range tx.repo.orders {
		for i := range po.Items {
			if po.Items[i].ID == itemID {
				po.Items[i].ReceivedQuantity += delta
				return po.Items[i].ReceivedQuantity, nil
			}
		}
	}
	return 0, ErrNotFound
}

func (tx *memoryTx) AddMedicineStock(ctx context.Context, orgID, medicineID, delta int64) (int64, error) {
	tx.repo.stock[medicineID] += delta
	return tx.repo.stock[medicineID], nil
}

func (tx *memoryTx) InsertReceipt(ctx context.Context, receipt inventory.Receipt) error {
	tx.repo.receipts = append(tx.repo.receipts, receipt)
	return nil
}

func (tx *memoryTx) OrderQuantities(ctx context.Context, poID int64) (int64, int64, error) {
	po, ok := tx.repo.orders[poID]
	if !ok {
		return 0, 0, ErrNotFound
	}
	var ordered, received int64
	for _, item := range po.Items {
		ordered += item.Quantity
		received += item.ReceivedQuantity
	}
	return ordered, received, nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	po, ok := tx.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	return nil
}

func (tx *memoryTx) SetActualDelivery(ctx context.Context, id int64, at time.Time) error {
	if po, ok := tx.repo.orders[id]; ok {
		po.ActualDelivery = &at
	}
	return nil
}

func (tx *memoryTx) SetAppliedAt(ctx context.Context, id int64, at time.Time) error {
	if po, ok := tx.repo.orders[id]; ok {
		po.AppliedAt = &at
	}
	return nil
}

type fakeAudit struct {
	actions []string
}

func (a *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, orgID int64) error {
	f.calls++
	return nil
}

func createRequest() CreateRequest {
	return CreateRequest{
		SupplierID: 7,
		OrderDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		TaxAmount:  "10",
		Items: []ItemRequest{
			{MedicineID: 1, Quantity: 10, UnitCost: "2.50"},
			{MedicineID: 2, Quantity: 5, UnitCost: "4.00"},
		},
	}
}

func newTestService(repo *memoryRepo) (*Service, *fakeAudit, *fakeInvalidator) {
	audit := &fakeAudit{}
	stock := &fakeInvalidator{}
	return NewService(repo, audit, stock, nil), audit, stock
}

func TestCreateComputesTotalsAndFallbackNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)
	require.Equal(t, StatusPending, po.Status)
	// 10*2.50 + 5*4.00 + 10 tax = 55.00
	require.True(t, po.TotalAmount.Equal(decimal.RequireFromString("55")))
	require.Len(t, po.Items, 2)
	require.EqualValues(t, 0, po.Items[0].ReceivedQuantity)
	require.Equal(t, "PO-"+time.Now().UTC().Format("20060102")+"-00001", po.Number)
	require.Contains(t, audit.actions, "PO_CREATE")
}

func TestCreateUsesSequenceWhenAvailable(t *testing.T) {
	repo := newMemoryRepo()
	repo.seqErr = nil
	svc, _, _ := newTestService(repo)

	po, err := svc.Create(context.Background(), 1, 9, createRequest())
	require.NoError(t, err)
	require.Equal(t, "PO-SEQ-00042", po.Number)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	req := createRequest()
	req.Items = nil
	_, err := svc.Create(ctx, 1, 9, req)
	require.ErrorIs(t, err, ErrValidation)

	req = createRequest()
	req.Items[0].UnitCost = "not-a-number"
	_, err = svc.Create(ctx, 1, 9, req)
	require.ErrorIs(t, err, ErrValidation)

	req = createRequest()
	req.Items[0].Quantity = 0
	_, err = svc.Create(ctx, 1, 9, req)
	require.ErrorIs(t, err, ErrValidation)

	req = createRequest()
	req.Items[0].MedicineID = 99
	_, err = svc.Create(ctx, 1, 9, req)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateOnlyWhilePending(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	update := UpdateRequest{
		SupplierID: 8,
		OrderDate:  po.OrderDate,
		Items:      []ItemRequest{{MedicineID: 3, Quantity: 2, UnitCost: "1.00"}},
	}
	updated, err := svc.Update(ctx, po.ID, 1, 9, update)
	require.NoError(t, err)
	require.EqualValues(t, 8, updated.SupplierID)
	require.Len(t, updated.Items, 1)
	require.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("2")))

	_, err = svc.UpdateStatus(ctx, po.ID, 1, 9, StatusCancelled, "")
	require.NoError(t, err)

	_, err = svc.Update(ctx, po.ID, 1, 9, update)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateStatusTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	received, err := svc.UpdateStatus(ctx, po.ID, 1, 9, StatusReceived, "full delivery")
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)
	require.NotNil(t, received.ActualDelivery)

	_, err = svc.UpdateStatus(ctx, po.ID, 1, 9, StatusCancelled, "")
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, StatusReceived, transition.From)

	_, err = svc.UpdateStatus(ctx, po.ID, 1, 9, Status("bogus"), "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatusAppliedStampsAppliedAt(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	applied, err := svc.UpdateStatus(ctx, po.ID, 1, 9, StatusApplied, "")
	require.NoError(t, err)
	require.Equal(t, StatusApplied, applied.Status)
	require.NotNil(t, applied.AppliedAt)
}

func TestReceivePartialThenComplete(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, stock := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	result, err := svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, ReceivedQuantity: 4},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, result.Order.Status)
	require.EqualValues(t, 15, result.TotalOrdered)
	require.EqualValues(t, 4, result.TotalReceived)
	require.EqualValues(t, 4, repo.stock[1])
	require.Len(t, repo.receipts, 1)
	require.Equal(t, inventory.TypePurchaseReceive, repo.receipts[0].Type)
	require.Equal(t, "purchase_order", repo.receipts[0].ReferenceType)
	require.NotEmpty(t, repo.receipts[0].ReferenceKey)
	require.Equal(t, 1, stock.calls)

	result, err = svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, ReceivedQuantity: 6},
		{ItemID: po.Items[1].ID, ReceivedQuantity: 5},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, result.Order.Status)
	require.EqualValues(t, 15, result.TotalReceived)
	require.NotNil(t, result.Order.ActualDelivery)
	require.EqualValues(t, 10, repo.stock[1])
	require.EqualValues(t, 5, repo.stock[2])
	require.Len(t, repo.receipts, 3)

	_, err = svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, ReceivedQuantity: 1},
	}})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestReceiveOverDeliveryCompletesOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	result, err := svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, ReceivedQuantity: 20},
	}})
	require.NoError(t, err)
	// 20 >= 15 ordered, cumulative quantity is kept as delivered
	require.Equal(t, StatusReceived, result.Order.Status)
	require.EqualValues(t, 20, result.Order.Items[0].ReceivedQuantity)
}

func TestReceiveRejectsBadDeltas(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	_, err = svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, ReceivedQuantity: -1},
	}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, ReceivedQuantity: 0},
	}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: 9999, ReceivedQuantity: 2},
	}})
	require.ErrorIs(t, err, ErrValidation)

	// failed receive must not leave stock or receipts behind
	require.Empty(t, repo.receipts)
	require.Empty(t, repo.stock[1])
}

func TestCancelOnlyWhilePending(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, po.ID, 1, 9, "supplier out of business")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, po.ID, 1, 9, "again")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestStatusHistoryRecordsTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	_, err = svc.ReceiveItems(ctx, po.ID, 1, 9, ReceiveRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, ReceivedQuantity: 4},
	}})
	require.NoError(t, err)

	history, err := svc.StatusHistory(ctx, po.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, StatusPending, history[0].OldStatus)
	require.Equal(t, StatusPartiallyReceived, history[0].NewStatus)
}

func TestHistoryFailureDoesNotFailTransition(t *testing.T) {
	repo := newMemoryRepo()
	repo.historyErr = errors.New("history table unavailable")
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	cancelled, err := svc.UpdateStatus(ctx, po.ID, 1, 9, StatusCancelled, "")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Empty(t, repo.history)
}

func TestDuplicateNumberSurfacesConflict(t *testing.T) {
	repo := newMemoryRepo()
	repo.seqErr = nil // sequence always yields the same test number
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, 9, createRequest())
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestGetScopedToOrganization(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, 1, 9, createRequest())
	require.NoError(t, err)

	_, err = svc.Get(ctx, po.ID, 2)
	require.ErrorIs(t, err, ErrNotFound)
}
