package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmacore/pharmacore/internal/inventory"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, organization_id, po_number, supplier_id, status, order_date,
COALESCE(expected_delivery_date, order_date), actual_delivery_date,
tax_amount, discount_amount, total_amount, COALESCE(notes,''),
created_by, approved_by, approved_at, applied_at, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.OrganizationID, &po.Number, &po.SupplierID, &po.Status,
		&po.OrderDate, &po.ExpectedDelivery, &po.ActualDelivery,
		&po.TaxAmount, &po.DiscountAmount, &po.TotalAmount, &po.Notes,
		&po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt, &po.AppliedAt, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// GetOrder returns the order and its items.
func (r *Repository) GetOrder(ctx context.Context, id, orgID int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 AND organization_id=$2`, id, orgID))
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_order_id, medicine_id, quantity, unit_cost, total_cost, received_quantity
FROM purchase_order_items WHERE purchase_order_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.MedicineID, &item.Quantity, &item.UnitCost, &item.TotalCost, &item.ReceivedQuantity); err != nil {
			return PurchaseOrder{}, err
		}
		po.Items = append(po.Items, item)
	}
	if err := rows.Err(); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// List returns a page of orders with supplier names and item counts.
func (r *Repository) List(ctx context.Context, orgID int64, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	where := []string{"po.organization_id = $1"}
	args := []any{orgID}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where = append(where, fmt.Sprintf("po.status = $%d", len(args)))
	}
	if filters.SupplierID != 0 {
		args = append(args, filters.SupplierID)
		where = append(where, fmt.Sprintf("po.supplier_id = $%d", len(args)))
	}
	if !filters.StartDate.IsZero() {
		args = append(args, filters.StartDate)
		where = append(where, fmt.Sprintf("po.order_date >= $%d", len(args)))
	}
	if !filters.EndDate.IsZero() {
		args = append(args, filters.EndDate)
		where = append(where, fmt.Sprintf("po.order_date <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders po WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy := listOrderBy(filters.SortBy, filters.SortDir)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT po.id, po.po_number, po.supplier_id, COALESCE(s.name,''), po.status,
po.order_date, COALESCE(po.expected_delivery_date, po.order_date), po.total_amount,
(SELECT COUNT(*) FROM purchase_order_items i WHERE i.purchase_order_id = po.id), po.created_at
FROM purchase_orders po
LEFT JOIN suppliers s ON s.id = po.supplier_id
WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`, cond, orderBy, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.Number, &it.SupplierID, &it.SupplierName, &it.Status,
			&it.OrderDate, &it.ExpectedDelivery, &it.TotalAmount, &it.ItemCount, &it.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// listOrderBy whitelists sortable columns; unknown input falls back to
// newest first.
func listOrderBy(sortBy, sortDir string) string {
	column := "po.created_at"
	switch sortBy {
	case "order_date":
		column = "po.order_date"
	case "po_number":
		column = "po.po_number"
	case "total_amount":
		column = "po.total_amount"
	case "status":
		column = "po.status"
	}
	dir := "DESC"
	if strings.EqualFold(sortDir, "asc") {
		dir = "ASC"
	}
	return column + " " + dir
}

// NextNumber asks the database sequence function for the next PO number.
func (r *Repository) NextNumber(ctx context.Context, orgID int64) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx, `SELECT next_po_number($1)`, orgID).Scan(&number)
	if err != nil {
		return "", err
	}
	return number, nil
}

// RecentNumbers lists the most recently issued numbers for the fallback
// generator.
func (r *Repository) RecentNumbers(ctx context.Context, orgID int64, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT po_number FROM purchase_orders WHERE organization_id=$1 ORDER BY id DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// OverduePending lists orders still receivable whose expected delivery
// fell before the cutoff.
func (r *Repository) OverduePending(ctx context.Context, cutoff time.Time) ([]OverdueOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, organization_id, po_number, supplier_id, expected_delivery_date
FROM purchase_orders
WHERE status IN ($1, $2) AND expected_delivery_date IS NOT NULL AND expected_delivery_date < $3
ORDER BY expected_delivery_date`, StatusPending, StatusPartiallyReceived, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []OverdueOrder
	for rows.Next() {
		var o OverdueOrder
		if err := rows.Scan(&o.ID, &o.OrganizationID, &o.Number, &o.SupplierID, &o.ExpectedDelivery); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// StatusHistory lists transitions newest first.
func (r *Repository) StatusHistory(ctx context.Context, poID int64) ([]StatusChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_order_id, old_status, new_status, changed_by, COALESCE(notes,''), changed_at
FROM purchase_order_status_history WHERE purchase_order_id=$1 ORDER BY changed_at DESC, id DESC`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var changes []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.PurchaseOrderID, &c.OldStatus, &c.NewStatus, &c.ChangedBy, &c.Notes, &c.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// AppendStatusHistory inserts one history row outside any transaction.
func (r *Repository) AppendStatusHistory(ctx context.Context, change StatusChange) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO purchase_order_status_history (purchase_order_id, old_status, new_status, changed_by, notes, changed_at)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)`,
		change.PurchaseOrderID, change.OldStatus, change.NewStatus, change.ChangedBy, change.Notes, change.ChangedAt)
	return err
}

// Transactional operations

func (t *txRepo) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(organization_id, po_number, supplier_id, status, order_date, expected_delivery_date, tax_amount, discount_amount, total_amount, notes, created_by)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, '0001-01-01'::date), $7, $8, $9, NULLIF($10,''), $11) RETURNING id`,
		po.OrganizationID, po.Number, po.SupplierID, po.Status, po.OrderDate, po.ExpectedDelivery,
		po.TaxAmount, po.DiscountAmount, po.TotalAmount, po.Notes, po.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) UpdateOrder(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET supplier_id=$1, order_date=$2,
expected_delivery_date=NULLIF($3, '0001-01-01'::date), tax_amount=$4, discount_amount=$5, total_amount=$6,
notes=NULLIF($7,''), updated_at=NOW() WHERE id=$8 AND organization_id=$9`,
		po.SupplierID, po.OrderDate, po.ExpectedDelivery, po.TaxAmount, po.DiscountAmount, po.TotalAmount,
		po.Notes, po.ID, po.OrganizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteItems(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id=$1`, poID)
	return err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items
(purchase_order_id, medicine_id, quantity, unit_cost, total_cost, received_quantity)
VALUES ($1, $2, $3, $4, $5, 0) RETURNING id`,
		item.PurchaseOrderID, item.MedicineID, item.Quantity, item.UnitCost, item.TotalCost).Scan(&id)
	return id, err
}

func (t *txRepo) CountMedicines(ctx context.Context, orgID int64, medicineIDs []int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM medicines WHERE organization_id=$1 AND id = ANY($2)`, orgID, medicineIDs).Scan(&count)
	return count, err
}

func (t *txRepo) GetItemForUpdate(ctx context.Context, poID, itemID int64) (Item, error) {
	var item Item
	err := t.tx.QueryRow(ctx, `SELECT id, purchase_order_id, medicine_id, quantity, unit_cost, total_cost, received_quantity
FROM purchase_order_items WHERE id=$1 AND purchase_order_id=$2 FOR UPDATE`, itemID, poID).
		Scan(&item.ID, &item.PurchaseOrderID, &item.MedicineID, &item.Quantity, &item.UnitCost, &item.TotalCost, &item.ReceivedQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: item does not belong to order", ErrValidation)
	}
	return item, err
}

// AddItemReceived bumps the cumulative received quantity by delta and
// returns the new value. An atomic increment, never a read-modify-write.
func (t *txRepo) AddItemReceived(ctx context.Context, itemID, delta int64) (int64, error) {
	var cumulative int64
	err := t.tx.QueryRow(ctx, `UPDATE purchase_order_items SET received_quantity = received_quantity + $1
WHERE id=$2 RETURNING received_quantity`, delta, itemID).Scan(&cumulative)
	return cumulative, err
}

// AddMedicineStock bumps on-hand stock by delta and returns the new level.
func (t *txRepo) AddMedicineStock(ctx context.Context, orgID, medicineID, delta int64) (int64, error) {
	var quantity int64
	err := t.tx.QueryRow(ctx, `UPDATE medicines SET stock_quantity = stock_quantity + $1, updated_at=NOW()
WHERE id=$2 AND organization_id=$3 RETURNING stock_quantity`, delta, medicineID, orgID).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: medicine %d not found in organization", ErrValidation, medicineID)
	}
	return quantity, err
}

func (t *txRepo) InsertReceipt(ctx context.Context, receipt inventory.Receipt) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_transactions
(organization_id, medicine_id, transaction_type, quantity, unit_price, total_amount, reference_id, reference_type, reference_key, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		receipt.OrganizationID, receipt.MedicineID, receipt.Type, receipt.Quantity,
		receipt.UnitPrice, receipt.TotalAmount, receipt.ReferenceID, receipt.ReferenceType,
		receipt.ReferenceKey, receipt.CreatedBy)
	return err
}

func (t *txRepo) OrderQuantities(ctx context.Context, poID int64) (int64, int64, error) {
	var ordered, received int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity),0), COALESCE(SUM(received_quantity),0)
FROM purchase_order_items WHERE purchase_order_id=$1`, poID).Scan(&ordered, &received)
	return ordered, received, err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetActualDelivery(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET actual_delivery_date=$1, updated_at=NOW() WHERE id=$2`, at, id)
	return err
}

func (t *txRepo) SetAppliedAt(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET applied_at=$1, updated_at=NOW() WHERE id=$2`, at, id)
	return err
}
