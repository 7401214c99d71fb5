package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed reads over stock and the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockLevels returns the on-hand snapshot for every medicine in the
// organization, ordered by name.
func (r *Repository) StockLevels(ctx context.Context, orgID int64) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, COALESCE(unit,''), stock_quantity, reorder_level, cost_price
FROM medicines WHERE organization_id=$1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStockLevels(rows)
}

// LowStock returns medicines at or below their reorder level.
func (r *Repository) LowStock(ctx context.Context, orgID int64) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, COALESCE(unit,''), stock_quantity, reorder_level, cost_price
FROM medicines WHERE organization_id=$1 AND stock_quantity <= reorder_level ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStockLevels(rows)
}

func scanStockLevels(rows pgx.Rows) ([]StockLevel, error) {
	var levels []StockLevel
	for rows.Next() {
		var level StockLevel
		if err := rows.Scan(&level.MedicineID, &level.Code, &level.Name, &level.Unit, &level.Quantity, &level.ReorderLevel, &level.CostPrice); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// MedicineStock returns one medicine's snapshot.
func (r *Repository) MedicineStock(ctx context.Context, orgID, medicineID int64) (StockLevel, error) {
	var level StockLevel
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(unit,''), stock_quantity, reorder_level, cost_price
FROM medicines WHERE id=$1 AND organization_id=$2`, medicineID, orgID).
		Scan(&level.MedicineID, &level.Code, &level.Name, &level.Unit, &level.Quantity, &level.ReorderLevel, &level.CostPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, ErrNotFound
	}
	return level, err
}

// Transactions lists ledger rows for the organization, newest first.
func (r *Repository) Transactions(ctx context.Context, orgID int64, filter TransactionFilter, limit, offset int) ([]Transaction, int, error) {
	where := []string{"t.organization_id = $1"}
	args := []any{orgID}
	if filter.MedicineID != 0 {
		args = append(args, filter.MedicineID)
		where = append(where, fmt.Sprintf("t.medicine_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("t.transaction_type = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("t.created_at <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_transactions t WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT t.id, t.organization_id, t.medicine_id, COALESCE(m.name,''), t.transaction_type,
t.quantity, t.unit_price, t.total_amount, COALESCE(t.reference_id,0), COALESCE(t.reference_type,''),
COALESCE(t.reference_key,''), t.created_by, t.created_at
FROM inventory_transactions t
LEFT JOIN medicines m ON m.id = t.medicine_id
WHERE %s ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.OrganizationID, &tx.MedicineID, &tx.MedicineName, &tx.Type,
			&tx.Quantity, &tx.UnitPrice, &tx.TotalAmount, &tx.ReferenceID, &tx.ReferenceType,
			&tx.ReferenceKey, &tx.CreatedBy, &tx.CreatedAt); err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}
