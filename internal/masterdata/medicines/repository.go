package medicines

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmacore/pharmacore/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Medicine, int, error)
	Get(ctx context.Context, orgID, id int64) (Medicine, error)
	Create(ctx context.Context, medicine Medicine) (Medicine, error)
	Update(ctx context.Context, orgID, id int64, medicine Medicine) error
	Deactivate(ctx context.Context, orgID, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, organization_id, code, name, COALESCE(generic_name,''), COALESCE(category,''), COALESCE(unit,''),
cost_price, selling_price, stock_quantity, reorder_level, is_active, created_at, updated_at`

func scanMedicine(row pgx.Row) (Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.OrganizationID, &m.Code, &m.Name, &m.GenericName, &m.Category, &m.Unit,
		&m.CostPrice, &m.SellingPrice, &m.StockQuantity, &m.ReorderLevel, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Medicine{}, shared.ErrNotFound
	}
	return m, err
}

func (r *repository) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Medicine, int, error) {
	query := `SELECT ` + columns + ` FROM medicines WHERE organization_id = $1`
	args := []any{orgID}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + ` OR generic_name ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		query += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM ("+query+") c", args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var medicines []Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Code, &m.Name, &m.GenericName, &m.Category, &m.Unit,
			&m.CostPrice, &m.SellingPrice, &m.StockQuantity, &m.ReorderLevel, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		medicines = append(medicines, m)
	}
	return medicines, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Medicine, error) {
	return scanMedicine(r.db.QueryRow(ctx, `SELECT `+columns+` FROM medicines WHERE id = $1 AND organization_id = $2`, id, orgID))
}

func (r *repository) Create(ctx context.Context, medicine Medicine) (Medicine, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO medicines
(organization_id, code, name, generic_name, category, unit, cost_price, selling_price, stock_quantity, reorder_level, is_active, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8, 0, $9, TRUE, $10, $10) RETURNING id`,
		medicine.OrganizationID, medicine.Code, medicine.Name, medicine.GenericName, medicine.Category, medicine.Unit,
		medicine.CostPrice, medicine.SellingPrice, medicine.ReorderLevel, now).Scan(&medicine.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Medicine{}, shared.ErrDuplicate
		}
		return Medicine{}, err
	}
	medicine.StockQuantity = 0
	medicine.IsActive = true
	medicine.CreatedAt = now
	medicine.UpdatedAt = now
	return medicine, nil
}

// Update never touches stock_quantity; stock moves only through receipts.
func (r *repository) Update(ctx context.Context, orgID, id int64, medicine Medicine) error {
	tag, err := r.db.Exec(ctx, `UPDATE medicines SET code=$1, name=$2, generic_name=NULLIF($3,''), category=NULLIF($4,''),
unit=NULLIF($5,''), cost_price=$6, selling_price=$7, reorder_level=$8, updated_at=$9 WHERE id=$10 AND organization_id=$11`,
		medicine.Code, medicine.Name, medicine.GenericName, medicine.Category, medicine.Unit,
		medicine.CostPrice, medicine.SellingPrice, medicine.ReorderLevel, time.Now(), id, orgID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, orgID, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE medicines SET is_active=FALSE, updated_at=NOW() WHERE id=$1 AND organization_id=$2`, id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "stock_quantity":
		return "stock_quantity " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
