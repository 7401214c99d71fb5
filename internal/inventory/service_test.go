package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	levels       map[int64][]StockLevel
	transactions []Transaction
	stockLoads   int
	lowLoads     int
}

func (r *memoryRepo) StockLevels(ctx context.Context, orgID int64) ([]StockLevel, error) {
	r.stockLoads++
	return r.levels[orgID], nil
}

func (r *memoryRepo) LowStock(ctx context.Context, orgID int64) ([]StockLevel, error) {
	r.lowLoads++
	var low []StockLevel
	for _, level := range r.levels[orgID] {
		if level.Quantity <= level.ReorderLevel {
			low = append(low, level)
		}
	}
	return low, nil
}

func (r *memoryRepo) MedicineStock(ctx context.Context, orgID, medicineID int64) (StockLevel, error) {
	for _, level := range r.levels[orgID] {
		if level.MedicineID == medicineID {
			return level, nil
		}
	}
	return StockLevel{}, ErrNotFound
}

func (r *memoryRepo) Transactions(ctx context.Context, orgID int64, filter TransactionFilter, limit, offset int) ([]Transaction, int, error) {
	var out []Transaction
	for _, tx := range r.transactions {
		if tx.OrganizationID != orgID {
			continue
		}
		if filter.MedicineID != 0 && tx.MedicineID != filter.MedicineID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		out = append(out, tx)
	}
	return out, len(out), nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &memoryRepo{levels: map[int64][]StockLevel{
		1: {
			{MedicineID: 1, Code: "MED-001", Name: "Amoxicillin", Quantity: 80, ReorderLevel: 20},
			{MedicineID: 2, Code: "MED-002", Name: "Ibuprofen", Quantity: 5, ReorderLevel: 10},
		},
	}}
	return NewService(repo, NewCache(client, time.Minute), nil), repo
}

func TestStockLevelsCached(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	levels, err := svc.StockLevels(ctx, 1)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	require.Equal(t, 1, repo.stockLoads)

	_, err = svc.StockLevels(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, repo.stockLoads, "second read must come from cache")
}

func TestInvalidateForcesReload(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.StockLevels(ctx, 1)
	require.NoError(t, err)

	repo.levels[1][0].Quantity = 100
	require.NoError(t, svc.Invalidate(ctx, 1))

	levels, err := svc.StockLevels(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 100, levels[0].Quantity)
	require.Equal(t, 2, repo.stockLoads)
}

func TestLowStockFiltersByReorderLevel(t *testing.T) {
	svc, _ := newTestService(t)

	low, err := svc.LowStock(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "MED-002", low[0].Code)
}

func TestMedicineStockNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.MedicineStock(context.Background(), 1, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionsFilterByType(t *testing.T) {
	svc, repo := newTestService(t)
	repo.transactions = []Transaction{
		{ID: 1, OrganizationID: 1, MedicineID: 1, Type: TypePurchaseReceive, Quantity: 10},
		{ID: 2, OrganizationID: 1, MedicineID: 1, Type: TypeSale, Quantity: -2},
		{ID: 3, OrganizationID: 2, MedicineID: 1, Type: TypePurchaseReceive, Quantity: 7},
	}

	txs, total, err := svc.Transactions(context.Background(), 1, TransactionFilter{Type: TypePurchaseReceive}, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, txs, 1)
	require.EqualValues(t, 10, txs[0].Quantity)
}
