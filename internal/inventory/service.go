package inventory

import (
	"context"
	"log/slog"
)

// RepositoryPort describes reads used by Service.
type RepositoryPort interface {
	StockLevels(ctx context.Context, orgID int64) ([]StockLevel, error)
	LowStock(ctx context.Context, orgID int64) ([]StockLevel, error)
	MedicineStock(ctx context.Context, orgID, medicineID int64) (StockLevel, error)
	Transactions(ctx context.Context, orgID int64, filter TransactionFilter, limit, offset int) ([]Transaction, int, error)
}

// Service serves stock snapshots and the transaction ledger. Snapshots go
// through the versioned cache; ledger listings always hit the database.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the inventory service.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// StockLevels returns every medicine's on-hand snapshot, cached.
func (s *Service) StockLevels(ctx context.Context, orgID int64) ([]StockLevel, error) {
	key, err := s.cache.BuildKey(ctx, orgID, keyStock(orgID))
	if err != nil {
		s.logger.Warn("stock cache key", slog.Any("error", err))
		return s.repo.StockLevels(ctx, orgID)
	}
	var levels []StockLevel
	err = s.cache.FetchJSON(ctx, key, &levels, func(ctx context.Context) (any, error) {
		return s.repo.StockLevels(ctx, orgID)
	})
	if err != nil {
		s.logger.Warn("stock cache fetch", slog.Any("error", err))
		return s.repo.StockLevels(ctx, orgID)
	}
	return levels, nil
}

// LowStock returns medicines at or below reorder level, cached.
func (s *Service) LowStock(ctx context.Context, orgID int64) ([]StockLevel, error) {
	key, err := s.cache.BuildKey(ctx, orgID, keyLowStock(orgID))
	if err != nil {
		s.logger.Warn("low stock cache key", slog.Any("error", err))
		return s.repo.LowStock(ctx, orgID)
	}
	var levels []StockLevel
	err = s.cache.FetchJSON(ctx, key, &levels, func(ctx context.Context) (any, error) {
		return s.repo.LowStock(ctx, orgID)
	})
	if err != nil {
		s.logger.Warn("low stock cache fetch", slog.Any("error", err))
		return s.repo.LowStock(ctx, orgID)
	}
	return levels, nil
}

// MedicineStock returns one medicine's snapshot, uncached.
func (s *Service) MedicineStock(ctx context.Context, orgID, medicineID int64) (StockLevel, error) {
	return s.repo.MedicineStock(ctx, orgID, medicineID)
}

// Transactions lists ledger rows, newest first.
func (s *Service) Transactions(ctx context.Context, orgID int64, filter TransactionFilter, page, limit int) ([]Transaction, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	return s.repo.Transactions(ctx, orgID, filter, limit, (page-1)*limit)
}

// Invalidate drops cached snapshots for the organization.
func (s *Service) Invalidate(ctx context.Context, orgID int64) error {
	return s.cache.Invalidate(ctx, orgID)
}
