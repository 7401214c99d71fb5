package medicines

import (
	"context"

	"github.com/pharmacore/pharmacore/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Medicine, int, error) {
	return s.repo.List(ctx, orgID, filters)
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Medicine, error) {
	if id <= 0 {
		return Medicine{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, medicine Medicine) (Medicine, error) {
	if err := s.validate(medicine); err != nil {
		return Medicine{}, err
	}
	return s.repo.Create(ctx, medicine)
}

func (s *Service) Update(ctx context.Context, orgID, id int64, medicine Medicine) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(medicine); err != nil {
		return err
	}
	return s.repo.Update(ctx, orgID, id, medicine)
}

func (s *Service) Deactivate(ctx context.Context, orgID, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Deactivate(ctx, orgID, id)
}
