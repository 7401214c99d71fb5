package medicines

import (
	"fmt"
	"strings"

	"github.com/pharmacore/pharmacore/internal/masterdata/shared"
)

func (s *Service) validate(m Medicine) error {
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("%w: medicine code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: medicine name is required", shared.ErrValidation)
	}
	if m.CostPrice.IsNegative() {
		return fmt.Errorf("%w: cost price must be >= 0", shared.ErrValidation)
	}
	if m.SellingPrice.IsNegative() {
		return fmt.Errorf("%w: selling price must be >= 0", shared.ErrValidation)
	}
	if m.ReorderLevel < 0 {
		return fmt.Errorf("%w: reorder level must be >= 0", shared.ErrValidation)
	}
	return nil
}
