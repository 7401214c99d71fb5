package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmacore/pharmacore/internal/purchasing"
)

const (
	// TaskPurchasingOverdueScan flags pending orders past their expected
	// delivery date.
	TaskPurchasingOverdueScan = "purchasing:overdue_scan"
)

// OverdueScanPayload contains options for the scan.
type OverdueScanPayload struct {
	GracePeriod time.Duration `json:"grace_period"`
}

// NewOverdueScanTask builds a new overdue scan task.
func NewOverdueScanTask(grace time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueScanPayload{GracePeriod: grace})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurchasingOverdueScan, body, asynq.Queue(QueueDefault)), nil
}

// OverdueLister reports pending orders past their expected delivery.
type OverdueLister interface {
	OverduePending(ctx context.Context, cutoff time.Time) ([]purchasing.OverdueOrder, error)
}

// NewOverdueScanHandler builds the Asynq handler for overdue scans. The
// scan only reports; follow-up stays with procurement staff.
func NewOverdueScanHandler(repo OverdueLister, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OverdueScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		cutoff := time.Now().UTC().Add(-payload.GracePeriod)
		orders, err := repo.OverduePending(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, order := range orders {
			logger.Warn("purchase order overdue",
				slog.Int64("purchase_order_id", order.ID),
				slog.Int64("organization_id", order.OrganizationID),
				slog.String("po_number", order.Number),
				slog.Time("expected_delivery", order.ExpectedDelivery))
		}
		logger.Info("overdue scan finished", slog.Int("overdue", len(orders)))
		return nil
	}
}
