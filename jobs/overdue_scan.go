package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// InvoiceSweeper marks issued invoices past their due date as overdue.
type InvoiceSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// OverdueScanJob runs the nightly invoice sweep.
type OverdueScanJob struct {
	sweeper InvoiceSweeper
	logger  *slog.Logger
}

func NewOverdueScanJob(sweeper InvoiceSweeper, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{sweeper: sweeper, logger: logger}
}

func (j *OverdueScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	count, err := j.sweeper.SweepOverdue(ctx)
	if err != nil {
		j.logger.Error("overdue scan", slog.Any("error", err))
		return err
	}
	j.logger.Info("overdue scan finished", slog.Int("flipped", count))
	return nil
}
