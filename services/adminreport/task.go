package adminreport

import (
	"context"
	"fmt"
	"time"

	"betabay-platform/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RegisterHandlers wires the reporting tasks onto the worker mux.
func RegisterHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.PayoutSummaryDaily, svc.HandlePayoutSummary)
	mux.HandleFunc(taskname.RewardPoolReconcile, svc.HandlePoolReconcile)
}

// HandlePayoutSummary computes the daily payout digest and raises it as an
// info alert. The dedupe key carries the day, so a retried or double-enqueued
// task refreshes the same alert instead of producing a second one.
func (s *Service) HandlePayoutSummary(ctx context.Context, t *asynq.Task) error {
	summary, err := s.Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to build payout summary: %w", err)
	}

	key := "daily-payout-summary:" + summary.Day

	message := fmt.Sprintf("%d pending (%d minor units outstanding), %d failed",
		summary.PendingCount, summary.PendingMinor, summary.FailedCount)

	metadata := map[string]any{
		"day":           summary.Day,
		"pending_count": summary.PendingCount,
		"failed_count":  summary.FailedCount,
		"pending_minor": summary.PendingMinor,
		"age_buckets":   summary.AgeBuckets,
	}
	if summary.OldestPending != nil {
		metadata["oldest_pending"] = summary.OldestPending.Format(time.RFC3339)
	}

	s.notifier.Upsert(ctx, key, "info", "Daily payout summary", message, metadata)

	zap.L().Info("daily payout summary published",
		zap.String("day", summary.Day),
		zap.Int64("pending_count", summary.PendingCount),
		zap.Int64("failed_count", summary.FailedCount),
	)

	return nil
}

// HandlePoolReconcile compares every pool's funded amount against its
// captured-payment ledger. A pool that drifts out of balance raises a
// warning alert keyed per listing; a pool back in balance resolves it.
func (s *Service) HandlePoolReconcile(ctx context.Context, t *asynq.Task) error {
	rows, err := s.reconRows(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pool reconciliation: %w", err)
	}

	var drifted int
	for _, row := range rows {
		key := "pool-reconcile:" + row.BetaTestID

		if row.DeltaMinor == 0 {
			s.notifier.Resolve(ctx, key)
			continue
		}

		drifted++
		s.notifier.Upsert(ctx, key, "warning", "Reward pool out of balance",
			fmt.Sprintf("pool shows %d minor units funded but captured payments sum to %d",
				row.PoolFundedMinor, row.PaymentsMinor),
			map[string]any{
				"beta_test_id":      row.BetaTestID,
				"pool_funded_minor": row.PoolFundedMinor,
				"payments_minor":    row.PaymentsMinor,
				"delta_minor":       row.DeltaMinor,
			})
	}

	zap.L().Info("reward pool reconciliation completed",
		zap.Int("pools", len(rows)),
		zap.Int("drifted", drifted),
	)

	return nil
}
