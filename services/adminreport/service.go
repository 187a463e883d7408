package adminreport

import (
	"context"
	"time"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/errutil"
	"betabay-platform/services/betaapp"
	"betabay-platform/services/rewardpool"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// SLA buckets for payout age reporting.
const (
	BucketUnder24h = "<24h"
	Bucket1to3d    = "1-3d"
	Bucket3to7d    = "3-7d"
	BucketOver7d   = ">7d"
)

// SLABucket maps a payout's age since its last transition onto a reporting
// bucket.
func SLABucket(age time.Duration) string {
	switch {
	case age < 24*time.Hour:
		return BucketUnder24h
	case age < 72*time.Hour:
		return Bucket1to3d
	case age < 168*time.Hour:
		return Bucket3to7d
	default:
		return BucketOver7d
	}
}

// Notifier raises deduplicated operational alerts.
type Notifier interface {
	Upsert(ctx context.Context, dedupeKey, level, title, message string, metadata map[string]any)
	Resolve(ctx context.Context, dedupeKey string)
}

// Service builds the admin-facing payout views: the outstanding payout
// queue, the daily summary and the funding reconciliation export. It only
// reads; all writes stay with the owning services.
type Service struct {
	db       *gorm.DB
	cfg      *config.Config
	notifier Notifier
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Config   *config.Config
	Notifier Notifier
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		cfg:      p.Config,
		notifier: p.Notifier,
	}
}

func (s *Service) isAdmin(userID string) bool {
	for _, id := range s.cfg.Payout.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// QueueRow is one outstanding cash payout awaiting admin action.
type QueueRow struct {
	BetaTestID       string              `gorm:"column:beta_test_id" json:"betaTestId"`
	Title            string              `gorm:"column:title" json:"title"`
	ApplicantUserID  string              `gorm:"column:applicant_user_id" json:"applicantUserId"`
	PayoutStatus     betaapp.PayoutStatus `gorm:"column:payout_status" json:"payoutStatus"`
	PayoutGrossMinor int64               `gorm:"column:payout_gross_minor" json:"payoutGrossMinor"`
	PayoutFeeMinor   int64               `gorm:"column:payout_fee_minor" json:"payoutFeeMinor"`
	PayoutNetMinor   int64               `gorm:"column:payout_net_minor" json:"payoutNetMinor"`
	PayoutNote       string              `gorm:"column:payout_note" json:"payoutNote,omitempty"`
	UpdatedAt        time.Time           `gorm:"column:updated_at" json:"updatedAt"`
	AgeBucket        string              `gorm:"-" json:"ageBucket"`
}

// PayoutQueue lists accepted cash testers whose payout is still pending or
// failed, oldest transition first.
func (s *Service) PayoutQueue(ctx context.Context, adminID string) ([]QueueRow, error) {
	if !s.isAdmin(adminID) {
		return nil, errutil.Forbidden("payout administration is restricted", nil)
	}

	rows, err := s.outstandingPayouts(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range rows {
		rows[i].AgeBucket = SLABucket(now.Sub(rows[i].UpdatedAt))
	}

	return rows, nil
}

func (s *Service) outstandingPayouts(ctx context.Context) ([]QueueRow, error) {
	var rows []QueueRow
	err := s.db.WithContext(ctx).
		Table("beta_applications AS app").
		Select("app.beta_test_id, bt.title, app.applicant_user_id, app.payout_status, "+
			"app.payout_gross_minor, app.payout_fee_minor, app.payout_net_minor, "+
			"app.payout_note, app.updated_at").
		Joins("JOIN beta_tests bt ON bt.id = app.beta_test_id").
		Where("bt.reward_type = ?", rewardpool.RewardCash).
		Where("app.status = ?", betaapp.ApplicationAccepted).
		Where("app.payout_status IN ?", []betaapp.PayoutStatus{betaapp.PayoutPending, betaapp.PayoutFailed}).
		Order("app.updated_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errutil.Internal("failed to query payout queue", err)
	}
	return rows, nil
}

// PayoutSummary is the daily operational digest of the payout queue.
type PayoutSummary struct {
	Day            string           `json:"day"`
	PendingCount   int64            `json:"pendingCount"`
	FailedCount    int64            `json:"failedCount"`
	PendingMinor   int64            `json:"pendingMinor"`
	AgeBuckets     map[string]int64 `json:"ageBuckets"`
	OldestPending  *time.Time       `json:"oldestPending,omitempty"`
}

// Summary aggregates the outstanding payout queue into the daily digest.
func (s *Service) Summary(ctx context.Context) (*PayoutSummary, error) {
	rows, err := s.outstandingPayouts(ctx)
	if err != nil {
		return nil, err
	}

	summary := &PayoutSummary{
		Day: time.Now().Format("2006-01-02"),
		AgeBuckets: map[string]int64{
			BucketUnder24h: 0,
			Bucket1to3d:    0,
			Bucket3to7d:    0,
			BucketOver7d:   0,
		},
	}

	now := time.Now()
	for _, row := range rows {
		switch row.PayoutStatus {
		case betaapp.PayoutFailed:
			summary.FailedCount++
		default:
			summary.PendingCount++
			summary.PendingMinor += row.PayoutNetMinor
		}

		summary.AgeBuckets[SLABucket(now.Sub(row.UpdatedAt))]++

		if summary.OldestPending == nil || row.UpdatedAt.Before(*summary.OldestPending) {
			ts := row.UpdatedAt
			summary.OldestPending = &ts
		}
	}

	return summary, nil
}

// SummaryForAdmin is the HTTP-facing variant of Summary with the allowlist
// check applied.
func (s *Service) SummaryForAdmin(ctx context.Context, adminID string) (*PayoutSummary, error) {
	if !s.isAdmin(adminID) {
		return nil, errutil.Forbidden("payout administration is restricted", nil)
	}
	return s.Summary(ctx)
}

// ReconRow compares a pool's funded amount against its captured payment
// ledger. DeltaMinor above zero means funded credit the ledger cannot
// explain (for example a manual adjustment); below zero should never happen.
type ReconRow struct {
	BetaTestID      string                `gorm:"column:beta_test_id" json:"betaTestId"`
	Title           string                `gorm:"column:title" json:"title"`
	PoolStatus      rewardpool.PoolStatus `gorm:"column:pool_status" json:"poolStatus"`
	PoolTotalMinor  int64                 `gorm:"column:pool_total_minor" json:"poolTotalMinor"`
	PoolFundedMinor int64                 `gorm:"column:pool_funded_minor" json:"poolFundedMinor"`
	PaymentsMinor   int64                 `gorm:"column:payments_minor" json:"paymentsMinor"`
	DeltaMinor      int64                 `gorm:"-" json:"deltaMinor"`
}

// Reconciliation exports pool funding against the payment ledger for every
// cash listing that requires a pool.
func (s *Service) Reconciliation(ctx context.Context, adminID string) ([]ReconRow, error) {
	if !s.isAdmin(adminID) {
		return nil, errutil.Forbidden("payout administration is restricted", nil)
	}
	return s.reconRows(ctx)
}

func (s *Service) reconRows(ctx context.Context) ([]ReconRow, error) {
	var rows []ReconRow
	err := s.db.WithContext(ctx).
		Table("beta_tests AS bt").
		Select("bt.id AS beta_test_id, bt.title, bt.reward_pool_status AS pool_status, "+
			"bt.reward_pool_total_minor AS pool_total_minor, "+
			"bt.reward_pool_funded_minor AS pool_funded_minor, "+
			"COALESCE(SUM(rp.amount_minor), 0) AS payments_minor").
		Joins("LEFT JOIN reward_payments rp ON rp.beta_test_id = bt.id AND rp.status = ?", "captured").
		Where("bt.reward_type = ?", rewardpool.RewardCash).
		Where("bt.reward_pool_total_minor > 0").
		Group("bt.id, bt.title, bt.reward_pool_status, bt.reward_pool_total_minor, bt.reward_pool_funded_minor").
		Order("bt.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errutil.Internal("failed to query reconciliation", err)
	}

	for i := range rows {
		rows[i].DeltaMinor = rows[i].PoolFundedMinor - rows[i].PaymentsMinor
	}

	return rows, nil
}
