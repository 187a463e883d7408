package rewardpool

import "time"

type RewardType string

const (
	RewardCash          RewardType = "cash"
	RewardPremiumAccess RewardType = "premium_access"
)

type PoolStatus string

const (
	PoolNotRequired PoolStatus = "not_required"
	PoolPending     PoolStatus = "pending"
	PoolPartial     PoolStatus = "partial"
	PoolFunded      PoolStatus = "funded"
)

// BetaTest is a beta-testing listing together with its reward-pool ledger
// columns. FundedMinor only ever grows; it is reconciled from captured
// gateway payments and never decremented.
type BetaTest struct {
	ID                    string     `gorm:"column:id;primaryKey" json:"id"`
	CreatorID             string     `gorm:"column:creator_id;index" json:"creator_id"`
	Title                 string     `gorm:"column:title" json:"title"`
	RewardType            RewardType `gorm:"column:reward_type" json:"reward_type"`
	RewardCurrency        string     `gorm:"column:reward_currency" json:"reward_currency"`
	RewardAmountMinor     int64      `gorm:"column:reward_amount_minor" json:"reward_amount_minor"`
	RewardPoolTotalMinor  int64      `gorm:"column:reward_pool_total_minor" json:"reward_pool_total_minor"`
	RewardPoolFundedMinor int64      `gorm:"column:reward_pool_funded_minor" json:"reward_pool_funded_minor"`
	RewardPoolStatus      PoolStatus `gorm:"column:reward_pool_status" json:"reward_pool_status"`
	RewardPoolOrderID     *string    `gorm:"column:reward_pool_order_id" json:"reward_pool_order_id,omitempty"`
	RewardPoolPaymentID   *string    `gorm:"column:reward_pool_payment_id" json:"reward_pool_payment_id,omitempty"`
	RewardPoolFundedAt    *time.Time `gorm:"column:reward_pool_funded_at" json:"reward_pool_funded_at,omitempty"`
	CreatedAt             time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (BetaTest) TableName() string {
	return "beta_tests"
}

// RewardPayment is one captured gateway payment credited to a pool. The
// unique index on PaymentID is the idempotency anchor for verification:
// concurrent verifies of the same payment race to this insert and exactly
// one wins.
type RewardPayment struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	BetaTestID  string    `gorm:"column:beta_test_id;index" json:"beta_test_id"`
	CreatorID   string    `gorm:"column:creator_id" json:"creator_id"`
	OrderID     string    `gorm:"column:order_id" json:"order_id"`
	PaymentID   string    `gorm:"column:payment_id;uniqueIndex" json:"payment_id"`
	AmountMinor int64     `gorm:"column:amount_minor" json:"amount_minor"`
	Currency    string    `gorm:"column:currency" json:"currency"`
	Status      string    `gorm:"column:status" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (RewardPayment) TableName() string {
	return "reward_payments"
}

// DerivePoolStatus maps funded progress against the required total onto a
// pool status. A zero total means no pool is required at all.
func DerivePoolStatus(fundedMinor, totalMinor int64) PoolStatus {
	switch {
	case totalMinor <= 0:
		return PoolNotRequired
	case fundedMinor >= totalMinor:
		return PoolFunded
	case fundedMinor > 0:
		return PoolPartial
	default:
		return PoolPending
	}
}
