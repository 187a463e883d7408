package rewardpool

import (
	"context"
	"fmt"
	"time"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/db"
	"betabay-platform/pkg/errutil"
	"betabay-platform/pkg/repository"
	"betabay-platform/services/abuseguard"
	"betabay-platform/services/gateway"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// verifyAction keys the abuse-guard signals for payment verification.
	verifyAction = "reward-pool-verify"

	// syncMaxAttempts bounds the optimistic-concurrency retry loop when
	// reconciling the funded amount.
	syncMaxAttempts = 5
)

// Service owns the reward-pool funding flow: creating gateway orders for the
// outstanding balance and crediting verified payments into the pool ledger.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	cfg      *config.Config
	gateway  gateway.Client
	guard    *abuseguard.Service
	tests    repository.Repository[BetaTest]
	payments repository.Repository[RewardPayment]
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Config  *config.Config
	Gateway gateway.Client
	Guard   *abuseguard.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		cfg:      p.Config,
		gateway:  p.Gateway,
		guard:    p.Guard,
		tests:    repository.ProvideStore[BetaTest](p.DB),
		payments: repository.ProvideStore[RewardPayment](p.DB),
	}
}

// FundingOrder is the checkout handle returned to the creator's client.
type FundingOrder struct {
	OrderID         string     `json:"orderId"`
	AmountMinor     int64      `json:"amountMinor"`
	Currency        string     `json:"currency"`
	PoolTotalMinor  int64      `json:"poolTotalMinor"`
	PoolFundedMinor int64      `json:"poolFundedMinor"`
	PoolStatus      PoolStatus `json:"poolStatus"`
}

// VerifyInput is a checkout callback from the creator's client.
type VerifyInput struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// VerifyResult reports the pool state after a verification. Credited is
// false when the payment had already been recorded, so clients can retry
// callbacks freely.
type VerifyResult struct {
	Credited        bool       `json:"credited"`
	AmountMinor     int64      `json:"amountMinor"`
	PoolTotalMinor  int64      `json:"poolTotalMinor"`
	PoolFundedMinor int64      `json:"poolFundedMinor"`
	PoolStatus      PoolStatus `json:"poolStatus"`
}

// CreateFundingOrder opens a gateway order for the unfunded remainder of the
// beta test's reward pool. Only the listing creator may fund it.
func (s *Service) CreateFundingOrder(ctx context.Context, callerID, betaTestID string) (*FundingOrder, error) {
	test, err := s.tests.FindOne(ctx, &BetaTest{ID: betaTestID})
	if err != nil {
		return nil, errutil.Internal("failed to load beta test", err)
	}
	if test == nil {
		return nil, errutil.NotFound("beta test not found", nil)
	}

	if test.CreatorID != callerID {
		return nil, errutil.Forbidden("only the listing creator can fund the reward pool", nil)
	}
	if test.RewardType != RewardCash {
		return nil, errutil.BadRequest("reward pool funding applies to cash rewards only", nil)
	}
	if test.RewardCurrency != s.cfg.Payout.Currency {
		return nil, errutil.BadRequest(
			fmt.Sprintf("unsupported reward currency %q", test.RewardCurrency), nil)
	}
	if test.RewardPoolTotalMinor <= 0 {
		return nil, errutil.BadRequest("this listing does not require a reward pool", nil)
	}

	remaining := test.RewardPoolTotalMinor - test.RewardPoolFundedMinor
	if remaining <= 0 || test.RewardPoolStatus == PoolFunded {
		return nil, errutil.BadRequest("reward pool is already fully funded", nil)
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderInput{
		AmountMinor: remaining,
		Currency:    test.RewardCurrency,
		Receipt:     "pool-" + test.ID,
		Notes: map[string]string{
			"purpose":      "beta-reward-pool",
			"beta_test_id": test.ID,
			"creator_id":   test.CreatorID,
		},
	})
	if err != nil {
		return nil, err
	}

	status := PoolPending
	if test.RewardPoolFundedMinor > 0 {
		status = PoolPartial
	}

	err = s.tests.Update(ctx, test.ID, map[string]any{
		"reward_pool_order_id": order.ID,
		"reward_pool_status":   status,
		"updated_at":           time.Now(),
	})
	if err != nil {
		return nil, errutil.Internal("failed to attach funding order", err)
	}

	zap.L().Info("funding order created",
		zap.String("beta_test_id", test.ID),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", remaining),
	)

	return &FundingOrder{
		OrderID:         order.ID,
		AmountMinor:     remaining,
		Currency:        test.RewardCurrency,
		PoolTotalMinor:  test.RewardPoolTotalMinor,
		PoolFundedMinor: test.RewardPoolFundedMinor,
		PoolStatus:      status,
	}, nil
}

// VerifyPayment validates a checkout callback end to end and credits the
// payment into the pool. The flow is ordered so that cheap local checks run
// before gateway round trips: abuse guard, signature, listing preconditions,
// idempotency, then gateway cross-validation and the ledger insert.
func (s *Service) VerifyPayment(ctx context.Context, callerID, betaTestID string, in VerifyInput) (*VerifyResult, error) {
	span := trace.SpanFromContext(ctx)

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("beta_test_id", betaTestID),
		zap.String("payment_id", in.PaymentID),
	}

	if !s.guard.AllowRate(ctx, callerID, verifyAction, s.cfg.AbuseGuard.VerifyMaxPerMinute, time.Minute) {
		return nil, errutil.TooManyRequest("too many verification attempts, slow down", nil)
	}
	if !s.guard.AllowCooldown(ctx, callerID, verifyAction, in.PaymentID, s.cfg.AbuseGuard.VerifyCooldown) {
		return nil, errutil.TooManyRequest("verification for this payment is already in progress", nil)
	}

	secret := gateway.NormalizeCredential(s.cfg.Gateway.KeySecret)
	if !gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature, secret) {
		zap.L().With(opts...).Warn("rejected payment callback with invalid signature",
			zap.String("order_id", in.OrderID),
			zap.String("caller_id", callerID),
		)
		return nil, errutil.Forbidden("invalid payment signature", nil)
	}

	test, err := s.tests.FindOne(ctx, &BetaTest{ID: betaTestID})
	if err != nil {
		return nil, errutil.Internal("failed to load beta test", err)
	}
	if test == nil {
		return nil, errutil.NotFound("beta test not found", nil)
	}
	if test.CreatorID != callerID {
		return nil, errutil.Forbidden("only the listing creator can verify pool payments", nil)
	}
	if test.RewardType != RewardCash {
		return nil, errutil.BadRequest("reward pool funding applies to cash rewards only", nil)
	}
	if test.RewardCurrency != s.cfg.Payout.Currency {
		return nil, errutil.BadRequest(
			fmt.Sprintf("unsupported reward currency %q", test.RewardCurrency), nil)
	}

	// Idempotency: a payment already in the ledger is credited exactly once.
	// Re-sync the pool anyway so a crash between insert and sync heals here.
	existing, err := s.payments.FindOne(ctx, &RewardPayment{PaymentID: in.PaymentID})
	if err != nil {
		return nil, errutil.Internal("failed to check payment ledger", err)
	}
	if existing != nil {
		synced, err := s.syncPoolFromPayments(ctx, test.ID)
		if err != nil {
			return nil, err
		}
		return &VerifyResult{
			Credited:        false,
			AmountMinor:     existing.AmountMinor,
			PoolTotalMinor:  synced.RewardPoolTotalMinor,
			PoolFundedMinor: synced.RewardPoolFundedMinor,
			PoolStatus:      synced.RewardPoolStatus,
		}, nil
	}

	payment, err := s.crossValidate(ctx, test, in)
	if err != nil {
		return nil, err
	}

	credited := true
	err = s.payments.Create(ctx, &RewardPayment{
		ID:          s.node.Generate().String(),
		BetaTestID:  test.ID,
		CreatorID:   test.CreatorID,
		OrderID:     in.OrderID,
		PaymentID:   in.PaymentID,
		AmountMinor: payment.AmountMinor,
		Currency:    payment.Currency,
		Status:      gateway.PaymentCaptured,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		if !db.IsDuplicateKey(err) {
			return nil, errutil.Internal("failed to record reward payment", err)
		}
		// lost the race to a concurrent verify; the payment is recorded
		credited = false
	}

	err = s.tests.Update(ctx, test.ID, map[string]any{
		"reward_pool_payment_id": in.PaymentID,
		"updated_at":             time.Now(),
	})
	if err != nil {
		zap.L().Warn("failed to stamp latest pool payment",
			zap.String("beta_test_id", test.ID),
			zap.Error(err),
		)
	}

	synced, err := s.syncPoolFromPayments(ctx, test.ID)
	if err != nil {
		return nil, err
	}

	zap.L().With(opts...).Info("reward pool payment verified",
		zap.Bool("credited", credited),
		zap.Int64("pool_funded_minor", synced.RewardPoolFundedMinor),
		zap.String("pool_status", string(synced.RewardPoolStatus)),
	)

	return &VerifyResult{
		Credited:        credited,
		AmountMinor:     payment.AmountMinor,
		PoolTotalMinor:  synced.RewardPoolTotalMinor,
		PoolFundedMinor: synced.RewardPoolFundedMinor,
		PoolStatus:      synced.RewardPoolStatus,
	}, nil
}

// crossValidate confirms against the gateway that the order belongs to this
// listing and that the payment is captured money for that order. A signature
// alone proves the callback is genuine, not that the payment funds THIS pool.
func (s *Service) crossValidate(ctx context.Context, test *BetaTest, in VerifyInput) (*gateway.Payment, error) {
	order, err := s.gateway.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Notes["purpose"] != "beta-reward-pool" ||
		order.Notes["beta_test_id"] != test.ID ||
		order.Notes["creator_id"] != test.CreatorID {
		zap.L().Warn("order notes do not match listing",
			zap.String("beta_test_id", test.ID),
			zap.String("order_id", in.OrderID),
		)
		return nil, errutil.Forbidden("payment order does not belong to this listing", nil)
	}
	if order.Currency != test.RewardCurrency {
		return nil, errutil.BadRequest("payment order currency mismatch", nil)
	}
	if order.AmountMinor <= 0 {
		return nil, errutil.BadRequest("payment order has no amount", nil)
	}

	payment, err := s.gateway.GetPayment(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.OrderID != in.OrderID {
		return nil, errutil.Forbidden("payment does not belong to this order", nil)
	}
	if payment.Currency != test.RewardCurrency {
		return nil, errutil.BadRequest("payment currency mismatch", nil)
	}

	// Auto-capture setups can leave the payment authorized at callback time.
	if payment.Status == gateway.PaymentAuthorized && !payment.Captured {
		payment, err = s.gateway.CapturePayment(ctx, in.PaymentID, payment.AmountMinor, payment.Currency)
		if err != nil {
			return nil, err
		}
	}

	if payment.Status != gateway.PaymentCaptured || !payment.Captured {
		return nil, errutil.UnprocessableEntity(
			fmt.Sprintf("payment is not captured (status %q)", payment.Status), nil)
	}
	if payment.AmountMinor != order.AmountMinor {
		zap.L().Warn("payment amount differs from order amount",
			zap.String("payment_id", in.PaymentID),
			zap.Int64("payment_minor", payment.AmountMinor),
			zap.Int64("order_minor", order.AmountMinor),
		)
		return nil, errutil.UnprocessableEntity("payment amount does not match order amount", nil)
	}

	return payment, nil
}

// syncPoolFromPayments reconciles the pool's funded amount from the captured
// payment ledger. The funded amount is monotonic: it becomes
// max(current, sum of captured payments), applied with a conditional update
// on the previously read value and retried on conflict.
func (s *Service) syncPoolFromPayments(ctx context.Context, betaTestID string) (*BetaTest, error) {
	for attempt := 0; attempt < syncMaxAttempts; attempt++ {
		test, err := s.tests.FindOne(ctx, &BetaTest{ID: betaTestID})
		if err != nil {
			return nil, errutil.Internal("failed to load beta test", err)
		}
		if test == nil {
			return nil, errutil.NotFound("beta test not found", nil)
		}

		var sum int64
		err = s.db.WithContext(ctx).
			Model(&RewardPayment{}).
			Select("COALESCE(SUM(amount_minor), 0)").
			Where("beta_test_id = ? AND status = ?", betaTestID, gateway.PaymentCaptured).
			Scan(&sum).Error
		if err != nil {
			return nil, errutil.Internal("failed to sum reward payments", err)
		}

		funded := test.RewardPoolFundedMinor
		if sum > funded {
			funded = sum
		}

		status := DerivePoolStatus(funded, test.RewardPoolTotalMinor)

		updates := map[string]any{
			"reward_pool_funded_minor": funded,
			"reward_pool_status":       status,
			"updated_at":               time.Now(),
		}
		if status == PoolFunded && test.RewardPoolStatus != PoolFunded && test.RewardPoolFundedAt == nil {
			updates["reward_pool_funded_at"] = time.Now()
		}

		res := s.db.WithContext(ctx).
			Model(&BetaTest{}).
			Where("id = ? AND reward_pool_funded_minor = ?", betaTestID, test.RewardPoolFundedMinor).
			Updates(updates)
		if res.Error != nil {
			return nil, errutil.Internal("failed to update reward pool", res.Error)
		}
		if res.RowsAffected == 0 {
			// concurrent sync moved the funded amount, re-read and retry
			continue
		}

		return s.tests.FindOne(ctx, &BetaTest{ID: betaTestID})
	}

	return nil, errutil.Conflict("reward pool is being updated concurrently, retry", nil)
}
