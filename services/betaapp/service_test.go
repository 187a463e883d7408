package betaapp

import (
	"context"
	"strings"
	"testing"
	"time"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/errutil"
	"betabay-platform/pkg/repository"
	"betabay-platform/services/rewardpool"
	"betabay-platform/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type notifierMock struct {
	upserts  []string
	resolves []string
}

func (m *notifierMock) Upsert(ctx context.Context, dedupeKey, level, title, message string, metadata map[string]any) {
	m.upserts = append(m.upserts, dedupeKey)
}

func (m *notifierMock) Resolve(ctx context.Context, dedupeKey string) {
	m.resolves = append(m.resolves, dedupeKey)
}

func newTestService(t *testing.T, models ...any) (*Service, *gorm.DB, *notifierMock) {
	t.Helper()

	if len(models) == 0 {
		models = []any{&rewardpool.BetaTest{}, &Application{}, &PayoutAuditLog{}}
	}
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Payout.Currency = "INR"
	cfg.Payout.AdminUserIDs = []string{"admin_1"}

	notifier := &notifierMock{}

	svc := &Service{
		db:       db,
		node:     node,
		cfg:      cfg,
		notifier: notifier,
		apps:     repository.ProvideStore[Application](db),
		audits:   repository.ProvideStore[PayoutAuditLog](db),
		tests:    repository.ProvideStore[rewardpool.BetaTest](db),
	}
	return svc, db, notifier
}

func seedBetaTest(t *testing.T, db *gorm.DB, mutate ...func(*rewardpool.BetaTest)) *rewardpool.BetaTest {
	t.Helper()

	test := &rewardpool.BetaTest{
		ID:                    "bt_1",
		CreatorID:             "creator_1",
		RewardType:            rewardpool.RewardCash,
		RewardCurrency:        "INR",
		RewardAmountMinor:     25000,
		RewardPoolTotalMinor:  100000,
		RewardPoolFundedMinor: 100000,
		RewardPoolStatus:      rewardpool.PoolFunded,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}
	for _, fn := range mutate {
		fn(test)
	}
	require.NoError(t, db.Create(test).Error)
	return test
}

func seedApplication(t *testing.T, db *gorm.DB, mutate ...func(*Application)) *Application {
	t.Helper()

	app := &Application{
		ID:              "app_1",
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		Status:          ApplicationPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	for _, fn := range mutate {
		fn(app)
	}
	require.NoError(t, db.Create(app).Error)
	return app
}

func TestApproveSnapshotsBreakdown(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db)

	result, err := svc.ApproveApplication(context.Background(), "creator_1", "bt_1", "tester_1")
	require.NoError(t, err)
	require.False(t, result.DegradedPayoutTracking)

	app := result.Application
	require.Equal(t, ApplicationAccepted, app.Status)
	require.Equal(t, PayoutPending, app.PayoutStatus)
	require.Equal(t, int64(25000), app.PayoutGrossMinor)
	require.Equal(t, int64(1250), app.PayoutFeeMinor)
	require.Equal(t, int64(23750), app.PayoutNetMinor)
}

func TestApproveRefusedWhileUnfunded(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db, func(bt *rewardpool.BetaTest) {
		bt.RewardPoolFundedMinor = 40000
		bt.RewardPoolStatus = rewardpool.PoolPartial
	})
	seedApplication(t, db)

	_, err := svc.ApproveApplication(context.Background(), "creator_1", "bt_1", "tester_1")
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	var app Application
	require.NoError(t, db.First(&app, "id = ?", "app_1").Error)
	require.Equal(t, ApplicationPending, app.Status)
}

func TestApprovePremiumAccessSkipsGate(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db, func(bt *rewardpool.BetaTest) {
		bt.RewardType = rewardpool.RewardPremiumAccess
		bt.RewardPoolFundedMinor = 0
		bt.RewardPoolStatus = rewardpool.PoolNotRequired
		bt.RewardPoolTotalMinor = 0
	})
	seedApplication(t, db)

	result, err := svc.ApproveApplication(context.Background(), "creator_1", "bt_1", "tester_1")
	require.NoError(t, err)
	require.Equal(t, ApplicationAccepted, result.Application.Status)
	// no cash payout, so no breakdown is written
	require.Equal(t, int64(0), result.Application.PayoutGrossMinor)
}

func TestApproveNoPoolRequiredSkipsGate(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db, func(bt *rewardpool.BetaTest) {
		bt.RewardPoolTotalMinor = 0
		bt.RewardPoolFundedMinor = 0
		bt.RewardPoolStatus = rewardpool.PoolNotRequired
	})
	seedApplication(t, db)

	result, err := svc.ApproveApplication(context.Background(), "creator_1", "bt_1", "tester_1")
	require.NoError(t, err)
	require.Equal(t, ApplicationAccepted, result.Application.Status)
	require.Equal(t, PayoutPending, result.Application.PayoutStatus)
}

func TestApproveRequiresCreator(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db)

	_, err := svc.ApproveApplication(context.Background(), "intruder", "bt_1", "tester_1")
	requireStatus(t, err, errutil.StatusForbidden)
}

func TestApproveAlreadyAcceptedIsNoop(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db, func(app *Application) {
		app.Status = ApplicationAccepted
		app.PayoutStatus = PayoutPaid
		app.PayoutGrossMinor = 25000
	})

	result, err := svc.ApproveApplication(context.Background(), "creator_1", "bt_1", "tester_1")
	require.NoError(t, err)
	// no re-snapshot, no payout reset
	require.Equal(t, PayoutPaid, result.Application.PayoutStatus)
}

// legacyApplication mirrors beta_applications before the payout columns
// were added.
type legacyApplication struct {
	ID              string            `gorm:"column:id;primaryKey"`
	BetaTestID      string            `gorm:"column:beta_test_id"`
	ApplicantUserID string            `gorm:"column:applicant_user_id"`
	Status          ApplicationStatus `gorm:"column:status"`
	CreatedAt       time.Time         `gorm:"column:created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at"`
}

func (legacyApplication) TableName() string {
	return "beta_applications"
}

func TestApproveDegradesWithoutPayoutColumns(t *testing.T) {
	svc, db, _ := newTestService(t, &rewardpool.BetaTest{}, &legacyApplication{}, &PayoutAuditLog{})
	seedBetaTest(t, db)
	require.NoError(t, db.Create(&legacyApplication{
		ID:              "app_1",
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		Status:          ApplicationPending,
	}).Error)

	result, err := svc.ApproveApplication(context.Background(), "creator_1", "bt_1", "tester_1")
	require.NoError(t, err)
	require.True(t, result.DegradedPayoutTracking)
	require.Equal(t, ApplicationAccepted, result.Application.Status)
}

func TestUpdatePayoutStatusDegradedSchema(t *testing.T) {
	svc, db, _ := newTestService(t, &rewardpool.BetaTest{}, &legacyApplication{}, &PayoutAuditLog{})
	seedBetaTest(t, db)
	require.NoError(t, db.Create(&legacyApplication{
		ID:              "app_1",
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		Status:          ApplicationAccepted,
	}).Error)

	_, err := svc.UpdateCashPayoutStatus(context.Background(), "admin_1", UpdatePayoutStatusInput{
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		NextStatus:      PayoutPaid,
	})
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
}

func TestUpdatePayoutStatusToPaid(t *testing.T) {
	svc, db, notifier := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db, func(app *Application) {
		app.Status = ApplicationAccepted
		app.PayoutStatus = PayoutPending
		app.PayoutGrossMinor = 25000
	})

	result, err := svc.UpdateCashPayoutStatus(context.Background(), "admin_1", UpdatePayoutStatusInput{
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		NextStatus:      PayoutPaid,
		Note:            "UTR 12345",
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, PayoutPending, result.PreviousStatus)
	require.Equal(t, PayoutPaid, result.Application.PayoutStatus)
	require.NotNil(t, result.Application.PayoutPaidAt)
	require.Equal(t, "UTR 12345", result.Application.PayoutNote)
	require.Empty(t, notifier.upserts)

	var audits []PayoutAuditLog
	require.NoError(t, db.Find(&audits).Error)
	require.Len(t, audits, 1)
	require.Equal(t, PayoutPending, audits[0].PreviousStatus)
	require.Equal(t, PayoutPaid, audits[0].NextStatus)
	require.Equal(t, "admin_1", audits[0].AdminUserID)
}

func TestUpdatePayoutStatusFailureRaisesAlert(t *testing.T) {
	svc, db, notifier := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db, func(app *Application) {
		app.Status = ApplicationAccepted
		app.PayoutStatus = PayoutPending
	})
	ctx := context.Background()

	_, err := svc.UpdateCashPayoutStatus(ctx, "admin_1", UpdatePayoutStatusInput{
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		NextStatus:      PayoutFailed,
		Note:            "bank account closed",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"payout-failed:bt_1:tester_1"}, notifier.upserts)

	// recovery clears the alert
	result, err := svc.UpdateCashPayoutStatus(ctx, "admin_1", UpdatePayoutStatusInput{
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		NextStatus:      PayoutPaid,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Application.PayoutPaidAt)
	require.Equal(t, []string{"payout-failed:bt_1:tester_1"}, notifier.resolves)
}

func TestUpdatePayoutStatusNoopStillAudited(t *testing.T) {
	svc, db, notifier := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db, func(app *Application) {
		app.Status = ApplicationAccepted
		app.PayoutStatus = PayoutPending
	})

	result, err := svc.UpdateCashPayoutStatus(context.Background(), "admin_1", UpdatePayoutStatusInput{
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		NextStatus:      PayoutPending,
		Note:            "checked, still waiting on bank",
	})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Empty(t, notifier.upserts)
	require.Empty(t, notifier.resolves)

	var audits []PayoutAuditLog
	require.NoError(t, db.Find(&audits).Error)
	require.Len(t, audits, 1)
	require.Equal(t, PayoutPending, audits[0].PreviousStatus)
	require.Equal(t, PayoutPending, audits[0].NextStatus)
}

func TestUpdatePayoutStatusValidation(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db, func(app *Application) {
		app.Status = ApplicationAccepted
	})
	ctx := context.Background()

	_, err := svc.UpdateCashPayoutStatus(ctx, "not_admin", UpdatePayoutStatusInput{
		BetaTestID: "bt_1", ApplicantUserID: "tester_1", NextStatus: PayoutPaid,
	})
	requireStatus(t, err, errutil.StatusForbidden)

	_, err = svc.UpdateCashPayoutStatus(ctx, "admin_1", UpdatePayoutStatusInput{
		BetaTestID: "bt_1", ApplicantUserID: "tester_1", NextStatus: "refunded",
	})
	requireStatus(t, err, errutil.StatusBadRequest)

	_, err = svc.UpdateCashPayoutStatus(ctx, "admin_1", UpdatePayoutStatusInput{
		BetaTestID:      "bt_1",
		ApplicantUserID: "tester_1",
		NextStatus:      PayoutPaid,
		Note:            strings.Repeat("x", 301),
	})
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestUpdatePayoutStatusRequiresAcceptedTester(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db) // still pending

	_, err := svc.UpdateCashPayoutStatus(context.Background(), "admin_1", UpdatePayoutStatusInput{
		BetaTestID: "bt_1", ApplicantUserID: "tester_1", NextStatus: PayoutPaid,
	})
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
}

func TestBackfillBreakdown(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db, func(app *Application) {
		app.Status = ApplicationAccepted
	})
	ctx := context.Background()

	app, err := svc.BackfillBreakdown(ctx, "admin_1", "bt_1", "tester_1")
	require.NoError(t, err)
	require.Equal(t, int64(25000), app.PayoutGrossMinor)
	require.Equal(t, int64(1250), app.PayoutFeeMinor)
	require.Equal(t, int64(23750), app.PayoutNetMinor)
	require.Equal(t, PayoutPending, app.PayoutStatus)

	var audits []PayoutAuditLog
	require.NoError(t, db.Find(&audits).Error)
	require.Len(t, audits, 1)

	// a second backfill must not overwrite the snapshot
	_, err = svc.BackfillBreakdown(ctx, "admin_1", "bt_1", "tester_1")
	requireStatus(t, err, errutil.StatusConflict)
}

func TestListAuditLogNewestFirst(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedBetaTest(t, db)
	seedApplication(t, db, func(app *Application) {
		app.Status = ApplicationAccepted
		app.PayoutStatus = PayoutPending
	})
	ctx := context.Background()

	for _, next := range []PayoutStatus{PayoutFailed, PayoutPending, PayoutPaid} {
		_, err := svc.UpdateCashPayoutStatus(ctx, "admin_1", UpdatePayoutStatusInput{
			BetaTestID:      "bt_1",
			ApplicantUserID: "tester_1",
			NextStatus:      next,
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond) // distinct created_at for ordering
	}

	rows, err := svc.ListAuditLog(ctx, "admin_1", "bt_1", "tester_1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, PayoutPaid, rows[0].NextStatus)
	require.Equal(t, PayoutPending, rows[1].NextStatus)

	_, err = svc.ListAuditLog(ctx, "creator_1", "bt_1", "tester_1", 0)
	requireStatus(t, err, errutil.StatusForbidden)
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()

	require.Error(t, err)
	be, ok := err.(errutil.BaseError)
	require.True(t, ok, "expected BaseError, got %T: %v", err, err)
	require.Equal(t, want, be.Status())
}
