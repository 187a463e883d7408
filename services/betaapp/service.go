package betaapp

import (
	"context"
	"fmt"
	"time"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/db"
	"betabay-platform/pkg/db/option"
	"betabay-platform/pkg/errutil"
	"betabay-platform/pkg/repository"
	"betabay-platform/services/payout"
	"betabay-platform/services/rewardpool"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxPayoutNoteLen bounds admin notes on payout transitions.
const maxPayoutNoteLen = 300

// Notifier raises and resolves deduplicated operational alerts.
type Notifier interface {
	Upsert(ctx context.Context, dedupeKey, level, title, message string, metadata map[string]any)
	Resolve(ctx context.Context, dedupeKey string)
}

// Service owns tester applications: acceptance (gated on pool funding for
// cash listings) and the admin-driven cash payout state machine.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	cfg      *config.Config
	notifier Notifier
	apps     repository.Repository[Application]
	audits   repository.Repository[PayoutAuditLog]
	tests    repository.Repository[rewardpool.BetaTest]
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Notifier Notifier
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		cfg:      p.Config,
		notifier: p.Notifier,
		apps:     repository.ProvideStore[Application](p.DB),
		audits:   repository.ProvideStore[PayoutAuditLog](p.DB),
		tests:    repository.ProvideStore[rewardpool.BetaTest](p.DB),
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

// ApproveResult is an accepted application plus a flag telling the client
// that payout tracking columns were unavailable and only the acceptance
// itself was persisted.
type ApproveResult struct {
	Application            *Application `json:"application"`
	DegradedPayoutTracking bool         `json:"degradedPayoutTracking,omitempty"`
}

// ApproveApplication accepts a tester. For cash listings that require a
// pool, acceptance is refused until the pool is funded: approving a tester
// is a payout promise, and promises against an unfunded pool become support
// tickets. The fee breakdown is snapshotted here, exactly once.
func (s *Service) ApproveApplication(ctx context.Context, callerID, betaTestID, applicantID string) (*ApproveResult, error) {
	test, err := s.tests.FindOne(ctx, &rewardpool.BetaTest{ID: betaTestID})
	if err != nil {
		return nil, errutil.Internal("failed to load beta test", err)
	}
	if test == nil {
		return nil, errutil.NotFound("beta test not found", nil)
	}
	if test.CreatorID != callerID {
		return nil, errutil.Forbidden("only the listing creator can approve applications", nil)
	}

	app, err := s.apps.FindOne(ctx, &Application{BetaTestID: betaTestID, ApplicantUserID: applicantID})
	if err != nil {
		return nil, errutil.Internal("failed to load application", err)
	}
	if app == nil {
		return nil, errutil.NotFound("application not found", nil)
	}
	if app.Status == ApplicationAccepted {
		return &ApproveResult{Application: app}, nil
	}

	cash := test.RewardType == rewardpool.RewardCash
	if cash && test.RewardPoolTotalMinor > 0 && test.RewardPoolStatus != rewardpool.PoolFunded {
		return nil, errutil.UnprocessableEntity(
			"reward pool must be fully funded before approving testers", nil)
	}

	updates := map[string]any{
		"status":     ApplicationAccepted,
		"updated_at": time.Now(),
	}
	if cash {
		breakdown := payout.Calculate(test.RewardAmountMinor)
		updates["payout_status"] = PayoutPending
		updates["payout_gross_minor"] = breakdown.GrossMinor
		updates["payout_fee_minor"] = breakdown.FeeMinor
		updates["payout_net_minor"] = breakdown.NetMinor
	}

	degraded := false
	if err := s.apps.Update(ctx, app.ID, updates); err != nil {
		if !cash || !db.IsUndefinedColumn(err) {
			return nil, errutil.Internal("failed to accept application", err)
		}

		// payout columns have not been migrated yet; accept the tester and
		// leave payout tracking to a later backfill
		zap.L().Warn("payout columns unavailable, accepting without payout tracking",
			zap.String("beta_test_id", betaTestID),
			zap.String("applicant_user_id", applicantID),
			zap.Error(err),
		)
		degraded = true

		err = s.apps.Update(ctx, app.ID, map[string]any{
			"status":     ApplicationAccepted,
			"updated_at": time.Now(),
		})
		if err != nil {
			return nil, errutil.Internal("failed to accept application", err)
		}
	}

	updated, err := s.apps.FindOne(ctx, &Application{ID: app.ID})
	if err != nil {
		return nil, errutil.Internal("failed to reload application", err)
	}

	zap.L().Info("application approved",
		zap.String("beta_test_id", betaTestID),
		zap.String("applicant_user_id", applicantID),
		zap.Bool("degraded", degraded),
	)

	return &ApproveResult{Application: updated, DegradedPayoutTracking: degraded}, nil
}

// UpdatePayoutStatusInput is an admin request to move a tester's payout.
type UpdatePayoutStatusInput struct {
	BetaTestID      string       `json:"betaTestId" binding:"required"`
	ApplicantUserID string       `json:"applicantUserId" binding:"required"`
	NextStatus      PayoutStatus `json:"nextStatus" binding:"required"`
	Note            string       `json:"note"`
}

// PayoutUpdateResult reports the transition that was applied.
type PayoutUpdateResult struct {
	Application    *Application `json:"application"`
	PreviousStatus PayoutStatus `json:"previousStatus"`
	Changed        bool         `json:"changed"`
}

// UpdateCashPayoutStatus applies an admin payout transition. Every call that
// writes, including a no-op to the same status, appends an audit row: the
// audit trail answers "who touched this payout and when", not just "what
// changed". Alerts fire on transitions into failed and clear on recovery.
func (s *Service) UpdateCashPayoutStatus(ctx context.Context, adminID string, in UpdatePayoutStatusInput) (*PayoutUpdateResult, error) {
	span := trace.SpanFromContext(ctx)

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("beta_test_id", in.BetaTestID),
		zap.String("applicant_user_id", in.ApplicantUserID),
	}

	if !s.isAdmin(adminID) {
		return nil, errutil.Forbidden("payout administration is restricted", nil)
	}
	if !ValidPayoutStatus(in.NextStatus) {
		return nil, errutil.BadRequest(fmt.Sprintf("invalid payout status %q", in.NextStatus), nil)
	}
	if len(in.Note) > maxPayoutNoteLen {
		return nil, errutil.BadRequest("payout note exceeds 300 characters", nil)
	}

	test, err := s.tests.FindOne(ctx, &rewardpool.BetaTest{ID: in.BetaTestID})
	if err != nil {
		return nil, errutil.Internal("failed to load beta test", err)
	}
	if test == nil {
		return nil, errutil.NotFound("beta test not found", nil)
	}
	if test.RewardType != rewardpool.RewardCash {
		return nil, errutil.BadRequest("payout tracking applies to cash rewards only", nil)
	}

	app, err := s.apps.FindOne(ctx, &Application{BetaTestID: in.BetaTestID, ApplicantUserID: in.ApplicantUserID})
	if err != nil {
		return nil, errutil.Internal("failed to load application", err)
	}
	if app == nil {
		return nil, errutil.NotFound("application not found", nil)
	}
	if app.Status != ApplicationAccepted {
		return nil, errutil.UnprocessableEntity("payouts apply to accepted testers only", nil)
	}

	prev := app.PayoutStatus
	if prev == "" {
		prev = PayoutPending
	}

	updates := map[string]any{
		"payout_status": in.NextStatus,
		"payout_note":   in.Note,
		"updated_at":    time.Now(),
	}
	if in.NextStatus == PayoutPaid {
		updates["payout_paid_at"] = time.Now()
	} else {
		updates["payout_paid_at"] = nil
	}

	if err := s.apps.Update(ctx, app.ID, updates); err != nil {
		if db.IsUndefinedColumn(err) {
			return nil, errutil.UnprocessableEntity(
				"payout tracking is unavailable until the payout columns are migrated", err)
		}
		return nil, errutil.Internal("failed to update payout status", err)
	}

	// The business write is committed; the audit append must not undo it.
	// A lost audit row is logged loudly instead.
	s.appendAudit(ctx, &PayoutAuditLog{
		BetaTestID:      in.BetaTestID,
		ApplicantUserID: in.ApplicantUserID,
		PreviousStatus:  prev,
		NextStatus:      in.NextStatus,
		Note:            in.Note,
		AdminUserID:     adminID,
	})

	changed := prev != in.NextStatus
	if changed {
		key := fmt.Sprintf("payout-failed:%s:%s", in.BetaTestID, in.ApplicantUserID)
		switch {
		case in.NextStatus == PayoutFailed:
			s.notifier.Upsert(ctx, key, "critical", "Cash payout failed",
				fmt.Sprintf("payout for tester %s on beta test %s marked failed", in.ApplicantUserID, in.BetaTestID),
				map[string]any{
					"beta_test_id":      in.BetaTestID,
					"applicant_user_id": in.ApplicantUserID,
					"note":              in.Note,
				})
		case prev == PayoutFailed:
			s.notifier.Resolve(ctx, key)
		}
	}

	updated, err := s.apps.FindOne(ctx, &Application{ID: app.ID})
	if err != nil {
		return nil, errutil.Internal("failed to reload application", err)
	}

	zap.L().With(opts...).Info("payout status updated",
		zap.String("previous_status", string(prev)),
		zap.String("next_status", string(in.NextStatus)),
		zap.String("admin_user_id", adminID),
	)

	return &PayoutUpdateResult{Application: updated, PreviousStatus: prev, Changed: changed}, nil
}

// BackfillBreakdown recomputes the fee breakdown for an accepted tester that
// was approved while payout columns were missing. It is an explicit, audited
// admin action rather than a silent lazy fill.
func (s *Service) BackfillBreakdown(ctx context.Context, adminID, betaTestID, applicantID string) (*Application, error) {
	if !s.isAdmin(adminID) {
		return nil, errutil.Forbidden("payout administration is restricted", nil)
	}

	test, err := s.tests.FindOne(ctx, &rewardpool.BetaTest{ID: betaTestID})
	if err != nil {
		return nil, errutil.Internal("failed to load beta test", err)
	}
	if test == nil {
		return nil, errutil.NotFound("beta test not found", nil)
	}
	if test.RewardType != rewardpool.RewardCash {
		return nil, errutil.BadRequest("payout tracking applies to cash rewards only", nil)
	}

	app, err := s.apps.FindOne(ctx, &Application{BetaTestID: betaTestID, ApplicantUserID: applicantID})
	if err != nil {
		return nil, errutil.Internal("failed to load application", err)
	}
	if app == nil {
		return nil, errutil.NotFound("application not found", nil)
	}
	if app.Status != ApplicationAccepted {
		return nil, errutil.UnprocessableEntity("payouts apply to accepted testers only", nil)
	}
	if app.PayoutGrossMinor != 0 {
		return nil, errutil.Conflict("payout breakdown is already recorded", nil)
	}

	breakdown := payout.Calculate(test.RewardAmountMinor)

	status := app.PayoutStatus
	if status == "" {
		status = PayoutPending
	}

	err = s.apps.Update(ctx, app.ID, map[string]any{
		"payout_status":      status,
		"payout_gross_minor": breakdown.GrossMinor,
		"payout_fee_minor":   breakdown.FeeMinor,
		"payout_net_minor":   breakdown.NetMinor,
		"updated_at":         time.Now(),
	})
	if err != nil {
		if db.IsUndefinedColumn(err) {
			return nil, errutil.UnprocessableEntity(
				"payout tracking is unavailable until the payout columns are migrated", err)
		}
		return nil, errutil.Internal("failed to backfill payout breakdown", err)
	}

	s.appendAudit(ctx, &PayoutAuditLog{
		BetaTestID:      betaTestID,
		ApplicantUserID: applicantID,
		PreviousStatus:  status,
		NextStatus:      status,
		Note:            "payout breakdown backfill",
		AdminUserID:     adminID,
	})

	return s.apps.FindOne(ctx, &Application{ID: app.ID})
}

// ListAuditLog returns the payout audit trail for one application, newest
// first. The trail is the source of truth for disputes, so it is exposed
// read-only to admins.
func (s *Service) ListAuditLog(ctx context.Context, adminID, betaTestID, applicantID string, limit int) ([]*PayoutAuditLog, error) {
	if !s.isAdmin(adminID) {
		return nil, errutil.Forbidden("payout administration is restricted", nil)
	}

	rows, err := s.audits.Find(ctx,
		&PayoutAuditLog{BetaTestID: betaTestID, ApplicantUserID: applicantID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, errutil.Internal("failed to query payout audit log", err)
	}

	return rows, nil
}

func (s *Service) appendAudit(ctx context.Context, row *PayoutAuditLog) {
	row.ID = s.node.Generate().String()
	row.CreatedAt = time.Now()

	if err := s.audits.Create(ctx, row); err != nil {
		zap.L().Error("failed to append payout audit log",
			zap.String("beta_test_id", row.BetaTestID),
			zap.String("applicant_user_id", row.ApplicantUserID),
			zap.String("next_status", string(row.NextStatus)),
			zap.Error(err),
		)
	}
}
