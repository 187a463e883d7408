package abuseguard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"betabay-platform/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service throttles sensitive actions with sliding-window rate limits and
// per-scope cooldowns. It fails open: when the signal store is unavailable
// the guarded action proceeds, because blocking legitimate payment
// verification is worse than letting a burst through.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	signals repository.Repository[Signal]
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

var Module = fx.Module("abuseguard.service",
	fx.Provide(NewService),
)

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		signals: repository.ProvideStore[Signal](p.DB),
	}
}

// AllowRate reports whether userID may perform action under a sliding-window
// limit of max signals per window. An allowed call records a new signal.
func (s *Service) AllowRate(ctx context.Context, userID, action string, max int, window time.Duration) bool {
	feature := "rate-limit:" + action
	since := time.Now().Add(-window)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&Signal{}).
		Where("user_id = ? AND feature = ? AND created_at > ?", userID, feature, since).
		Count(&count).Error
	if err != nil {
		zap.L().Warn("abuse guard count failed, allowing",
			zap.String("user_id", userID),
			zap.String("feature", feature),
			zap.Error(err),
		)
		return true
	}

	if count >= int64(max) {
		zap.L().Warn("rate limit exceeded",
			zap.String("user_id", userID),
			zap.String("feature", feature),
			zap.Int64("count", count),
			zap.Int("max", max),
		)
		return false
	}

	s.record(ctx, userID, feature, map[string]any{
		"max":    max,
		"window": window.String(),
	})
	return true
}

// AllowCooldown reports whether userID may perform action against scope,
// enforcing at most one signal per cooldown period. The scope is typically
// the target resource, so retries against distinct resources are unaffected.
func (s *Service) AllowCooldown(ctx context.Context, userID, action, scope string, cooldown time.Duration) bool {
	feature := fmt.Sprintf("cooldown:%s:%s", action, scope)
	since := time.Now().Add(-cooldown)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&Signal{}).
		Where("user_id = ? AND feature = ? AND created_at > ?", userID, feature, since).
		Count(&count).Error
	if err != nil {
		zap.L().Warn("abuse guard count failed, allowing",
			zap.String("user_id", userID),
			zap.String("feature", feature),
			zap.Error(err),
		)
		return true
	}

	if count > 0 {
		return false
	}

	s.record(ctx, userID, feature, map[string]any{
		"cooldown": cooldown.String(),
	})
	return true
}

// record writes a signal best effort. A failed write degrades to allow, so
// the caller is never blocked on signal storage.
func (s *Service) record(ctx context.Context, userID, feature string, metadata map[string]any) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		raw = []byte("{}")
	}

	signal := &Signal{
		ID:        s.node.Generate().String(),
		UserID:    userID,
		Feature:   feature,
		Metadata:  raw,
		CreatedAt: time.Now(),
	}

	if err := s.signals.Create(ctx, signal); err != nil {
		zap.L().Warn("failed to record abuse signal",
			zap.String("user_id", userID),
			zap.String("feature", feature),
			zap.Error(err),
		)
	}
}
