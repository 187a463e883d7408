package alert

import (
	"context"
	"encoding/json"
	"time"

	"betabay-platform/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service raises and resolves deduplicated operational alerts. All methods
// are fire and forget: alerting is observability, and an alert-store outage
// must never fail the business write that triggered it.
type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	alerts repository.Repository[Alert]
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

var Module = fx.Module("alert.service",
	fx.Provide(NewService),
)

func NewService(p Params) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		alerts: repository.ProvideStore[Alert](p.DB),
	}
}

// Upsert raises or refreshes the alert identified by dedupeKey. Raising an
// already-open alert updates its message and metadata in place; raising a
// previously resolved alert reopens it.
func (s *Service) Upsert(ctx context.Context, dedupeKey, level, title, message string, metadata map[string]any) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		raw = []byte("{}")
	}

	existing, err := s.alerts.FindOne(ctx, &Alert{DedupeKey: dedupeKey})
	if err != nil {
		zap.L().Error("failed to look up alert",
			zap.String("dedupe_key", dedupeKey),
			zap.Error(err),
		)
		return
	}

	now := time.Now()

	if existing == nil {
		err = s.alerts.Create(ctx, &Alert{
			ID:        s.node.Generate().String(),
			DedupeKey: dedupeKey,
			Level:     level,
			Title:     title,
			Message:   message,
			Metadata:  raw,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			zap.L().Error("failed to create alert",
				zap.String("dedupe_key", dedupeKey),
				zap.Error(err),
			)
		}
		return
	}

	err = s.alerts.Update(ctx, existing.ID, map[string]any{
		"level":       level,
		"title":       title,
		"message":     message,
		"metadata":    raw,
		"resolved_at": nil,
		"updated_at":  now,
	})
	if err != nil {
		zap.L().Error("failed to update alert",
			zap.String("dedupe_key", dedupeKey),
			zap.Error(err),
		)
	}
}

// Resolve closes the open alert identified by dedupeKey, if any.
func (s *Service) Resolve(ctx context.Context, dedupeKey string) {
	now := time.Now()

	err := s.db.WithContext(ctx).
		Model(&Alert{}).
		Where("dedupe_key = ? AND resolved_at IS NULL", dedupeKey).
		Updates(map[string]any{
			"resolved_at": now,
			"updated_at":  now,
		}).Error
	if err != nil {
		zap.L().Error("failed to resolve alert",
			zap.String("dedupe_key", dedupeKey),
			zap.Error(err),
		)
	}
}
