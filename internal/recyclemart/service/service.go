package service

import (
	"context"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/repository"
	"go.uber.org/zap"
)

// WasteService runs the waste lifecycle: intake, assessment, marshal
// deliveries and the per-user credit ledger
type WasteService struct {
	repo    repository.Repository
	pricing PricingPolicy
	ledger  LedgerPolicy
	feed    changefeed.Publisher
	cache   *ProjectionCache
	log     *zap.Logger
	now     func() time.Time
}

// NewWasteService creates a new waste service. feed and cache may be nil.
func NewWasteService(
	repo repository.Repository,
	pricing PricingPolicy,
	ledger LedgerPolicy,
	feed changefeed.Publisher,
	cache *ProjectionCache,
	log *zap.Logger,
) *WasteService {
	return &WasteService{
		repo:    repo,
		pricing: pricing,
		ledger:  ledger,
		feed:    feed,
		cache:   cache,
		log:     log.With(zap.String("component", "waste_service")),
		now:     time.Now,
	}
}

// authorize checks that actor is authenticated and holds one of roles
func authorize(actor models.Actor, action string, roles ...models.Role) error {
	if !actor.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if !actor.Is(roles...) {
		return apperr.Forbidden(action)
	}
	return nil
}

// publish emits a change event. The mutation is already committed, so a
// failure only delays invalidation until the next polling refresh.
func (s *WasteService) publish(ctx context.Context, ev changefeed.Event) {
	if s.feed == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.feed.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("failed to publish change event",
			zap.String("table", ev.Table),
			zap.String("record_id", ev.RecordID.String()),
			zap.Error(err),
		)
	}
}
