// Package credit mediates all owner balance reads and mutations. The service
// itself is stateless; atomicity of every mutation is delegated to the durable
// store's earn_credit / grant_bonus_credit procedures, so it is safe to call
// concurrently without locks.
package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/clawplay/platform/internal/metrics"
	"github.com/clawplay/platform/internal/model"
	"github.com/clawplay/platform/internal/ratelimit"
	"github.com/clawplay/platform/internal/util"
	"go.uber.org/zap"
)

// PassiveWindow is the throttle window for passive earning: at most one award
// per (owner, app) pair per window.
const PassiveWindow = time.Minute

// Store is the durable-store contract. Both mutations must be genuine atomic
// transactions on the store side: upsert the account row, adjust balance and
// totals, and append exactly one transaction row as a single unit.
type Store interface {
	EarnCredit(ctx context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error)
	GrantBonusCredit(ctx context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error)
	// GetAccount returns nil, nil when no account row exists yet.
	GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error)
}

// Publisher emits credit events for downstream analytics. Optional.
type Publisher interface {
	PublishCreditEvent(ctx context.Context, ev model.CreditEvent) error
}

// Service is the credit ledger façade.
type Service struct {
	store   Store
	limiter *ratelimit.Limiter
	awards  map[string]int64 // app slug -> passive award per window
	events  Publisher        // nil disables event publishing
	log     *zap.Logger

	// DispatchTimeout bounds the store call made by DispatchPassiveEarn.
	DispatchTimeout time.Duration
}

// New constructs the service. awards is the single source of truth for which
// apps participate in passive earning; unknown slugs never earn.
func New(store Store, limiter *ratelimit.Limiter, awards map[string]int64, events Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:           store,
		limiter:         limiter,
		awards:          awards,
		events:          events,
		log:             log,
		DispatchTimeout: 5 * time.Second,
	}
}

// EarnPassiveCredit awards the configured amount for appSlug to the owner,
// at most once per owner+app per PassiveWindow. Returns (newBalance, true)
// on success. ok=false covers the expected no-op outcomes (unknown app,
// throttled) as well as store failure, which is logged and swallowed: passive
// earning is best-effort and must never fail a caller's primary request.
func (s *Service) EarnPassiveCredit(ctx context.Context, userID, appSlug, agentID string) (int64, bool) {
	amount, ok := s.awards[appSlug]
	if !ok || amount <= 0 {
		return 0, false
	}

	// Throttle before any durable call.
	key := "passive_credit:" + userID + ":" + appSlug
	if !s.limiter.Check(key, 1, PassiveWindow).Allowed {
		return 0, false
	}

	balance, err := s.store.EarnCredit(ctx, userID, amount, appSlug, map[string]any{"type": "passive_use"}, agentID)
	if err != nil {
		s.log.Error("earn_credit failed",
			zap.String("user_id", userID),
			zap.String("app", appSlug),
			zap.Int64("amount", amount),
			zap.Error(err))
		return 0, false
	}

	metrics.CreditsGrantedTotal.WithLabelValues(model.TxEarn.String(), appSlug).Add(float64(amount))
	s.publish(userID, amount, model.TxEarn, appSlug, agentID, balance)

	return balance, true
}

// DispatchPassiveEarn runs EarnPassiveCredit on a detached goroutine with its
// own timeout. Fire-and-forget: failures are logged inside the service and
// never surface to the caller's request path.
func (s *Service) DispatchPassiveEarn(userID, appSlug, agentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.DispatchTimeout)
		defer cancel()
		s.EarnPassiveCredit(ctx, userID, appSlug, agentID)
	}()
}

// GrantBonusCredit awards amount to the owner on behalf of a trusted caller,
// recording reason inside the transaction detail. No throttle is applied
// here; rate limiting bonus grants is the caller's responsibility at the
// request boundary. Store failure propagates to the caller.
func (s *Service) GrantBonusCredit(ctx context.Context, userID string, amount int64, source, reason string, detail map[string]any, agentID string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant bonus: non-positive amount %d", amount)
	}
	if reason == "" {
		return 0, fmt.Errorf("grant bonus: empty reason")
	}

	merged := map[string]any{"reason": reason}
	for k, v := range detail {
		if k == "reason" {
			continue
		}
		merged[k] = v
	}

	balance, err := s.store.GrantBonusCredit(ctx, userID, amount, source, merged, agentID)
	if err != nil {
		return 0, fmt.Errorf("grant_bonus_credit user=%s source=%s amount=%d: %w", userID, source, amount, err)
	}

	metrics.CreditsGrantedTotal.WithLabelValues(model.TxBonus.String(), source).Add(float64(amount))
	s.publish(userID, amount, model.TxBonus, source, agentID, balance)

	return balance, nil
}

// Balance reads the owner's account. An owner without an account row has an
// implicit zero balance; the row is materialized by the store on first
// mutation, never on read. Infrastructure failures return an error.
func (s *Service) Balance(ctx context.Context, userID string) (model.CreditBalance, error) {
	acc, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return model.CreditBalance{}, fmt.Errorf("get credit account user=%s: %w", userID, err)
	}
	if acc == nil {
		return model.CreditBalance{}, nil
	}
	return model.CreditBalance{
		Balance:     acc.Balance,
		TotalEarned: acc.TotalEarned,
		TotalSpent:  acc.TotalSpent,
	}, nil
}

// publish emits a credit event on a detached goroutine, best-effort. The
// mutation already succeeded by the time this runs, so a slow broker must not
// hold up the caller's response.
func (s *Service) publish(userID string, amount int64, typ model.TransactionType, source, agentID string, newBalance int64) {
	if s.events == nil {
		return
	}
	ev := model.CreditEvent{
		ID:         util.NewULID(),
		UserID:     userID,
		Amount:     amount,
		Type:       typ,
		Source:     source,
		AgentID:    agentID,
		NewBalance: newBalance,
		OccurredAt: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.events.PublishCreditEvent(ctx, ev); err != nil {
			s.log.Warn("credit event publish failed",
				zap.String("user_id", userID),
				zap.String("type", typ.String()),
				zap.Error(err))
		}
	}()
}
