package credit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clawplay/platform/internal/model"
	"github.com/clawplay/platform/internal/ratelimit"
)

// fakeStore mimics the durable store's contract: account rows materialize on
// first mutation, each mutation adjusts balance/totals and appends exactly one
// transaction as a single unit.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*model.CreditAccount
	txs      []model.CreditTransaction
	calls    int
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]*model.CreditAccount)}
}

func (f *fakeStore) apply(userID string, amount int64, typ model.TransactionType, source string, detail map[string]any, agentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failWith != nil {
		return 0, f.failWith
	}

	acc, ok := f.accounts[userID]
	if !ok {
		acc = &model.CreditAccount{UserID: userID}
		f.accounts[userID] = acc
	}
	acc.Balance += amount
	acc.TotalEarned += amount

	raw, _ := json.Marshal(detail)
	var agent *string
	if agentID != "" {
		agent = &agentID
	}
	f.txs = append(f.txs, model.CreditTransaction{
		UserID:       userID,
		Amount:       amount,
		Type:         typ,
		Source:       source,
		SourceDetail: raw,
		AgentID:      agent,
	})
	return acc.Balance, nil
}

func (f *fakeStore) EarnCredit(_ context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error) {
	return f.apply(userID, amount, model.TxEarn, source, detail, agentID)
}

func (f *fakeStore) GrantBonusCredit(_ context.Context, userID string, amount int64, source string, detail map[string]any, agentID string) (int64, error) {
	return f.apply(userID, amount, model.TxBonus, source, detail, agentID)
}

func (f *fakeStore) GetAccount(_ context.Context, userID string) (*model.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	acc, ok := f.accounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeStore) txsFor(userID string) []model.CreditTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CreditTransaction
	for _, tx := range f.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func newTestService(store *fakeStore) *Service {
	awards := map[string]int64{"xtrade": 1, "avalon": 1}
	return New(store, ratelimit.New(), awards, nil, nil)
}

func TestEarnPassiveCredit_ThrottledWithinWindow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	bal, ok := svc.EarnPassiveCredit(ctx, "owner-1", "xtrade", "agent-1")
	if !ok {
		t.Fatalf("first passive earn should succeed")
	}
	if bal != 1 {
		t.Fatalf("balance = %d, want 1", bal)
	}

	if _, ok := svc.EarnPassiveCredit(ctx, "owner-1", "xtrade", "agent-1"); ok {
		t.Fatalf("second passive earn within the window should be a no-op")
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1 (throttle must short-circuit)", store.calls)
	}
}

func TestEarnPassiveCredit_PerAppAndPerOwnerWindows(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, ok := svc.EarnPassiveCredit(ctx, "owner-1", "xtrade", "agent-1"); !ok {
		t.Fatalf("owner-1/xtrade should earn")
	}
	if _, ok := svc.EarnPassiveCredit(ctx, "owner-1", "avalon", "agent-1"); !ok {
		t.Fatalf("a different app has its own window")
	}
	if _, ok := svc.EarnPassiveCredit(ctx, "owner-2", "xtrade", "agent-2"); !ok {
		t.Fatalf("a different owner has its own window")
	}
}

func TestEarnPassiveCredit_UnknownAppNeverHitsStore(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store)

	for i := 0; i < 3; i++ {
		if _, ok := svc.EarnPassiveCredit(context.Background(), "owner-1", "unknown-app", "agent-1"); ok {
			t.Fatalf("unknown app must never earn")
		}
	}
	if store.calls != 0 {
		t.Fatalf("store calls = %d, want 0", store.calls)
	}
}

func TestEarnPassiveCredit_StoreFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failWith = errors.New("store down")
	svc := newTestService(store)

	if _, ok := svc.EarnPassiveCredit(context.Background(), "owner-1", "xtrade", "agent-1"); ok {
		t.Fatalf("store failure should yield ok=false")
	}
}

func TestGrantBonusCredit_FreshOwner(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store)

	bal, err := svc.GrantBonusCredit(context.Background(), "owner-1", 500, "partner-x", "promo", nil, "agent-1")
	if err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if bal != 500 {
		t.Fatalf("balance = %d, want 500", bal)
	}

	txs := store.txsFor("owner-1")
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].Type != model.TxBonus || txs[0].Amount != 500 {
		t.Fatalf("transaction = %s/%d, want bonus/500", txs[0].Type, txs[0].Amount)
	}

	var detail map[string]any
	if err := json.Unmarshal(txs[0].SourceDetail, &detail); err != nil {
		t.Fatalf("bad detail json: %v", err)
	}
	if detail["reason"] != "promo" {
		t.Fatalf("detail reason = %v, want promo", detail["reason"])
	}
}

func TestGrantBonusCredit_ValidationAndPropagation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.GrantBonusCredit(ctx, "owner-1", 0, "partner-x", "promo", nil, ""); err == nil {
		t.Fatalf("zero amount should be rejected")
	}
	if _, err := svc.GrantBonusCredit(ctx, "owner-1", 10, "partner-x", "", nil, ""); err == nil {
		t.Fatalf("empty reason should be rejected")
	}
	if store.calls != 0 {
		t.Fatalf("invalid grants must not reach the store")
	}

	store.failWith = errors.New("store down")
	if _, err := svc.GrantBonusCredit(ctx, "owner-1", 10, "partner-x", "promo", nil, ""); err == nil {
		t.Fatalf("store failure must propagate")
	}
}

func TestBalance_ZeroForFreshOwner(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore())

	bal, err := svc.Balance(context.Background(), "owner-without-account")
	if err != nil {
		t.Fatalf("fresh owner balance should not error: %v", err)
	}
	if bal.Balance != 0 || bal.TotalEarned != 0 || bal.TotalSpent != 0 {
		t.Fatalf("fresh owner balance = %+v, want zeros", bal)
	}
}

func TestBalance_InfrastructureFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failWith = errors.New("store down")
	svc := newTestService(store)

	if _, err := svc.Balance(context.Background(), "owner-1"); err == nil {
		t.Fatalf("infrastructure failure must be distinguishable from zero balance")
	}
}

// gatedPublisher blocks every publish until release is closed, to observe
// whether callers wait on the event stream.
type gatedPublisher struct {
	release chan struct{}
	events  chan model.CreditEvent
}

func (p *gatedPublisher) PublishCreditEvent(_ context.Context, ev model.CreditEvent) error {
	<-p.release
	p.events <- ev
	return nil
}

func TestGrantBonusCredit_PublishDoesNotBlockCaller(t *testing.T) {
	t.Parallel()

	pub := &gatedPublisher{release: make(chan struct{}), events: make(chan model.CreditEvent, 1)}
	store := newFakeStore()
	svc := New(store, ratelimit.New(), map[string]int64{"xtrade": 1}, pub, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.GrantBonusCredit(context.Background(), "owner-1", 100, "partner-x", "promo", nil, ""); err != nil {
			t.Errorf("grant failed: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("grant blocked on the event publish")
	}

	close(pub.release)
	select {
	case ev := <-pub.events:
		if ev.Type != model.TxBonus || ev.Amount != 100 || ev.NewBalance != 100 {
			t.Fatalf("event = %+v, want bonus/100/balance 100", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("credit event was never published")
	}
}

func TestLedger_TransactionSumMatchesBalance(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	svc.EarnPassiveCredit(ctx, "owner-1", "xtrade", "agent-1")
	if _, err := svc.GrantBonusCredit(ctx, "owner-1", 250, "partner-x", "promo", nil, ""); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if _, err := svc.GrantBonusCredit(ctx, "owner-1", 49, "avalon", "quest reward", map[string]any{"quest": "q-7"}, "agent-1"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	var sum int64
	for _, tx := range store.txsFor("owner-1") {
		sum += tx.Amount
	}

	bal, err := svc.Balance(ctx, "owner-1")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if sum != bal.Balance {
		t.Fatalf("transaction sum %d != balance %d", sum, bal.Balance)
	}
}
