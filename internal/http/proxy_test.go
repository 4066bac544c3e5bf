package http

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clawplay/platform/internal/credit"
	"github.com/clawplay/platform/internal/model"
	"github.com/clawplay/platform/internal/proxy"
	"github.com/clawplay/platform/internal/ratelimit"
	"github.com/clawplay/platform/internal/util"
	echo "github.com/labstack/echo/v4"
)

var proxyPublicPaths = []string{"instruments", "market", "orderbook", "health"}

func testUpstream(t *testing.T, hits *atomic.Int64) *proxy.Upstream {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(ts.Close)
	return proxy.NewUpstream(ts.URL, 2000, 3, 15000)
}

func proxyTestContext(method, path, token string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/v1/apps/xtrade/"+path, nil)
	if token != "" {
		req.Header.Set("X-Clawplay-Token", token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("*")
	c.SetParamValues(path)
	return c, rec
}

func TestXtradeProxy_PublicPathLimitedPerIP(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	up := testUpstream(t, &hits)
	svc := credit.New(&fakeCreditStore{}, ratelimit.New(), map[string]int64{"xtrade": 1}, nil, nil)
	h := xtradeProxyHandler(up, svc, &fakeAgents{}, ratelimit.New(), 2, proxyPublicPaths)

	for i := 0; i < 2; i++ {
		c, rec := proxyTestContext(http.MethodGet, "market/prices", "")
		if err := h(c); err != nil {
			t.Fatalf("handler err: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	c, rec := proxyTestContext(http.MethodGet, "market/prices", "")
	if err := h(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("429 response missing Retry-After header")
	}
	if hits.Load() != 2 {
		t.Fatalf("upstream hits = %d, want 2 (limited request must not be forwarded)", hits.Load())
	}
}

func TestXtradeProxy_AuthenticatedLimitedPerAgent(t *testing.T) {
	t.Parallel()

	token := "clawplay_test_token"
	agents := &fakeAgents{byHash: map[string]*model.Agent{
		util.HashToken(token): {ID: "agent-1", Name: "ada-trader", UserID: strptr("user-1")},
	}}

	var hits atomic.Int64
	up := testUpstream(t, &hits)
	svc := credit.New(&fakeCreditStore{}, ratelimit.New(), map[string]int64{"xtrade": 1}, nil, nil)
	h := xtradeProxyHandler(up, svc, agents, ratelimit.New(), 1, proxyPublicPaths)

	c, rec := proxyTestContext(http.MethodGet, "orders", token)
	if err := h(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	c, rec = proxyTestContext(http.MethodGet, "orders", token)
	if err := h(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	// private paths still refuse anonymous callers before any limit applies
	c, rec = proxyTestContext(http.MethodGet, "orders", "")
	if err := h(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestXtradeProxy_OnlyMutationsEarnCredit(t *testing.T) {
	t.Parallel()

	token := "clawplay_earn_token"
	agents := &fakeAgents{byHash: map[string]*model.Agent{
		util.HashToken(token): {ID: "agent-1", Name: "ada-trader", UserID: strptr("user-1")},
	}}

	store := &fakeCreditStore{earned: make(chan struct{}, 4)}
	var hits atomic.Int64
	up := testUpstream(t, &hits)
	svc := credit.New(store, ratelimit.New(), map[string]int64{"xtrade": 1}, nil, nil)
	h := xtradeProxyHandler(up, svc, agents, ratelimit.New(), 100, proxyPublicPaths)

	c, rec := proxyTestContext(http.MethodGet, "orders", token)
	if err := h(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	select {
	case <-store.earned:
		t.Fatalf("GET must not earn passive credit")
	case <-time.After(200 * time.Millisecond):
	}

	c, rec = proxyTestContext(http.MethodPost, "orders", token)
	if err := h(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	select {
	case <-store.earned:
	case <-time.After(2 * time.Second):
		t.Fatalf("POST should dispatch a passive earn")
	}
}
