package politeness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func robotsServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()

	var robotsFetches int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			mu.Lock()
			robotsFetches++
			mu.Unlock()
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestCheckerAllowed tests allow/deny evaluation per mode.
func TestCheckerAllowed(t *testing.T) {
	t.Parallel()

	robots := "User-agent: *\nDisallow: /private/\nCrawl-delay: 2\nSitemap: https://docs.example.com/sitemap.xml\n"

	t.Run("enforce mode blocks disallowed paths", func(t *testing.T) {
		t.Parallel()

		srv := robotsServer(t, robots, http.StatusOK)
		c := New(srv.Client(), WithMode(ModeEnforce))

		allowed, err := c.Allowed(context.Background(), srv.URL+"/docs/intro")
		if err != nil || !allowed {
			t.Errorf("public path: allowed=%v err=%v, want true", allowed, err)
		}

		allowed, err = c.Allowed(context.Background(), srv.URL+"/private/keys")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if allowed {
			t.Error("disallowed path should be blocked in enforce mode")
		}
	})

	t.Run("warn mode allows with a log", func(t *testing.T) {
		t.Parallel()

		srv := robotsServer(t, robots, http.StatusOK)
		c := New(srv.Client(), WithMode(ModeWarn))

		allowed, err := c.Allowed(context.Background(), srv.URL+"/private/keys")
		if err != nil || !allowed {
			t.Errorf("warn mode: allowed=%v err=%v, want true", allowed, err)
		}
	})

	t.Run("strict mode returns ErrDisallowed", func(t *testing.T) {
		t.Parallel()

		srv := robotsServer(t, robots, http.StatusOK)
		c := New(srv.Client(), WithMode(ModeStrict))

		allowed, err := c.Allowed(context.Background(), srv.URL+"/private/keys")
		if allowed || err == nil {
			t.Errorf("strict mode: allowed=%v err=%v, want false with error", allowed, err)
		}
	})

	t.Run("off mode never fetches robots", func(t *testing.T) {
		t.Parallel()

		c := New(http.DefaultClient, WithMode(ModeOff))
		allowed, err := c.Allowed(context.Background(), "https://unreachable.invalid/private")
		if err != nil || !allowed {
			t.Errorf("off mode: allowed=%v err=%v, want true without network", allowed, err)
		}
	})
}

// TestChecker404AllowsAll tests that a missing robots.txt means allow.
func TestChecker404AllowsAll(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, "", http.StatusNotFound)
	c := New(srv.Client(), WithMode(ModeEnforce))

	allowed, err := c.Allowed(context.Background(), srv.URL+"/anything")
	if err != nil || !allowed {
		t.Errorf("404 robots: allowed=%v err=%v, want true", allowed, err)
	}
}

// TestCheckerFailsOpen tests that unreachable robots.txt allows all
// outside strict mode.
func TestCheckerFailsOpen(t *testing.T) {
	t.Parallel()

	c := New(&http.Client{Timeout: 100 * time.Millisecond}, WithMode(ModeEnforce))
	allowed, err := c.Allowed(context.Background(), "http://127.0.0.1:1/page")
	if err != nil || !allowed {
		t.Errorf("unreachable robots: allowed=%v err=%v, want fail-open", allowed, err)
	}
}

// TestCrawlDelayAndSitemaps tests directive extraction after Init.
func TestCrawlDelayAndSitemaps(t *testing.T) {
	t.Parallel()

	robots := "User-agent: *\nCrawl-delay: 2\nSitemap: https://docs.example.com/sitemap.xml\n"
	srv := robotsServer(t, robots, http.StatusOK)

	c := New(srv.Client(), WithMode(ModeEnforce))
	if err := c.Init(context.Background(), srv.URL); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if got := c.CrawlDelay(srv.URL + "/docs"); got != 2*time.Second {
		t.Errorf("CrawlDelay = %v, want 2s", got)
	}
	sitemaps := c.SitemapURLs(srv.URL)
	if len(sitemaps) != 1 || sitemaps[0] != "https://docs.example.com/sitemap.xml" {
		t.Errorf("SitemapURLs = %v", sitemaps)
	}
}

// memStore is an in-memory Store for cache tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) SaveRobotsPolicy(_ context.Context, domain string, policyJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[domain] = policyJSON
	return nil
}

func (m *memStore) LoadRobotsPolicy(_ context.Context, domain string) ([]byte, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.data[domain]; ok {
		return data, time.Now(), nil
	}
	return nil, time.Time{}, context.Canceled
}

// TestCheckerStore tests that policies round-trip through the store.
func TestCheckerStore(t *testing.T) {
	t.Parallel()

	robots := "User-agent: *\nDisallow: /private/\n"
	srv := robotsServer(t, robots, http.StatusOK)
	store := &memStore{}

	c1 := New(srv.Client(), WithStore(store))
	if _, err := c1.Allowed(context.Background(), srv.URL+"/docs"); err != nil {
		t.Fatalf("first checker: %v", err)
	}

	// A fresh checker with the same store must answer from cache even
	// when the origin is gone.
	host := srv.URL
	srv.Close()

	c2 := New(&http.Client{Timeout: 100 * time.Millisecond}, WithStore(store))
	allowed, err := c2.Allowed(context.Background(), host+"/private/secret")
	if err != nil {
		t.Fatalf("cached checker: %v", err)
	}
	if allowed {
		t.Error("cached policy should still disallow /private/")
	}
}

// TestParseMode tests mode string parsing.
func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"off", "warn", "enforce", "strict", "STRICT"} {
		if _, err := ParseMode(valid); err != nil {
			t.Errorf("ParseMode(%q) failed: %v", valid, err)
		}
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// TestPolicyStaleness tests the TTL boundary.
func TestPolicyStaleness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := &Policy{FetchedAt: now.Add(-25 * time.Hour)}
	if !p.IsStale(now, 0) {
		t.Error("25h old policy should be stale at the default TTL")
	}
	p.FetchedAt = now.Add(-23 * time.Hour)
	if p.IsStale(now, 0) {
		t.Error("23h old policy should be fresh at the default TTL")
	}
}
