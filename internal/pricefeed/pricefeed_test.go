package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClientGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") != "GLOBAL_QUOTE" || r.URL.Query().Get("apikey") != "secret" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		switch r.URL.Query().Get("symbol") {
		case "XLM":
			w.Write([]byte(`{"Global Quote": {"01. symbol": "XLM", "05. price": "0.1234"}}`))
		case "BAD":
			w.Write([]byte(`{"Global Quote": {"01. symbol": "BAD", "05. price": "-1"}}`))
		case "DOWN":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte(`{"Global Quote": {}}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	ctx := context.Background()

	q, err := client.GetPrice(ctx, "XLM")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("0.1234")) || q.Asset != "XLM" {
		t.Errorf("unexpected quote %+v", q)
	}

	if _, err := client.GetPrice(ctx, "NOPE"); !errors.Is(err, ErrPriceNotFound) {
		t.Errorf("expected price not found, got %v", err)
	}
	if _, err := client.GetPrice(ctx, "BAD"); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected invalid price, got %v", err)
	}
	if _, err := client.GetPrice(ctx, "DOWN"); err == nil {
		t.Errorf("expected error for non-200 response")
	}
}

type countingFeed struct {
	calls atomic.Int32
	feed  Feed
}

func (c *countingFeed) GetPrice(ctx context.Context, asset string) (*Quote, error) {
	c.calls.Add(1)
	return c.feed.GetPrice(ctx, asset)
}

func TestCachedFeed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	static := NewStaticFeed(clock)
	if err := static.Set("XLM", decimal.NewFromFloat(0.1)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	counter := &countingFeed{feed: static}
	cached := NewCachedFeed(counter, NewMemoryCache(time.Minute, clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.GetPrice(ctx, "XLM"); err != nil {
			t.Fatalf("GetPrice failed: %v", err)
		}
	}
	if n := counter.calls.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1", n)
	}

	now = now.Add(2 * time.Minute)
	if _, err := cached.GetPrice(ctx, "XLM"); err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if n := counter.calls.Load(); n != 2 {
		t.Errorf("expired entry not refreshed, %d calls", n)
	}

	if _, err := cached.GetPrice(ctx, "BTC"); !errors.Is(err, ErrPriceNotFound) {
		t.Errorf("expected price not found, got %v", err)
	}
}

func TestCheckFresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	q := &Quote{Asset: "XLM", Price: decimal.NewFromInt(1), UpdatedAt: now.Add(-30 * time.Minute)}

	if err := CheckFresh(q, now, DefaultMaxStaleness); err != nil {
		t.Errorf("fresh quote rejected: %v", err)
	}
	if err := CheckFresh(q, now.Add(time.Hour), DefaultMaxStaleness); !errors.Is(err, ErrStalePrice) {
		t.Errorf("expected stale, got %v", err)
	}
	q.UpdatedAt = now.Add(time.Minute)
	if err := CheckFresh(q, now, DefaultMaxStaleness); !errors.Is(err, ErrStalePrice) {
		t.Errorf("future quote: expected stale, got %v", err)
	}
	if err := NewStaticFeed(nil).Set("XLM", decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected invalid price, got %v", err)
	}
}
