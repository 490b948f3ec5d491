package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrPriceNotFound is returned when the feed has no price for an asset
	ErrPriceNotFound = errors.New("price not found")
	// ErrStalePrice is returned when a quote is older than the allowed age
	ErrStalePrice = errors.New("stale price")
	// ErrInvalidPrice is returned for negative or unparsable prices
	ErrInvalidPrice = errors.New("invalid price")
)

// DefaultMaxStaleness is how old a quote may be before it is rejected
const DefaultMaxStaleness = time.Hour

// Quote is the latest known price of an asset
type Quote struct {
	Asset     string          `json:"asset"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Feed supplies asset prices
type Feed interface {
	GetPrice(ctx context.Context, asset string) (*Quote, error)
}

// CheckFresh rejects quotes older than maxAge at now, or stamped in the future
func CheckFresh(q *Quote, now time.Time, maxAge time.Duration) error {
	if q.Price.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, q.Price)
	}
	if q.UpdatedAt.After(now) || now.Sub(q.UpdatedAt) > maxAge {
		return fmt.Errorf("%w: %s updated %s", ErrStalePrice, q.Asset, q.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// StaticFeed serves prices set in process. It backs the dev server when no
// price feed URL is configured.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]Quote
	now    func() time.Time
}

// NewStaticFeed returns an empty StaticFeed
func NewStaticFeed(now func() time.Time) *StaticFeed {
	if now == nil {
		now = time.Now
	}
	return &StaticFeed{prices: make(map[string]Quote), now: now}
}

// Set records price for asset, stamped with the current time
func (f *StaticFeed) Set(asset string, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[asset] = Quote{Asset: asset, Price: price, UpdatedAt: f.now()}
	return nil
}

func (f *StaticFeed) GetPrice(_ context.Context, asset string) (*Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.prices[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, asset)
	}
	return &q, nil
}
