package guard

import (
	"sync"
	"time"

	"github.com/epeers/commitvault/internal/errs"
	"github.com/epeers/commitvault/internal/util"
)

// Limit is a fixed-window quota for one function.
type Limit struct {
	Window   time.Duration
	MaxCalls uint32
}

type windowKey struct {
	caller   string
	function string
}

type window struct {
	start int64
	count uint32
}

// RateLimiter counts calls per caller+function in fixed windows.
// Functions without a configured limit are unrestricted.
type RateLimiter struct {
	mu     sync.Mutex
	clock  util.Clock
	limits map[string]Limit
	state  map[windowKey]window
	exempt map[string]bool
}

// NewRateLimiter returns a limiter with no limits configured.
func NewRateLimiter(clock util.Clock) *RateLimiter {
	return &RateLimiter{
		clock:  clock,
		limits: make(map[string]Limit),
		state:  make(map[windowKey]window),
		exempt: make(map[string]bool),
	}
}

// SetLimit configures function. Zero window or zero calls is rejected.
func (r *RateLimiter) SetLimit(function string, w time.Duration, maxCalls uint32) error {
	if w < time.Second || maxCalls == 0 {
		return errs.With(errs.ErrOutOfRange, "ratelimit.set_limit")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits[function] = Limit{Window: w, MaxCalls: maxCalls}
	return nil
}

// ClearLimit removes the quota for function.
func (r *RateLimiter) ClearLimit(function string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limits, function)
}

// LimitFor returns the configured limit for function, if any.
func (r *RateLimiter) LimitFor(function string) (Limit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limits[function]
	return l, ok
}

// SetExempt toggles whether who bypasses every limit.
func (r *RateLimiter) SetExempt(who string, exempt bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if exempt {
		r.exempt[who] = true
	} else {
		delete(r.exempt, who)
	}
}

// IsExempt reports whether who bypasses limits.
func (r *RateLimiter) IsExempt(who string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exempt[who]
}

// Check admits one call by caller to function or fails with ErrRateLimited.
// A rejected call does not consume quota.
func (r *RateLimiter) Check(caller, function string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exempt[caller] {
		return nil
	}
	limit, ok := r.limits[function]
	if !ok {
		return nil
	}

	now := r.clock.Now().Unix()
	key := windowKey{caller: caller, function: function}
	w, seen := r.state[key]
	if !seen || now-w.start >= int64(limit.Window/time.Second) || now < w.start {
		w = window{start: now}
	}
	if w.count+1 > limit.MaxCalls {
		return errs.With(errs.ErrRateLimited, function)
	}
	w.count++
	r.state[key] = w
	return nil
}
