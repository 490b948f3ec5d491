package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/epeers/commitvault/internal/models"
	"github.com/epeers/commitvault/internal/pricefeed"
	"github.com/epeers/commitvault/internal/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Commitments is the part of the ledger the sweeper drives
type Commitments interface {
	ListActiveCommitments(ctx context.Context) ([]models.Commitment, error)
	UpdateValue(ctx context.Context, caller, id string, newValue int64) (*models.Commitment, error)
	CheckViolations(ctx context.Context, id string) (bool, error)
}

// Recorder is the part of the compliance engine the sweeper drives
type Recorder interface {
	RecordDrawdown(ctx context.Context, caller, commitmentID string, currentValue int64) (*models.HealthState, error)
	Attest(ctx context.Context, submittedBy, commitmentID string, t models.AttestationType, payload models.AttestationPayload, isCompliant bool) (*models.Attestation, error)
}

// Config configures a Sweeper
type Config struct {
	// Identity is the caller id used for every write. It needs the
	// value_updater capability on the ledger and recorder on compliance.
	Identity string
	// ReferencePrices maps an asset to the price its principal is
	// denominated at. Assets without one are never revalued.
	ReferencePrices map[string]decimal.Decimal
	MaxStaleness    time.Duration
}

// Sweeper attests the condition of every active commitment
type Sweeper struct {
	ledger   Commitments
	recorder Recorder
	feed     pricefeed.Feed
	clock    util.Clock
	cfg      Config
}

// Report summarises one sweep
type Report struct {
	Checked    int `json:"checked"`
	Revalued   int `json:"revalued"`
	Violations int `json:"violations"`
	Failures   int `json:"failures"`
}

// NewSweeper creates a Sweeper. feed may be nil, in which case values are
// taken as recorded on the ledger.
func NewSweeper(ledger Commitments, recorder Recorder, feed pricefeed.Feed, clock util.Clock, cfg Config) *Sweeper {
	if clock == nil {
		clock = util.SystemClock{}
	}
	if cfg.MaxStaleness == 0 {
		cfg.MaxStaleness = pricefeed.DefaultMaxStaleness
	}
	return &Sweeper{ledger: ledger, recorder: recorder, feed: feed, clock: clock, cfg: cfg}
}

// Run sweeps every active commitment once. A failure on one commitment is
// logged and counted and the sweep moves on.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	defer util.TrackTime("monitor sweep", time.Now())

	var report Report
	active, err := s.ledger.ListActiveCommitments(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active commitments: %w", err)
	}

	quotes := make(map[string]*pricefeed.Quote)
	for i := range active {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c := &active[i]
		report.Checked++

		revalued, violated, err := s.check(ctx, c, quotes)
		if err != nil {
			report.Failures++
			log.WithError(err).WithField("commitment_id", c.ID).Warn("monitor: check failed")
			continue
		}
		if revalued {
			report.Revalued++
		}
		if violated {
			report.Violations++
		}
	}

	log.WithFields(log.Fields{
		"checked":    report.Checked,
		"revalued":   report.Revalued,
		"violations": report.Violations,
		"failures":   report.Failures,
	}).Info("monitor sweep complete")
	return report, nil
}

func (s *Sweeper) check(ctx context.Context, c *models.Commitment, quotes map[string]*pricefeed.Quote) (bool, bool, error) {
	value := c.CurrentValue
	revalued := false

	if v, ok, err := s.valuation(ctx, c, quotes); err != nil {
		log.WithError(err).Debugf("monitor: no valuation for %s", c.ID)
	} else if ok && v != c.CurrentValue {
		if _, err := s.ledger.UpdateValue(ctx, s.cfg.Identity, c.ID, v); err != nil {
			return false, false, fmt.Errorf("update value: %w", err)
		}
		value = v
		revalued = true
	}

	if _, err := s.recorder.RecordDrawdown(ctx, s.cfg.Identity, c.ID, value); err != nil {
		return revalued, false, fmt.Errorf("record drawdown: %w", err)
	}

	violated, err := s.ledger.CheckViolations(ctx, c.ID)
	if err != nil {
		return revalued, false, fmt.Errorf("check violations: %w", err)
	}
	payload := models.AttestationPayload{
		Version: models.PayloadVersion,
		HealthCheck: &models.HealthCheckPayload{
			Note:          "scheduled sweep",
			ObservedValue: value,
			Violated:      violated,
		},
	}
	if _, err := s.recorder.Attest(ctx, s.cfg.Identity, c.ID, models.AttestationHealthCheck, payload, !violated); err != nil {
		return revalued, violated, fmt.Errorf("attest health: %w", err)
	}
	return revalued, violated, nil
}

// valuation converts the asset price into a current value for c. ok is
// false when the asset cannot be priced.
func (s *Sweeper) valuation(ctx context.Context, c *models.Commitment, quotes map[string]*pricefeed.Quote) (int64, bool, error) {
	if s.feed == nil {
		return 0, false, nil
	}
	ref, ok := s.cfg.ReferencePrices[c.Asset]
	if !ok || !ref.IsPositive() {
		return 0, false, nil
	}

	q, ok := quotes[c.Asset]
	if !ok {
		var err error
		if q, err = s.feed.GetPrice(ctx, c.Asset); err != nil {
			return 0, false, err
		}
		quotes[c.Asset] = q
	}
	if err := pricefeed.CheckFresh(q, s.clock.Now(), s.cfg.MaxStaleness); err != nil {
		return 0, false, err
	}
	return Revalue(c.Principal, q.Price, ref)
}

// Revalue scales principal by price/reference, truncating toward zero.
func Revalue(principal int64, price, reference decimal.Decimal) (int64, bool, error) {
	if !reference.IsPositive() {
		return 0, false, nil
	}
	v := decimal.NewFromInt(principal).Mul(price).Div(reference).Truncate(0)
	if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, false, fmt.Errorf("revalued amount %s out of range", v)
	}
	return v.IntPart(), true, nil
}
