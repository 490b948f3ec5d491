package config

import (
	"fmt"
	"os"
	"time"

	"github.com/epeers/commitvault/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RateLimit is one fixed-window quota from the policy file
type RateLimit struct {
	Function string        `yaml:"function"`
	Window   time.Duration `yaml:"window"`
	MaxCalls uint32        `yaml:"max_calls"`
}

// SeedPool is a pool registered at startup when it does not exist yet
type SeedPool struct {
	ID          uint32           `yaml:"id"`
	RiskLevel   models.RiskLevel `yaml:"risk_level"`
	APYBps      uint32           `yaml:"apy_bps"`
	MaxCapacity int64            `yaml:"max_capacity"`
}

// MonitorPolicy configures the periodic health sweep
type MonitorPolicy struct {
	Identity        string            `yaml:"identity"`
	MaxStaleness    time.Duration     `yaml:"max_staleness"`
	ReferencePrices map[string]string `yaml:"reference_prices"`
}

// Policy is the operator policy read from POLICY_FILE
type Policy struct {
	RateLimits []RateLimit   `yaml:"rate_limits"`
	Exempt     []string      `yaml:"exempt"`
	Recorders  []string      `yaml:"recorders"`
	Pools      []SeedPool    `yaml:"pools"`
	Monitor    MonitorPolicy `yaml:"monitor"`

	// Balances credits the in-process vault at startup: owner -> asset -> amount
	Balances map[string]map[string]int64 `yaml:"balances"`
}

// LoadPolicy reads and validates a YAML policy file
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a YAML policy document
func ParsePolicy(data []byte) (*Policy, error) {
	p := &Policy{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects entries the engines would refuse at startup
func (p *Policy) Validate() error {
	for _, rl := range p.RateLimits {
		if rl.Function == "" {
			return fmt.Errorf("rate limit without function")
		}
		if rl.Window < time.Second || rl.MaxCalls == 0 {
			return fmt.Errorf("rate limit %s: window must be at least 1s and max_calls positive", rl.Function)
		}
	}
	seen := make(map[uint32]bool)
	for _, sp := range p.Pools {
		if seen[sp.ID] {
			return fmt.Errorf("pool %d listed twice", sp.ID)
		}
		seen[sp.ID] = true
		if !sp.RiskLevel.Valid() {
			return fmt.Errorf("pool %d: invalid risk level %q", sp.ID, sp.RiskLevel)
		}
		if sp.MaxCapacity <= 0 {
			return fmt.Errorf("pool %d: max_capacity must be positive", sp.ID)
		}
	}
	for owner, assets := range p.Balances {
		for asset, amount := range assets {
			if amount <= 0 {
				return fmt.Errorf("balance of %s for %s must be positive", asset, owner)
			}
		}
	}
	if _, err := p.ReferencePrices(); err != nil {
		return err
	}
	return nil
}

// ReferencePrices parses the monitor's per-asset prices at commitment time
func (p *Policy) ReferencePrices() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(p.Monitor.ReferencePrices))
	for asset, s := range p.Monitor.ReferencePrices {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("reference price for %s: %w", asset, err)
		}
		if !d.IsPositive() {
			return nil, fmt.Errorf("reference price for %s must be positive", asset)
		}
		out[asset] = d
	}
	return out, nil
}

// MonitorIdentity returns the caller ID the sweeper acts as
func (p *Policy) MonitorIdentity() string {
	if p.Monitor.Identity == "" {
		return "monitor"
	}
	return p.Monitor.Identity
}
