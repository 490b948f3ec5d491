package events

import (
	"context"
	"sync"
)

type collectorContextKey struct{}

// Collector accumulates the events published during one request.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollectorContext returns a context carrying a fresh Collector,
// plus a reference to the collector so the handler can read events later.
func NewCollectorContext(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorContextKey{}, c), c
}

func collect(ctx context.Context, ev Event) {
	c, ok := ctx.Value(collectorContextKey{}).(*Collector)
	if !ok || c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns the collected events in publish order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Names returns the collected event names, handy for assertions.
func (c *Collector) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Name)
	}
	return out
}
