package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type limitSpec struct {
	perSecond rate.Limit
	burst     int
}

// Request rates the services tolerate without throttling us.
var defaultLimits = map[ProviderName]limitSpec{
	NameLastFM:     {perSecond: 5, burst: 1},
	NameSoundCloud: {perSecond: 2, burst: 2},
	NameOpenAI:     {perSecond: 1, burst: 1},
	NameScraper:    {perSecond: 1, burst: 1},
	NameWeb:        {perSecond: 2, burst: 4},
}

// RateLimiterMap paces outgoing requests per service. Services without a
// limiter are not paced.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[ProviderName]*rate.Limiter
}

// NewRateLimiterMap creates limiters with the default rates.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{limiters: make(map[ProviderName]*rate.Limiter, len(defaultLimits))}
	for name, spec := range defaultLimits {
		m.limiters[name] = rate.NewLimiter(spec.perSecond, spec.burst)
	}
	return m
}

// SetLimit replaces the rate for one service, keeping its default burst.
// perSecond <= 0 removes the limit.
func (m *RateLimiterMap) SetLimit(name ProviderName, perSecond float64) {
	burst := 1
	if spec, ok := defaultLimits[name]; ok {
		burst = spec.burst
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(limit, burst)
}

// Configure applies per-service overrides, typically from the config file.
func (m *RateLimiterMap) Configure(perSecond map[string]float64) {
	for name, r := range perSecond {
		m.SetLimit(ProviderName(name), r)
	}
}

// Wait blocks until name may send a request or ctx is done.
func (m *RateLimiterMap) Wait(ctx context.Context, name ProviderName) error {
	m.mu.RLock()
	l := m.limiters[name]
	m.mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
