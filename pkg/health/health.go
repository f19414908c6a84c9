// Package health probes service endpoints over HTTP. A service counts as
// healthy as soon as it answers at all; readiness gating is attempt-counted
// so callers control the budget in whole probes, not wall time.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout  = 2 * time.Second
	DefaultInterval = time.Second
)

// Checker probes HTTP endpoints. The zero value gets the default timing.
type Checker struct {
	Timeout  time.Duration // per-probe budget
	Interval time.Duration // pause between readiness attempts
}

func NewChecker() *Checker {
	return &Checker{Timeout: DefaultTimeout, Interval: DefaultInterval}
}

// Check issues one GET against url. Any status below 500 counts as healthy;
// error pages still prove a server is listening. Connection errors, timeouts
// and bad URLs all report unhealthy rather than failing the caller.
func (c *Checker) Check(ctx context.Context, url string) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// WaitReady polls url once per Interval until it answers, spending at most
// maxAttempts probes. A zero or negative budget fails immediately without
// probing. Cancelling ctx stops the wait early.
func (c *Checker) WaitReady(ctx context.Context, name, url string, maxAttempts int) bool {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	log.Info().Str("service", name).Str("url", url).Msg("waiting for service")
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if c.Check(ctx, url) {
			log.Info().Str("service", name).Int("attempts", attempt+1).Msg("service is ready")
			return true
		}
		if attempt > 0 && attempt%10 == 0 {
			log.Info().Str("service", name).Int("attempts", attempt).Msg("still waiting")
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
	log.Warn().Str("service", name).Int("max_attempts", maxAttempts).Msg("service failed to become ready")
	return false
}
