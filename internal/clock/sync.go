package clock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ErrLinkDown is returned by SyncRound when the link is not up.
var ErrLinkDown = errors.New("link not connected")

// timeResponse is the body served by the time endpoint.
type timeResponse struct {
	ISO string `json:"iso"`
}

// Sync fetches the network time once. On success the anchor is replaced;
// on failure it is left untouched and the clock is marked unsynced.
func (c *Clock) Sync(ctx context.Context) error {
	iso, tick, err := c.fetch(ctx)
	if err != nil {
		c.synced.Store(false)
		c.opts.Metrics.SyncAttempt("error")
		return err
	}

	c.anchor.Store(&Anchor{Timestamp: iso, Tick: tick, Valid: true})
	c.synced.Store(true)
	c.opts.Metrics.SyncAttempt("ok")
	c.opts.Logger.Info("time synced", "iso", iso)
	return nil
}

func (c *Clock) fetch(ctx context.Context) (string, uint32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build time request: %w", err)
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("get time: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("get time: unexpected status %s", resp.Status)
	}

	var body timeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("decode time response: %w", err)
	}
	tick := c.opts.Ticks.Ticks()

	if _, err := Parse(body.ISO); err != nil {
		return "", 0, fmt.Errorf("time response: %w", err)
	}
	return body.ISO, tick, nil
}

// SyncRound makes up to MaxAttempts sync attempts, RetryDelay apart, each
// gated on the link being up. A down link ends the round early without
// escalation. If every attempt fails while the link is up, the device is
// restarted exactly once for the round.
func (c *Clock) SyncRound(ctx context.Context) error {
	c.foldTicks()
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if c.opts.Link != nil && !c.opts.Link.IsConnected() {
			c.opts.Metrics.SyncAttempt("link_down")
			c.opts.Logger.Warn("time sync skipped", "error", ErrLinkDown)
			return ErrLinkDown
		}

		lastErr = c.Sync(ctx)
		if lastErr == nil {
			return nil
		}
		c.opts.Logger.Warn("time sync attempt failed",
			"attempt", attempt,
			"max_attempts", c.opts.MaxAttempts,
			"error", lastErr)

		if attempt < c.opts.MaxAttempts && !sleepCtx(ctx, c.opts.RetryDelay) {
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.opts.Logger.Error("time sync failed after all retries",
		"attempts", c.opts.MaxAttempts, "error", lastErr)
	if c.opts.Restarter != nil {
		c.opts.Metrics.Restart()
		c.opts.Restarter.Restart(fmt.Sprintf("time sync failed after %d attempts: %v", c.opts.MaxAttempts, lastErr))
	}
	return lastErr
}

// Start runs the startup sync round, then schedules a round every Interval
// until Stop is called or ctx is cancelled. A failed startup round does not
// prevent the periodic loop from starting.
func (c *Clock) Start(ctx context.Context) error {
	if err := c.SyncRound(ctx); err != nil {
		c.opts.Logger.Warn("startup time sync incomplete, anchor invalid until next round", "error", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(c.opts.Interval),
		gocron.NewTask(func() {
			if err := c.SyncRound(ctx); err != nil {
				c.opts.Logger.Debug("periodic time sync round failed", "error", err)
			}
		}),
		gocron.WithName("time-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule time sync: %w", err)
	}

	c.mu.Lock()
	c.scheduler = s
	c.mu.Unlock()

	s.Start()
	c.opts.Logger.Info("time sync scheduled", "interval", c.opts.Interval)
	return nil
}

// Stop shuts down the periodic loop.
func (c *Clock) Stop() error {
	c.mu.Lock()
	s := c.scheduler
	c.scheduler = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Shutdown()
}

// Run starts the service and blocks until ctx is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return c.Stop()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
