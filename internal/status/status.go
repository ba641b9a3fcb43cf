// Package status caches each profile's login status per website and keeps
// it fresh in the background.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itchan-dev/crosspost/internal/metrics"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/itchan-dev/crosspost/shared/logger"
)

var ErrUnknownWebsite = errors.New("unknown website")

type Websites interface {
	Adapter(name string) (website.Adapter, bool)
	Config(name string) (website.Config, bool)
}

// Sessions lists the profiles that have durable session data and hands out
// the per-(profile, website) lock that posting also takes.
type Sessions interface {
	Keys(ctx context.Context) ([]session.Key, error)
	Acquire(key session.Key) func()
}

type entry struct {
	status  domain.WebsiteStatus
	checked time.Time
}

type Cache struct {
	websites Websites
	sessions Sessions
	clock    clock.Clock

	mu      sync.RWMutex
	entries map[session.Key]entry
}

func NewCache(websites Websites, sessions Sessions, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real()
	}
	return &Cache{
		websites: websites,
		sessions: sessions,
		clock:    clk,
		entries:  make(map[session.Key]entry),
	}
}

func (c *Cache) adapter(site string) (website.Adapter, error) {
	a, ok := c.websites.Adapter(site)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWebsite, site)
	}
	return a, nil
}

// Get returns the cached status, checking live on a miss.
func (c *Cache) Get(ctx context.Context, key session.Key) (domain.WebsiteStatus, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e.status, nil
	}
	return c.Check(ctx, key, nil)
}

// Check asks the website and caches the answer. Failed checks are not cached.
// A check may log in again, so it waits for any post on the same profile.
func (c *Cache) Check(ctx context.Context, key session.Key, auth website.AuthData) (domain.WebsiteStatus, error) {
	a, err := c.adapter(key.Website)
	if err != nil {
		return domain.WebsiteStatus{}, err
	}
	release := c.sessions.Acquire(key)
	status, err := a.CheckStatus(ctx, key.ProfileID, auth)
	release()
	if err != nil {
		metrics.ObserveStatusCheck(key.Website, "error")
		return domain.WebsiteStatus{}, err
	}
	metrics.ObserveStatusCheck(key.Website, string(status.Status))
	c.put(key, status)
	return status, nil
}

// Refresh renews expiring credentials. ok is false when the website has
// nothing to refresh.
func (c *Cache) Refresh(ctx context.Context, key session.Key, auth website.AuthData) (status domain.WebsiteStatus, ok bool, err error) {
	a, err := c.adapter(key.Website)
	if err != nil {
		return domain.WebsiteStatus{}, false, err
	}
	release := c.sessions.Acquire(key)
	status, ok, err = website.RefreshTokens(ctx, a, key.ProfileID, auth)
	release()
	if err != nil || !ok {
		return status, ok, err
	}
	c.put(key, status)
	return status, true, nil
}

func (c *Cache) Forget(key session.Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) put(key session.Key, status domain.WebsiteStatus) {
	c.mu.Lock()
	c.entries[key] = entry{status: status, checked: c.clock.Now()}
	c.mu.Unlock()
}

func (c *Cache) due(key session.Key, now time.Time) bool {
	cfg, ok := c.websites.Config(key.Website)
	if !ok {
		return false
	}
	c.mu.RLock()
	e, seen := c.entries[key]
	c.mu.RUnlock()
	return !seen || now.Sub(e.checked) >= cfg.RefreshInterval
}

// Update re-checks every stored profile whose website's refresh interval
// has passed. Individual failures are logged; only listing keys can fail.
func (c *Cache) Update(ctx context.Context) error {
	keys, err := c.sessions.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list session keys: %w", err)
	}
	now := c.clock.Now()
	checked := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.due(key, now) {
			continue
		}
		checked++
		if _, err := c.Check(ctx, key, nil); err != nil {
			logger.Log.Warn("status check failed",
				"component", "status_cache",
				"key", key.String(),
				"error", err)
		}
	}
	logger.Log.Debug("status cache updated",
		"component", "status_cache",
		"profiles", len(keys),
		"checked", checked)
	return nil
}

// StartBackgroundRefresh runs Update on every tick until ctx is done.
func (c *Cache) StartBackgroundRefresh(ctx context.Context, tick time.Duration) {
	ticker := c.clock.NewTicker(tick)
	logger.Log.Info("started status background refresh",
		"component", "status_cache",
		"tick", tick)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Update(ctx); err != nil && ctx.Err() == nil {
					logger.Log.Error("status refresh failed",
						"component", "status_cache",
						"error", err)
				}
			case <-ctx.Done():
				logger.Log.Info("status refresh shutting down gracefully",
					"component", "status_cache")
				return
			}
		}
	}()
}
