package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/itchan-dev/crosspost/internal/handler"
	"github.com/itchan-dev/crosspost/internal/markup"
	"github.com/itchan-dev/crosspost/internal/poster"
	"github.com/itchan-dev/crosspost/internal/sealed"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/status"
	"github.com/itchan-dev/crosspost/internal/storage/sqlstore"
	"github.com/itchan-dev/crosspost/internal/thumbnail"
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/internal/website/inkbunny"
	"github.com/itchan-dev/crosspost/internal/website/itchan"
	"github.com/itchan-dev/crosspost/internal/website/mastodon"
	"github.com/itchan-dev/crosspost/internal/website/weasyl"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/config"
	"github.com/itchan-dev/crosspost/shared/logger"
)

// Base URLs used when public.yaml does not set one.
var defaultBaseURLs = map[string]string{
	itchan.Name:   "http://localhost:8080",
	weasyl.Name:   "https://www.weasyl.com",
	mastodon.Name: "https://mastodon.social",
	inkbunny.Name: "https://inkbunny.net",
}

const defaultRefreshInterval = 30 * time.Minute

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config   *config.Config
	Clock    clock.Clock
	Sessions *session.Store
	Registry *website.Registry
	Status   *status.Cache
	Poster   *poster.Poster
	Handler  *handler.Handler

	closeDurable func() error
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config, clk clock.Clock) (*Dependencies, error) {
	if clk == nil {
		clk = clock.Real()
	}

	durable, closeDurable, err := openDurable(ctx, cfg, clk)
	if err != nil {
		return nil, err
	}
	sealer, err := newSealer(cfg.Private.SessionKey)
	if err != nil {
		closeDurable()
		return nil, err
	}
	sessions := session.New(durable, sealer)

	registry := NewRegistry(cfg, sessions, clk)
	statusCache := status.NewCache(registry, sessions, clk)
	p := poster.New(poster.Options{
		Registry:    registry,
		Validator:   validation.New(registry),
		Sessions:    sessions,
		Clock:       clk,
		Backoff:     cfg.Public.Posting.RetryBackoff,
		Signatures:  cfg.Public.Posting.RetrySignatures,
		Concurrency: cfg.Public.Posting.Concurrency,
		Thumbnails:  thumbnail.New(cfg.Public.Thumbnail.MaxSize),
		Shortcuts:   markup.DefaultShortcuts(),
	})

	return &Dependencies{
		Config:       cfg,
		Clock:        clk,
		Sessions:     sessions,
		Registry:     registry,
		Status:       statusCache,
		Poster:       p,
		Handler:      handler.New(p, statusCache, sessions, registry, cfg),
		closeDurable: closeDurable,
	}, nil
}

func (d *Dependencies) Close() error {
	if d.closeDurable == nil {
		return nil
	}
	return d.closeDurable()
}

func openDurable(ctx context.Context, cfg *config.Config, clk clock.Clock) (session.Durable, func() error, error) {
	if cfg.Public.Storage.Driver == "memory" {
		logger.Log.Warn("using in-memory session storage, logins are lost on restart", "component", "setup")
		return session.NewMemory(), func() error { return nil }, nil
	}
	store, err := sqlstore.Open(ctx, cfg, clk)
	if err != nil {
		return nil, nil, fmt.Errorf("open session storage: %w", err)
	}
	logger.Log.Info("session storage ready", "component", "setup", "driver", cfg.Public.Storage.Driver)
	return store, store.Close, nil
}

// newSealer returns nil without a key; the session store then stores data
// unencrypted.
func newSealer(key string) (sealed.Sealer, error) {
	if key == "" {
		return nil, nil
	}
	s, err := sealed.New(key)
	if err != nil {
		return nil, fmt.Errorf("session_key: %w", err)
	}
	return s, nil
}

// NewRegistry builds an entry for every enabled website.
func NewRegistry(cfg *config.Config, sessions *session.Store, clk clock.Clock) *website.Registry {
	timeout := cfg.Public.Posting.HTTPTimeout
	settings := func(name string) (baseURL string, refresh time.Duration, private config.WebsitePrivate) {
		pub, priv := cfg.Website(name)
		baseURL, refresh = pub.BaseURL, pub.RefreshInterval
		if baseURL == "" {
			baseURL = defaultBaseURLs[name]
		}
		if refresh <= 0 {
			refresh = defaultRefreshInterval
		}
		return baseURL, refresh, priv
	}

	var entries []website.Entry
	if cfg.WebsiteEnabled(itchan.Name) {
		baseURL, refresh, _ := settings(itchan.Name)
		a := itchan.New(website.NewClient(itchan.Name, baseURL, timeout), sessions, clk)
		entries = append(entries, website.Entry{Config: itchan.Config(baseURL, refresh), Adapter: a})
	}
	if cfg.WebsiteEnabled(weasyl.Name) {
		baseURL, refresh, _ := settings(weasyl.Name)
		a := weasyl.New(website.NewClient(weasyl.Name, baseURL, timeout), sessions, clk)
		entries = append(entries, website.Entry{Config: weasyl.Config(baseURL, refresh), Adapter: a})
	}
	if cfg.WebsiteEnabled(mastodon.Name) {
		baseURL, refresh, priv := settings(mastodon.Name)
		a := mastodon.New(website.NewClient(mastodon.Name, baseURL, timeout), sessions, clk, priv.ClientID, priv.ClientSecret)
		entries = append(entries, website.Entry{Config: mastodon.Config(baseURL, refresh, a), Adapter: a})
	}
	if cfg.WebsiteEnabled(inkbunny.Name) {
		baseURL, refresh, _ := settings(inkbunny.Name)
		a := inkbunny.New(website.NewClient(inkbunny.Name, baseURL, timeout), sessions, clk)
		entries = append(entries, website.Entry{Config: inkbunny.Config(baseURL, refresh), Adapter: a})
	}

	registry := website.NewRegistry(entries...)
	logger.Log.Info("website registry built", "component", "setup", "websites", registry.Names())
	return registry
}
