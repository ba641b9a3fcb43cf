package setup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/itchan-dev/crosspost/internal/sealed"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	t.Run("every website is enabled by default", func(t *testing.T) {
		cfg := config.Default()
		registry := NewRegistry(cfg, session.New(session.NewMemory(), sealed.Plain{}), clock.Real())
		assert.Equal(t, []string{"itchan", "weasyl", "mastodon", "inkbunny"}, registry.Names())

		c, ok := registry.Config("weasyl")
		require.True(t, ok)
		assert.Equal(t, "https://www.weasyl.com", c.BaseURL)
		assert.Equal(t, defaultRefreshInterval, c.RefreshInterval)
	})

	t.Run("public settings apply", func(t *testing.T) {
		off := false
		cfg := config.Default()
		cfg.Public.Websites = map[string]config.WebsitePublic{
			"weasyl":   {Enabled: &off},
			"mastodon": {BaseURL: "https://example.social", RefreshInterval: time.Hour},
		}
		registry := NewRegistry(cfg, session.New(session.NewMemory(), sealed.Plain{}), clock.Real())
		assert.False(t, registry.Has("weasyl"))

		c, ok := registry.Config("mastodon")
		require.True(t, ok)
		assert.Equal(t, "https://example.social", c.BaseURL)
		assert.Equal(t, time.Hour, c.RefreshInterval)
	})
}

func TestSetupDependencies(t *testing.T) {
	ctx := context.Background()

	t.Run("memory storage without a key", func(t *testing.T) {
		deps, err := SetupDependencies(ctx, config.Default(), nil)
		require.NoError(t, err)
		defer deps.Close()

		assert.NotNil(t, deps.Handler)
		assert.NotNil(t, deps.Poster)
		assert.NotNil(t, deps.Status)
		assert.Len(t, deps.Registry.Names(), 4)
	})

	t.Run("sqlite storage with a key", func(t *testing.T) {
		key, err := sealed.GenerateKey()
		require.NoError(t, err)
		cfg := config.Default()
		cfg.Public.Storage.Driver = "sqlite3"
		cfg.Public.Storage.SqlitePath = filepath.Join(t.TempDir(), "sessions.db")
		cfg.Private.SessionKey = key

		deps, err := SetupDependencies(ctx, cfg, nil)
		require.NoError(t, err)
		defer deps.Close()

		k := session.Key{ProfileID: "p1", Website: "weasyl"}
		require.NoError(t, deps.Sessions.StoreData(ctx, k, map[string]string{"api_key": "x"}))
		keys, err := deps.Sessions.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []session.Key{k}, keys)
	})

	t.Run("bad session key", func(t *testing.T) {
		cfg := config.Default()
		cfg.Private.SessionKey = "not-a-key"
		_, err := SetupDependencies(ctx, cfg, nil)
		assert.ErrorContains(t, err, "session_key")
	})

	t.Run("unknown storage driver", func(t *testing.T) {
		cfg := config.Default()
		cfg.Public.Storage.Driver = "mongo"
		_, err := SetupDependencies(ctx, cfg, nil)
		assert.ErrorContains(t, err, "unsupported storage driver")
	})
}
