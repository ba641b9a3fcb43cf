package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Log       Log                      `yaml:"log"`
	HTTP      HTTP                     `yaml:"http"`
	Storage   Storage                  `yaml:"storage"`
	Posting   Posting                  `yaml:"posting"`
	Thumbnail Thumbnail                `yaml:"thumbnail"`
	Websites  map[string]WebsitePublic `yaml:"websites"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type HTTP struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxUploadSize  int64         `yaml:"max_upload_size"` // bytes, whole multipart body
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type Storage struct {
	Driver     string `yaml:"driver"` // memory, postgres or sqlite3
	SqlitePath string `yaml:"sqlite_path"`
}

type Posting struct {
	Concurrency       int           `yaml:"concurrency"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	RetrySignatures   []string      `yaml:"retry_signatures"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	StatusRefreshTick time.Duration `yaml:"status_refresh_tick"`
}

type Thumbnail struct {
	MaxSize int `yaml:"max_size"` // px, longest side
}

type WebsitePublic struct {
	Enabled         *bool         `yaml:"enabled"`
	BaseURL         string        `yaml:"base_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type Private struct {
	Pg         Pg                        `yaml:"pg"`
	SessionKey string                    `yaml:"session_key"` // age X25519 identity, AGE-SECRET-KEY-1...
	Websites   map[string]WebsitePrivate `yaml:"websites"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type WebsitePrivate struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Defaults applied to fields left empty in public.yaml.
const (
	DefaultAddr          = "127.0.0.1:8090"
	DefaultMaxUploadSize = 200 << 20
	DefaultConcurrency   = 3
	DefaultRetryBackoff  = 5 * time.Second
	DefaultHTTPTimeout   = 2 * time.Minute
	DefaultShutdownGrace = 10 * time.Second
	DefaultRefreshTick   = time.Minute
	DefaultThumbnailSize = 600
)

// DefaultRetrySignatures is the allow-list of transient failure signatures
// shared by every website. Site-specific phrases live on the website config.
var DefaultRetrySignatures = []string{
	"invalid csrf token",
	"csrf token expired",
	"upload ticket expired",
	"invalid upload ticket",
}

func (p *Public) applyDefaults() {
	if p.HTTP.Addr == "" {
		p.HTTP.Addr = DefaultAddr
	}
	if p.HTTP.MaxUploadSize <= 0 {
		p.HTTP.MaxUploadSize = DefaultMaxUploadSize
	}
	if p.HTTP.ShutdownGrace <= 0 {
		p.HTTP.ShutdownGrace = DefaultShutdownGrace
	}
	if p.Storage.Driver == "" {
		p.Storage.Driver = "memory"
	}
	if p.Posting.Concurrency <= 0 {
		p.Posting.Concurrency = DefaultConcurrency
	}
	if p.Posting.RetryBackoff <= 0 {
		p.Posting.RetryBackoff = DefaultRetryBackoff
	}
	if len(p.Posting.RetrySignatures) == 0 {
		p.Posting.RetrySignatures = DefaultRetrySignatures
	}
	if p.Posting.HTTPTimeout <= 0 {
		p.Posting.HTTPTimeout = DefaultHTTPTimeout
	}
	if p.Posting.StatusRefreshTick <= 0 {
		p.Posting.StatusRefreshTick = DefaultRefreshTick
	}
	if p.Thumbnail.MaxSize <= 0 {
		p.Thumbnail.MaxSize = DefaultThumbnailSize
	}
}

// WebsiteEnabled reports whether a site is switched on. Sites missing from
// public.yaml are enabled.
func (c *Config) WebsiteEnabled(name string) bool {
	site, ok := c.Public.Websites[name]
	if !ok || site.Enabled == nil {
		return true
	}
	return *site.Enabled
}

// Website returns the public and private settings for a site; both may be zero.
func (c *Config) Website(name string) (WebsitePublic, WebsitePrivate) {
	return c.Public.Websites[name], c.Private.Websites[name]
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file: " + configPath)
	}

	if err := yaml.Unmarshal(configFile, output); err != nil {
		panic("can't unmarshal config file " + configPath + ": " + err.Error())
	}
}

// MustLoad reads public.yaml and private.yaml from configFolder.
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)
	public.applyDefaults()

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	return &Config{Public: public, Private: private}
}

// Default returns a config with every default applied and no sites configured.
func Default() *Config {
	var public Public
	public.applyDefaults()
	return &Config{Public: public}
}
