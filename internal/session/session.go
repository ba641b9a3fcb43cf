// Package session keeps per-(profile, website) login state: a transient tier
// of account details, isolated cookie jars and a sealed durable tier holding
// whatever an adapter needs to restore a login.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/itchan-dev/crosspost/internal/sealed"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/itchan-dev/crosspost/shared/logger"
)

var ErrNotFound = errors.New("session not found")

type Key struct {
	ProfileID string
	Website   string
}

func (k Key) String() string {
	return k.Website + "/" + k.ProfileID
}

// Entry is the transient tier. It is rebuilt by status checks and lost on
// restart.
type Entry struct {
	Username  string
	AccountID string
	Folders   []domain.Folder
	Values    map[string]string
}

// Durable persists sealed blobs. Save replaces any previous value.
type Durable interface {
	Save(ctx context.Context, key Key, data []byte) error
	Load(ctx context.Context, key Key) ([]byte, error)
	Delete(ctx context.Context, key Key) error
	Keys(ctx context.Context) ([]Key, error)
}

type Store struct {
	durable Durable
	sealer  sealed.Sealer

	mu      sync.RWMutex
	entries map[Key]Entry

	jarsMu sync.Mutex
	jars   map[Key]*cookiejar.Jar

	locksMu sync.Mutex
	locks   map[Key]*sync.Mutex
}

func New(durable Durable, sealer sealed.Sealer) *Store {
	if sealer == nil {
		logger.Log.Warn("no session key configured, credentials are stored unencrypted",
			"component", "session")
		sealer = sealed.Plain{}
	}
	return &Store{
		durable: durable,
		sealer:  sealer,
		entries: make(map[Key]Entry),
		jars:    make(map[Key]*cookiejar.Jar),
		locks:   make(map[Key]*sync.Mutex),
	}
}

// Get returns a copy of the entry, or the zero Entry.
func (s *Store) Get(key Key) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.entries[key])
}

func (s *Store) Put(key Key, entry Entry) {
	s.mu.Lock()
	s.entries[key] = clone(entry)
	s.mu.Unlock()
}

func (s *Store) Clear(key Key) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func clone(e Entry) Entry {
	e.Folders = slices.Clone(e.Folders)
	e.Values = maps.Clone(e.Values)
	return e
}

// Jar returns the cookie jar of one partition, creating it on first use.
func (s *Store) Jar(key Key) http.CookieJar {
	s.jarsMu.Lock()
	defer s.jarsMu.Unlock()
	return s.jarLocked(key)
}

func (s *Store) jarLocked(key Key) *cookiejar.Jar {
	if jar, ok := s.jars[key]; ok {
		return jar
	}
	// cookiejar.New only fails on a nil-returning option hook.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	s.jars[key] = jar
	return jar
}

// ResetCookies drops every cookie of the partition when rawURL is empty.
// Otherwise only the cookies sent to rawURL are expired.
func (s *Store) ResetCookies(key Key, rawURL string) error {
	s.jarsMu.Lock()
	defer s.jarsMu.Unlock()

	if rawURL == "" {
		delete(s.jars, key)
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid cookie url %q", rawURL)
	}
	jar := s.jarLocked(key)
	current := jar.Cookies(u)
	if len(current) == 0 {
		return nil
	}
	var expired []*http.Cookie
	for _, c := range current {
		// The jar does not report a cookie's path, so cover the usual ones.
		for _, path := range []string{"/", u.Path, ""} {
			expired = append(expired, &http.Cookie{Name: c.Name, Path: path, MaxAge: -1})
		}
	}
	jar.SetCookies(u, expired)
	return nil
}

// Acquire serialises work on one (profile, website) pair. Call the returned
// func to release.
func (s *Store) Acquire(key Key) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// StoreData encodes, seals and saves v as the key's durable data.
func (s *Store) StoreData(ctx context.Context, key Key, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", key, err)
	}
	sealedData, err := s.sealer.Seal(raw)
	if err != nil {
		return fmt.Errorf("sealing session %s: %w", key, err)
	}
	if err := s.durable.Save(ctx, key, sealedData); err != nil {
		return fmt.Errorf("saving session %s: %w", key, err)
	}
	return nil
}

// LoadData decodes the key's durable data into v. It reports false when the
// profile never stored anything.
func (s *Store) LoadData(ctx context.Context, key Key, v any) (bool, error) {
	sealedData, err := s.durable.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading session %s: %w", key, err)
	}
	raw, err := s.sealer.Open(sealedData)
	if err != nil {
		return false, fmt.Errorf("opening session %s: %w", key, err)
	}
	if err := unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding session %s: %w", key, err)
	}
	return true, nil
}

// Unauthorize forgets everything known about the key.
func (s *Store) Unauthorize(ctx context.Context, key Key) error {
	if err := s.durable.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting session %s: %w", key, err)
	}
	s.Clear(key)
	// An empty url never fails.
	_ = s.ResetCookies(key, "")
	logger.Log.Info("session removed", "component", "session", "website", key.Website, "profile", key.ProfileID)
	return nil
}

// Keys lists every key with durable data.
func (s *Store) Keys(ctx context.Context) ([]Key, error) {
	return s.durable.Keys(ctx)
}
