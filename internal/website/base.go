package website

import (
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/domain"
)

// Base implements the session bookkeeping every adapter shares. Embed it.
type Base struct {
	name     string
	client   *Client
	Sessions *session.Store
	Clock    clock.Clock
}

func NewBase(name string, client *Client, sessions *session.Store, clk clock.Clock) Base {
	if clk == nil {
		clk = clock.Real()
	}
	return Base{name: name, client: client, Sessions: sessions, Clock: clk}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Key(profileID string) session.Key {
	return session.Key{ProfileID: profileID, Website: b.name}
}

// Client returns an HTTP client carrying the profile's cookies.
func (b *Base) Client(profileID string) *Client {
	return b.client.WithJar(b.Sessions.Jar(b.Key(profileID)))
}

func (b *Base) Folders(profileID string) []domain.Folder {
	return b.Sessions.Get(b.Key(profileID)).Folders
}

func (b *Base) ResetCookies(profileID, rawURL string) error {
	return b.Sessions.ResetCookies(b.Key(profileID), rawURL)
}

// LoggedOut clears the transient tier and returns the logged out status.
func (b *Base) LoggedOut(profileID string) domain.WebsiteStatus {
	b.Sessions.Clear(b.Key(profileID))
	return domain.WebsiteStatus{Status: domain.LoggedOut}
}

// Result starts a PostResult for data.
func (b *Base) Result(data domain.PostData) domain.PostResult {
	return domain.PostResult{
		Website:   b.name,
		ProfileID: data.ProfileID,
		Time:      b.Clock.Now(),
	}
}

// Fail wraps err for the caller and fills the result's error fields.
func (b *Base) Fail(result domain.PostResult, err error) (domain.PostResult, error) {
	result.Success = false
	result.Error, result.Response = Describe(err)
	return result, err
}

func (b *Base) BaseURL() string {
	return b.client.BaseURL
}
