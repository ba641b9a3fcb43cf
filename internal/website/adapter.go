// Package website defines what every site integration implements and the
// plumbing they share: an HTTP client bound to a profile's cookie jar, typed
// posting errors and the registry the rest of the service looks sites up in.
package website

import (
	"context"
	"errors"
	"fmt"

	"github.com/itchan-dev/crosspost/shared/domain"
)

var ErrOptionsType = errors.New("unexpected options type")

// AuthData carries credentials typed in by the user, e.g. an API key or a
// username and password. Keys are site specific.
type AuthData map[string]string

type Adapter interface {
	Name() string
	// CheckStatus reports LoggedOut with a nil error when the site rejects the
	// stored session. Errors are reserved for failing to ask at all. A non-empty
	// auth replaces the stored credentials before checking.
	CheckStatus(ctx context.Context, profileID string, auth AuthData) (domain.WebsiteStatus, error)
	// Folders returns what the last status check cached. No I/O.
	Folders(profileID string) []domain.Folder
	Post(ctx context.Context, sub *domain.Submission, data domain.PostData) (domain.PostResult, error)
	// ResetCookies drops the profile's cookies, or only those sent to rawURL.
	ResetCookies(profileID, rawURL string) error
}

// TokenRefresher is implemented by sites whose credentials expire.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, profileID string, auth AuthData) (domain.WebsiteStatus, error)
}

// RefreshTokens calls the adapter's refresher if it has one. ok is false when
// it does not.
func RefreshTokens(ctx context.Context, a Adapter, profileID string, auth AuthData) (status domain.WebsiteStatus, ok bool, err error) {
	refresher, ok := a.(TokenRefresher)
	if !ok {
		return domain.WebsiteStatus{Status: domain.LoggedOut}, false, nil
	}
	status, err = refresher.RefreshTokens(ctx, profileID, auth)
	return status, true, err
}

// Options returns data.Options as *T. Nil options yield a zero T.
func Options[T any](data domain.PostData) (*T, error) {
	switch o := data.Options.(type) {
	case nil:
		return new(T), nil
	case *T:
		if o == nil {
			return new(T), nil
		}
		return o, nil
	default:
		return nil, fmt.Errorf("%w: %T for %s", ErrOptionsType, data.Options, data.Login.Website)
	}
}

// UnknownType is what adapters panic with on a submission type they were
// never written for.
func UnknownType(website string, t domain.SubmissionType) string {
	return fmt.Sprintf("%s: unknown submission type %q", website, t)
}
