// Package mastodon posts statuses with media attachments to a Mastodon
// instance using an OAuth bearer token.
package mastodon

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/itchan-dev/crosspost/internal/markup"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/itchan-dev/crosspost/shared/logger"
)

const (
	Name               = "mastodon"
	defaultMaxChars    = 500
	maxMedia           = 4
	maxCharactersValue = "max_characters"
	instanceValue      = "instance"
	refreshLeeway      = time.Minute
)

type Options struct {
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public unlisted private direct"`
	SpoilerText string `json:"spoiler_text"`
	// AltText is applied to every uploaded file.
	AltText string `json:"alt_text"`
}

type credentials struct {
	Instance     string    `cbor:"instance"`
	AccessToken  string    `cbor:"access_token"`
	RefreshToken string    `cbor:"refresh_token"`
	ExpiresAt    time.Time `cbor:"expires_at"`
}

type account struct {
	ID       string `json:"id"`
	Acct     string `json:"acct"`
	Username string `json:"username"`
}

type instanceInfo struct {
	Configuration struct {
		Statuses struct {
			MaxCharacters int `json:"max_characters"`
		} `json:"statuses"`
	} `json:"configuration"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type mediaResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func Config(baseURL string, refresh time.Duration, a *Adapter) website.Config {
	return website.Config{
		Name:            Name,
		DisplayName:     "Mastodon",
		BaseURL:         baseURL,
		RefreshInterval: refresh,
		Markup:          markup.PlainText(),
		NewOptions:      func() any { return &Options{} },
		Rules: validation.Rules{
			AcceptedFiles: []string{"png", "jpeg", "jpg", "gif", "webp", "mp4", "webm", "quicktime", "mov", "mp3", "mpeg", "ogg", "wav", "flac"},
			MaxFileSize: validation.SizeLimits{
				Image:   validation.MB(16),
				Video:   validation.MB(99),
				Audio:   validation.MB(99),
				Default: validation.MB(16),
			},
			Extra: []validation.RuleFunc{a.checkLength, checkMediaCount},
		},
	}
}

// Adapter keeps OAuth client credentials for the refresh grant.
type Adapter struct {
	website.Base
	clientID     string
	clientSecret string
}

func New(client *website.Client, sessions *session.Store, clk clock.Clock, clientID, clientSecret string) *Adapter {
	return &Adapter{
		Base:         website.NewBase(Name, client, sessions, clk),
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func (a *Adapter) instance(creds credentials) string {
	if creds.Instance != "" {
		return strings.TrimRight(creds.Instance, "/")
	}
	return a.BaseURL()
}

func (a *Adapter) load(ctx context.Context, profileID string) (credentials, bool, error) {
	var creds credentials
	found, err := a.Sessions.LoadData(ctx, a.Key(profileID), &creds)
	return creds, found, err
}

func (a *Adapter) CheckStatus(ctx context.Context, profileID string, auth website.AuthData) (domain.WebsiteStatus, error) {
	key := a.Key(profileID)
	var creds credentials
	if len(auth) > 0 {
		creds = credentials{
			Instance:     auth["instance"],
			AccessToken:  auth["access_token"],
			RefreshToken: auth["refresh_token"],
		}
		if secs, err := strconv.ParseInt(auth["expires_in"], 10, 64); err == nil && secs > 0 {
			creds.ExpiresAt = a.Clock.Now().Add(time.Duration(secs) * time.Second)
		}
		if creds.AccessToken == "" {
			return a.LoggedOut(profileID), nil
		}
		if err := a.Sessions.StoreData(ctx, key, creds); err != nil {
			return domain.WebsiteStatus{}, err
		}
	} else {
		var (
			found bool
			err   error
		)
		creds, found, err = a.load(ctx, profileID)
		if err != nil {
			return domain.WebsiteStatus{}, err
		}
		if !found {
			return a.LoggedOut(profileID), nil
		}
	}

	if !creds.ExpiresAt.IsZero() && creds.RefreshToken != "" && a.Clock.Now().Add(refreshLeeway).After(creds.ExpiresAt) {
		return a.RefreshTokens(ctx, profileID, nil)
	}
	return a.verify(ctx, profileID, creds)
}

func (a *Adapter) verify(ctx context.Context, profileID string, creds credentials) (domain.WebsiteStatus, error) {
	client := a.Client(profileID)
	base := a.instance(creds)
	resp, err := client.Do(ctx, website.Request{Path: base + "/api/v1/accounts/verify_credentials", Header: bearer(creds.AccessToken)})
	if err != nil {
		return domain.WebsiteStatus{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return a.LoggedOut(profileID), nil
	}
	if !resp.OK() {
		return domain.WebsiteStatus{}, resp.Error(Name, "cannot verify credentials")
	}
	var acc account
	if err := resp.DecodeJSON(&acc); err != nil {
		return domain.WebsiteStatus{}, err
	}

	maxChars := defaultMaxChars
	if info, err := client.Do(ctx, website.Request{Path: base + "/api/v2/instance"}); err == nil && info.OK() {
		var inst instanceInfo
		if info.DecodeJSON(&inst) == nil && inst.Configuration.Statuses.MaxCharacters > 0 {
			maxChars = inst.Configuration.Statuses.MaxCharacters
		}
	}

	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}
	username := acc.Acct
	if !strings.Contains(username, "@") {
		username = acc.Acct + "@" + host
	}
	a.Sessions.Put(a.Key(profileID), session.Entry{
		Username:  username,
		AccountID: acc.ID,
		Values: map[string]string{
			maxCharactersValue: strconv.Itoa(maxChars),
			instanceValue:      base,
		},
	})
	return domain.WebsiteStatus{Username: username, Status: domain.LoggedIn}, nil
}

// RefreshTokens exchanges the stored refresh token for a new access token.
// auth may carry a refresh_token to use instead.
func (a *Adapter) RefreshTokens(ctx context.Context, profileID string, auth website.AuthData) (domain.WebsiteStatus, error) {
	creds, found, err := a.load(ctx, profileID)
	if err != nil {
		return domain.WebsiteStatus{}, err
	}
	if rt := auth["refresh_token"]; rt != "" {
		creds.RefreshToken = rt
		found = true
	}
	if !found || creds.RefreshToken == "" {
		return a.LoggedOut(profileID), nil
	}

	resp, err := a.Client(profileID).Do(ctx, website.Request{
		Method: http.MethodPost,
		Path:   a.instance(creds) + "/oauth/token",
		Form: url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {creds.RefreshToken},
			"client_id":     {a.clientID},
			"client_secret": {a.clientSecret},
		},
	})
	if err != nil {
		return domain.WebsiteStatus{}, err
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		logger.Log.Info("refresh token rejected", "component", Name, "profile", profileID)
		return a.LoggedOut(profileID), nil
	}
	if !resp.OK() {
		return domain.WebsiteStatus{}, resp.Error(Name, "token refresh failed")
	}
	var tokens tokenResponse
	if err := resp.DecodeJSON(&tokens); err != nil {
		return domain.WebsiteStatus{}, err
	}
	creds.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		creds.RefreshToken = tokens.RefreshToken
	}
	creds.ExpiresAt = time.Time{}
	if tokens.ExpiresIn > 0 {
		creds.ExpiresAt = a.Clock.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	if err := a.Sessions.StoreData(ctx, a.Key(profileID), creds); err != nil {
		return domain.WebsiteStatus{}, err
	}
	return a.verify(ctx, profileID, creds)
}

func (a *Adapter) Post(ctx context.Context, sub *domain.Submission, data domain.PostData) (domain.PostResult, error) {
	result := a.Result(data)
	opts, err := website.Options[Options](data)
	if err != nil {
		return a.Fail(result, err)
	}
	creds, found, err := a.load(ctx, data.ProfileID)
	if err != nil {
		return a.Fail(result, err)
	}
	if !found {
		return a.Fail(result, &website.PostingError{Website: Name, StatusCode: http.StatusUnauthorized, Message: "not logged in"})
	}
	client := a.Client(data.ProfileID)
	base := a.instance(creds)

	var files []domain.PostFile
	switch data.Type {
	case domain.TypeSubmission:
		if data.Primary != nil {
			files = append(files, *data.Primary)
		}
		files = append(files, data.Additional...)
		if len(files) > maxMedia {
			files = files[:maxMedia]
		}
	case domain.TypeJournal:
	default:
		panic(website.UnknownType(Name, data.Type))
	}

	form := url.Values{}
	for _, f := range files {
		id, err := a.upload(ctx, client, base, creds.AccessToken, f, opts.AltText)
		if err != nil {
			return a.Fail(result, err)
		}
		form.Add("media_ids[]", id)
	}

	form.Set("status", composeStatus(data, a.maxChars(data.ProfileID)))
	if data.Rating != domain.RatingGeneral && data.Rating != "" {
		form.Set("sensitive", "true")
	}
	if opts.SpoilerText != "" {
		form.Set("spoiler_text", opts.SpoilerText)
	}
	if opts.Visibility != "" {
		form.Set("visibility", opts.Visibility)
	}

	resp, err := client.Do(ctx, website.Request{
		Method: http.MethodPost,
		Path:   base + "/api/v1/statuses",
		Header: bearer(creds.AccessToken),
		Form:   form,
	})
	if err != nil {
		return a.Fail(result, err)
	}
	if !resp.OK() {
		return a.Fail(result, resp.Error(Name, apiError(resp, "cannot publish status")))
	}
	var status statusResponse
	if err := resp.DecodeJSON(&status); err != nil {
		return a.Fail(result, err)
	}
	result.Success = true
	result.SrcURL = status.URL
	result.Response = string(resp.Body)
	logger.Log.Info("status published", "component", Name, "profile", data.ProfileID, "id", status.ID, "media", len(files))
	return result, nil
}

func (a *Adapter) upload(ctx context.Context, client *website.Client, base, token string, f domain.PostFile, alt string) (string, error) {
	form := &website.Multipart{Files: []website.FilePart{{Field: "file", File: f}}}
	if alt != "" {
		form.Fields = append(form.Fields, website.Field{Name: "description", Value: alt})
	}
	resp, err := client.Do(ctx, website.Request{Method: http.MethodPost, Path: base + "/api/v2/media", Header: bearer(token), Multipart: form})
	if err != nil {
		return "", err
	}
	// 202 means the file is still being processed; the id is usable.
	if !resp.OK() {
		return "", resp.Error(Name, apiError(resp, "cannot upload "+f.Name))
	}
	var media mediaResponse
	if err := resp.DecodeJSON(&media); err != nil {
		return "", err
	}
	return media.ID, nil
}

func apiError(resp *website.Response, fallback string) string {
	var body errorResponse
	if resp.DecodeJSON(&body) == nil && body.Error != "" {
		return body.Error
	}
	return fallback
}

func (a *Adapter) maxChars(profileID string) int {
	if n, err := strconv.Atoi(a.Sessions.Get(a.Key(profileID)).Values[maxCharactersValue]); err == nil && n > 0 {
		return n
	}
	return defaultMaxChars
}

// composeStatus puts title, description and hashtags together so the whole
// status fits limit: the description is cut first, then trailing hashtags
// are dropped.
func composeStatus(data domain.PostData, limit int) string {
	var tags []string
	for _, t := range data.Tags {
		if h := hashtag(t); h != "" {
			tags = append(tags, h)
		}
	}
	join := func(desc string, tags []string) string {
		var parts []string
		if data.Title != "" {
			parts = append(parts, data.Title)
		}
		if desc != "" {
			parts = append(parts, desc)
		}
		if len(tags) > 0 {
			parts = append(parts, strings.Join(tags, " "))
		}
		return strings.Join(parts, "\n\n")
	}

	for len(tags) > 0 && utf8.RuneCountInString(join("", tags)) > limit {
		tags = tags[:len(tags)-1]
	}
	desc := strings.TrimSpace(data.Description)
	if desc != "" {
		room := limit
		if base := utf8.RuneCountInString(join("", tags)); base > 0 {
			room -= base + 2
		}
		if utf8.RuneCountInString(desc) > room {
			if room <= 1 {
				desc = ""
			} else {
				desc = string([]rune(desc)[:room-1]) + "…"
			}
		}
	}

	status := join(desc, tags)
	// Only an oversized title gets here; validation blocks that case.
	if r := []rune(status); len(r) > limit && limit > 1 {
		status = string(r[:limit-1]) + "…"
	}
	return status
}

func hashtag(tag string) string {
	var b strings.Builder
	for _, r := range tag {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}

func (a *Adapter) checkLength(_ *domain.Submission, data domain.PostData, report *validation.Report) {
	limit := a.maxChars(data.ProfileID)
	if n := utf8.RuneCountInString(data.Title); n > limit {
		report.Problem(data.Login.Website, "title is %d characters; the instance allows %d", n, limit)
		return
	}
	if n := utf8.RuneCountInString(composeStatus(domain.PostData{Title: data.Title, Description: data.Description, Tags: data.Tags}, math.MaxInt)); n > limit {
		report.Warn(data.Login.Website, "status is %d characters; the instance allows %d, the description or hashtags will be shortened", n, limit)
	}
}

func checkMediaCount(sub *domain.Submission, data domain.PostData, report *validation.Report) {
	if data.Type != domain.TypeSubmission {
		return
	}
	n := len(sub.Additional)
	if sub.Primary != nil {
		n++
	}
	if n > maxMedia {
		report.Warn(data.Login.Website, "only the first %d files will be attached", maxMedia)
	}
}
