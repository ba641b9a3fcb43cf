// Package itchan posts to an itchan imageboard: a submission becomes a new
// thread on the selected board with the files attached to the OP.
package itchan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/itchan-dev/crosspost/internal/markup"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/itchan-dev/crosspost/shared/logger"
)

const (
	Name        = "itchan"
	tokenCookie = "accessToken"
	titleLimit  = 100
	textLimit   = 10000
)

type Options struct {
	Board string `json:"board" validate:"required"`
}

func (o *Options) SelectedFolders() []string {
	return []string{o.Board}
}

// credentials are kept sealed so an expired token can be renewed.
type credentials struct {
	Email    string `cbor:"email"`
	Password string `cbor:"password"`
	Token    string `cbor:"token"`
}

type createThreadRequest struct {
	Title     string               `json:"title"`
	OpMessage createMessageRequest `json:"op_message"`
}

type createMessageRequest struct {
	Text string `json:"text,omitempty"`
}

type boardList struct {
	Boards []struct {
		Name      string
		ShortName string
	} `json:"boards"`
}

type loginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

func Config(baseURL string, refresh time.Duration) website.Config {
	return website.Config{
		Name:            Name,
		DisplayName:     "itchan",
		BaseURL:         baseURL,
		RefreshInterval: refresh,
		Markup:          markup.Markdown(),
		NewOptions:      func() any { return &Options{} },
		Rules: validation.Rules{
			AcceptedFiles:    []string{"png", "jpeg", "jpg", "gif", "webp", "mp4", "webm"},
			MaxFileSize:      validation.SizeLimits{Image: validation.MB(20), Video: validation.MB(50), Default: validation.MB(20)},
			DescriptionLimit: textLimit,
			TitleLimit:       titleLimit,
			Ratings:          []domain.Rating{domain.RatingGeneral, domain.RatingMature},
		},
	}
}

type Adapter struct {
	website.Base
}

func New(client *website.Client, sessions *session.Store, clk clock.Clock) *Adapter {
	return &Adapter{Base: website.NewBase(Name, client, sessions, clk)}
}

func (a *Adapter) CheckStatus(ctx context.Context, profileID string, auth website.AuthData) (domain.WebsiteStatus, error) {
	key := a.Key(profileID)
	var creds credentials
	if len(auth) > 0 {
		creds = credentials{Email: auth["email"], Password: auth["password"]}
		if creds.Email == "" || creds.Password == "" {
			return a.LoggedOut(profileID), nil
		}
	} else {
		found, err := a.Sessions.LoadData(ctx, key, &creds)
		if err != nil {
			return domain.WebsiteStatus{}, err
		}
		if !found {
			return a.LoggedOut(profileID), nil
		}
	}

	if len(auth) > 0 || a.expired(creds.Token) {
		token, err := a.login(ctx, profileID, creds)
		if err != nil {
			return domain.WebsiteStatus{}, err
		}
		if token == "" {
			return a.LoggedOut(profileID), nil
		}
		creds.Token = token
		if err := a.Sessions.StoreData(ctx, key, creds); err != nil {
			return domain.WebsiteStatus{}, err
		}
	}
	a.setToken(profileID, creds.Token)

	resp, err := a.Client(profileID).Do(ctx, website.Request{Path: "/v1/boards"})
	if err != nil {
		return domain.WebsiteStatus{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return a.LoggedOut(profileID), nil
	}
	if !resp.OK() {
		return domain.WebsiteStatus{}, resp.Error(Name, "cannot list boards")
	}
	var boards boardList
	if err := resp.DecodeJSON(&boards); err != nil {
		return domain.WebsiteStatus{}, err
	}

	entry := session.Entry{Username: creds.Email}
	if claims, ok := a.claims(creds.Token); ok {
		if email, _ := claims["email"].(string); email != "" {
			entry.Username = email
		}
		if uid, ok := claims["uid"].(float64); ok {
			entry.AccountID = strconv.FormatInt(int64(uid), 10)
		}
	}
	for _, b := range boards.Boards {
		entry.Folders = append(entry.Folders, domain.Folder{ID: b.ShortName, Title: b.Name})
	}
	a.Sessions.Put(key, entry)
	return domain.WebsiteStatus{Username: entry.Username, Status: domain.LoggedIn}, nil
}

// login returns an empty token when the credentials are rejected.
func (a *Adapter) login(ctx context.Context, profileID string, creds credentials) (string, error) {
	resp, err := a.Client(profileID).Do(ctx, website.Request{
		Method: http.MethodPost,
		Path:   "/v1/auth/login",
		JSON:   map[string]string{"email": creds.Email, "password": creds.Password},
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden {
		logger.Log.Info("login rejected", "component", Name, "profile", profileID, "status", resp.StatusCode)
		return "", nil
	}
	if !resp.OK() {
		return "", resp.Error(Name, "login failed")
	}

	var body loginResponse
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.AccessToken != "" {
		return body.AccessToken, nil
	}
	for _, c := range (&http.Response{Header: resp.Header}).Cookies() {
		if c.Name == tokenCookie {
			return c.Value, nil
		}
	}
	return "", resp.Error(Name, "login response carries no token")
}

func (a *Adapter) claims(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	// The signing key belongs to the site; only the payload is of interest.
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func (a *Adapter) expired(token string) bool {
	claims, ok := a.claims(token)
	if !ok {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !a.Clock.Now().Before(exp.Time)
}

func (a *Adapter) setToken(profileID, token string) {
	u, err := url.Parse(a.Client(profileID).URL("/"))
	if err != nil {
		return
	}
	a.Sessions.Jar(a.Key(profileID)).SetCookies(u, []*http.Cookie{{Name: tokenCookie, Value: token, Path: "/"}})
}

func (a *Adapter) Post(ctx context.Context, sub *domain.Submission, data domain.PostData) (domain.PostResult, error) {
	result := a.Result(data)
	opts, err := website.Options[Options](data)
	if err != nil {
		return a.Fail(result, err)
	}

	payload := createThreadRequest{
		Title:     truncate(data.Title, titleLimit),
		OpMessage: createMessageRequest{Text: data.Description},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return a.Fail(result, err)
	}
	form := &website.Multipart{Fields: []website.Field{{Name: "json", Value: string(body)}}}

	switch data.Type {
	case domain.TypeSubmission:
		if data.Primary != nil {
			form.Files = append(form.Files, website.FilePart{Field: "attachments", File: *data.Primary})
		}
		for _, f := range data.Additional {
			form.Files = append(form.Files, website.FilePart{Field: "attachments", File: f})
		}
	case domain.TypeJournal:
		// a text-only thread
	default:
		panic(website.UnknownType(Name, data.Type))
	}

	resp, err := a.Client(data.ProfileID).Do(ctx, website.Request{
		Method:    http.MethodPost,
		Path:      "/v1/" + url.PathEscape(opts.Board),
		Multipart: form,
	})
	if err != nil {
		return a.Fail(result, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return a.Fail(result, resp.Error(Name, fmt.Sprintf("cannot create thread: %s", firstLine(resp.Body))))
	}

	threadID := strings.TrimSpace(string(resp.Body))
	result.Success = true
	result.SrcURL = a.Client(data.ProfileID).URL(fmt.Sprintf("/%s/%s", opts.Board, threadID))
	result.Response = string(resp.Body)
	logger.Log.Info("thread created", "component", Name, "profile", data.ProfileID, "board", opts.Board, "thread", threadID)
	return result, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func firstLine(body []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(body)), "\n")
	return line
}
