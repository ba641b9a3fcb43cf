// Package weasyl posts art and journals to weasyl.com. The account is
// identified with an API key; forms additionally need the CSRF token
// rendered into each submit page.
package weasyl

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/itchan-dev/crosspost/internal/markup"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/itchan-dev/crosspost/shared/logger"
)

const (
	Name         = "weasyl"
	apiKeyHeader = "X-Weasyl-API-Key"
)

// Options mirror the submit form. Category is weasyl's subtype code.
type Options struct {
	Folder   string `json:"folder"`
	Category string `json:"category" validate:"omitempty,oneof=1010 1020 1030 1040 1050 1060 1070 1075 1080 1999 2010 2020 2030 2040 2999 3010 3020 3030 3040 3999"`
	Critique bool   `json:"critique"`
	NoNotify bool   `json:"no_notify"`
}

func (o *Options) SelectedFolders() []string {
	return []string{o.Folder}
}

type credentials struct {
	APIKey string `cbor:"api_key"`
}

type whoami struct {
	Login  string `json:"login"`
	UserID int64  `json:"userid"`
}

var ratings = map[domain.Rating]string{
	domain.RatingGeneral: "10",
	domain.RatingMature:  "30",
	domain.RatingAdult:   "40",
}

var submissionPath = regexp.MustCompile(`/(submission|character|journal)/(\d+)`)

func Config(baseURL string, refresh time.Duration) website.Config {
	return website.Config{
		Name:            Name,
		DisplayName:     "Weasyl",
		BaseURL:         baseURL,
		RefreshInterval: refresh,
		Markup:          markup.Markdown(),
		NewOptions:      func() any { return &Options{} },
		// Weasyl reports a stale form token as "Invalid token".
		RetrySignatures: []string{"invalid token"},
		Rules: validation.Rules{
			AcceptedFiles: []string{"jpeg", "jpg", "png", "gif", "mp3", "mpeg", "pdf", "swf", "txt", "plain", "md", "markdown"},
			MaxFileSize: validation.SizeLimits{
				Image:   validation.MB(50),
				Audio:   validation.MB(15),
				Text:    validation.MB(2),
				Default: validation.MB(10),
			},
			MinTags:    2,
			TitleLimit: 100,
			Ratings:    []domain.Rating{domain.RatingGeneral, domain.RatingMature, domain.RatingAdult},
		},
	}
}

type Adapter struct {
	website.Base
}

func New(client *website.Client, sessions *session.Store, clk clock.Clock) *Adapter {
	return &Adapter{Base: website.NewBase(Name, client, sessions, clk)}
}

func (a *Adapter) header(apiKey string) http.Header {
	return http.Header{apiKeyHeader: {apiKey}}
}

func (a *Adapter) CheckStatus(ctx context.Context, profileID string, auth website.AuthData) (domain.WebsiteStatus, error) {
	key := a.Key(profileID)
	var creds credentials
	if len(auth) > 0 {
		creds.APIKey = strings.TrimSpace(auth["api_key"])
		if creds.APIKey == "" {
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

	client := a.Client(profileID)
	resp, err := client.Do(ctx, website.Request{Path: "/api/whoami", Header: a.header(creds.APIKey)})
	if err != nil {
		return domain.WebsiteStatus{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return a.LoggedOut(profileID), nil
	}
	if !resp.OK() {
		return domain.WebsiteStatus{}, resp.Error(Name, "whoami failed")
	}
	var me whoami
	if err := resp.DecodeJSON(&me); err != nil {
		return domain.WebsiteStatus{}, err
	}
	if me.Login == "" {
		return a.LoggedOut(profileID), nil
	}

	if len(auth) > 0 {
		if err := a.Sessions.StoreData(ctx, key, creds); err != nil {
			return domain.WebsiteStatus{}, err
		}
	}

	entry := session.Entry{Username: me.Login, AccountID: fmt.Sprint(me.UserID), Values: map[string]string{"api_key": creds.APIKey}}
	page, err := client.Do(ctx, website.Request{Path: "/submit/visual", Header: a.header(creds.APIKey)})
	if err == nil && page.OK() {
		entry.Folders = parseFolders(page.Body)
	} else {
		logger.Log.Warn("cannot load folders", "component", Name, "profile", profileID, "error", err)
	}
	a.Sessions.Put(key, entry)
	return domain.WebsiteStatus{Username: me.Login, Status: domain.LoggedIn}, nil
}

func submitPath(data domain.PostData) string {
	if data.Type == domain.TypeJournal {
		return "/submit/journal"
	}
	if data.Primary == nil {
		return "/submit/visual"
	}
	switch data.Primary.MediaType() {
	case "audio", "video":
		return "/submit/multimedia"
	case "text":
		return "/submit/literary"
	}
	if data.Primary.Subtype() == "pdf" {
		return "/submit/literary"
	}
	return "/submit/visual"
}

func (a *Adapter) Post(ctx context.Context, sub *domain.Submission, data domain.PostData) (domain.PostResult, error) {
	result := a.Result(data)
	opts, err := website.Options[Options](data)
	if err != nil {
		return a.Fail(result, err)
	}
	apiKey := a.Sessions.Get(a.Key(data.ProfileID)).Values["api_key"]
	if apiKey == "" {
		var creds credentials
		if _, err := a.Sessions.LoadData(ctx, a.Key(data.ProfileID), &creds); err != nil {
			return a.Fail(result, err)
		}
		apiKey = creds.APIKey
	}

	client := a.Client(data.ProfileID)
	path := submitPath(data)
	page, err := client.Do(ctx, website.Request{Path: path, Header: a.header(apiKey)})
	if err != nil {
		return a.Fail(result, err)
	}
	if !page.OK() {
		return a.Fail(result, page.Error(Name, "cannot open submit form"))
	}
	token := csrfToken(page.Body)
	if token == "" {
		return a.Fail(result, page.Error(Name, "Invalid token: submit form has no token"))
	}

	form := &website.Multipart{Fields: []website.Field{
		{Name: "token", Value: token},
		{Name: "title", Value: data.Title},
		{Name: "rating", Value: ratings[data.Rating]},
		{Name: "content", Value: data.Description},
		{Name: "tags", Value: strings.Join(tagsFor(data.Tags), " ")},
	}}
	switch data.Type {
	case domain.TypeSubmission:
		form.Fields = append(form.Fields,
			website.Field{Name: "subtype", Value: opts.Category},
			website.Field{Name: "folderid", Value: opts.Folder},
		)
		if opts.Critique {
			form.Fields = append(form.Fields, website.Field{Name: "critique", Value: "on"})
		}
		if opts.NoNotify {
			form.Fields = append(form.Fields, website.Field{Name: "nonotification", Value: "on"})
		}
		if data.Primary != nil {
			form.Files = append(form.Files, website.FilePart{Field: "submitfile", File: *data.Primary})
		}
		if data.Thumbnail != nil {
			form.Files = append(form.Files, website.FilePart{Field: "thumbfile", File: *data.Thumbnail})
		}
	case domain.TypeJournal:
	default:
		panic(website.UnknownType(Name, data.Type))
	}

	resp, err := client.Do(ctx, website.Request{Method: http.MethodPost, Path: path, Header: a.header(apiKey), Multipart: form})
	if err != nil {
		return a.Fail(result, err)
	}
	if msg := errorMessage(resp.Body); msg != "" || !resp.OK() {
		if msg == "" {
			msg = "submission rejected"
		}
		return a.Fail(result, resp.Error(Name, msg))
	}

	src := resp.URL.String()
	if m := submissionPath.FindString(resp.URL.Path); m != "" {
		src = client.URL(m)
	} else if id := resp.URL.Query().Get("submitid"); id != "" {
		// Weasyl sends new visual submissions through the thumbnail editor.
		src = client.URL("/submission/" + id)
	}
	result.Success = true
	result.SrcURL = src
	logger.Log.Info("posted", "component", Name, "profile", data.ProfileID, "url", src)
	return result, nil
}

// tagsFor turns tags into weasyl's underscore form.
func tagsFor(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(strings.ToLower(t)), "_")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
