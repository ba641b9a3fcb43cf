// Package inkbunny uploads art through the Inkbunny API: files go up with
// api_upload.php, then api_editsubmission.php sets the details and
// publishes.
package inkbunny

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
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
	Name        = "inkbunny"
	minKeywords = 4
	// errInvalidSession is Inkbunny's error_code for an unknown or expired sid.
	errInvalidSession = 2
)

// Options follow api_editsubmission.php. Type is Inkbunny's submission type
// id, 1 (picture) when empty.
type Options struct {
	Type        string `json:"type" validate:"omitempty,oneof=1 2 3 4 5 8 9 10 11 12 13 14 15"`
	Scraps      bool   `json:"scraps"`
	FriendsOnly bool   `json:"friends_only"`
	BlockGuests bool   `json:"block_guests"`
	NoNotify    bool   `json:"no_notify"`
}

type credentials struct {
	SID      string `cbor:"sid"`
	Username string `cbor:"username"`
	UserID   string `cbor:"user_id"`
}

// apiResponse covers the fields of every endpoint used here.
type apiResponse struct {
	SID          string          `json:"sid"`
	UserID       json.RawMessage `json:"user_id"`
	SubmissionID json.RawMessage `json:"submission_id"`
	ErrorCode    *int            `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
}

// rawString reads a JSON value Inkbunny sends as either a number or a string.
func rawString(raw json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

// ratingTags maps ratings onto Inkbunny's content tags: 2 nudity, 3 violence,
// 4 sexual themes, 5 strong violence.
var ratingTags = map[domain.Rating][]string{
	domain.RatingGeneral: nil,
	domain.RatingMature:  {"2"},
	domain.RatingAdult:   {"4"},
	domain.RatingExtreme: {"4", "5"},
}

func Config(baseURL string, refresh time.Duration) website.Config {
	return website.Config{
		Name:            Name,
		DisplayName:     "Inkbunny",
		BaseURL:         baseURL,
		RefreshInterval: refresh,
		Markup:          markup.BBCode(),
		NewOptions:      func() any { return &Options{} },
		Rules: validation.Rules{
			AcceptedFiles:   []string{"png", "jpeg", "jpg", "gif", "swf", "flv", "mp4", "mp3", "doc", "rtf", "txt", "plain"},
			MaxFileSize:     validation.SizeLimits{Image: validation.MB(200), Default: validation.MB(200)},
			MinTags:         minKeywords,
			TitleLimit:      256,
			SubmissionTypes: []domain.SubmissionType{domain.TypeSubmission},
		},
	}
}

type Adapter struct {
	website.Base
}

func New(client *website.Client, sessions *session.Store, clk clock.Clock) *Adapter {
	return &Adapter{Base: website.NewBase(Name, client, sessions, clk)}
}

func (a *Adapter) call(ctx context.Context, profileID, endpoint string, req website.Request) (apiResponse, *website.Response, error) {
	req.Method = http.MethodPost
	req.Path = "/" + endpoint
	resp, err := a.Client(profileID).Do(ctx, req)
	if err != nil {
		return apiResponse{}, nil, err
	}
	var body apiResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return apiResponse{}, resp, resp.Error(Name, endpoint+" returned an unexpected response")
	}
	return body, resp, nil
}

func (a *Adapter) CheckStatus(ctx context.Context, profileID string, auth website.AuthData) (domain.WebsiteStatus, error) {
	key := a.Key(profileID)
	var creds credentials
	if len(auth) > 0 {
		body, _, err := a.call(ctx, profileID, "api_login.php", website.Request{Form: url.Values{
			"username": {auth["username"]},
			"password": {auth["password"]},
		}})
		if err != nil {
			return domain.WebsiteStatus{}, err
		}
		if body.ErrorCode != nil || body.SID == "" {
			logger.Log.Info("login rejected", "component", Name, "profile", profileID, "message", body.ErrorMessage)
			return a.LoggedOut(profileID), nil
		}
		creds = credentials{SID: body.SID, Username: auth["username"], UserID: rawString(body.UserID)}
		if err := a.Sessions.StoreData(ctx, key, creds); err != nil {
			return domain.WebsiteStatus{}, err
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

	// api_userrating.php is the cheapest call that validates a sid.
	body, _, err := a.call(ctx, profileID, "api_userrating.php", website.Request{Form: url.Values{"sid": {creds.SID}}})
	if err != nil {
		return domain.WebsiteStatus{}, err
	}
	if body.ErrorCode != nil {
		if *body.ErrorCode == errInvalidSession {
			return a.LoggedOut(profileID), nil
		}
		return domain.WebsiteStatus{}, &website.PostingError{Website: Name, Message: body.ErrorMessage}
	}

	a.Sessions.Put(key, session.Entry{Username: creds.Username, AccountID: creds.UserID})
	return domain.WebsiteStatus{Username: creds.Username, Status: domain.LoggedIn}, nil
}

func (a *Adapter) Post(ctx context.Context, sub *domain.Submission, data domain.PostData) (domain.PostResult, error) {
	result := a.Result(data)
	switch data.Type {
	case domain.TypeSubmission:
	case domain.TypeJournal:
		return a.Fail(result, &website.PostingError{Website: Name, Message: "journals are not supported"})
	default:
		panic(website.UnknownType(Name, data.Type))
	}
	opts, err := website.Options[Options](data)
	if err != nil {
		return a.Fail(result, err)
	}
	var creds credentials
	found, err := a.Sessions.LoadData(ctx, a.Key(data.ProfileID), &creds)
	if err != nil {
		return a.Fail(result, err)
	}
	if !found {
		return a.Fail(result, &website.PostingError{Website: Name, StatusCode: http.StatusUnauthorized, Message: "not logged in"})
	}

	upload := &website.Multipart{Fields: []website.Field{{Name: "sid", Value: creds.SID}}}
	if data.Primary != nil {
		upload.Files = append(upload.Files, website.FilePart{Field: "uploadedfile[]", File: *data.Primary})
	}
	for _, f := range data.Additional {
		upload.Files = append(upload.Files, website.FilePart{Field: "uploadedfile[]", File: f})
	}
	if data.Thumbnail != nil {
		upload.Files = append(upload.Files, website.FilePart{Field: "uploadedthumbnail[]", File: *data.Thumbnail})
	}
	uploaded, resp, err := a.call(ctx, data.ProfileID, "api_upload.php", website.Request{Multipart: upload})
	if err != nil {
		return a.Fail(result, err)
	}
	if uploaded.ErrorCode != nil {
		return a.Fail(result, resp.Error(Name, uploaded.ErrorMessage))
	}
	submissionID := rawString(uploaded.SubmissionID)

	form := url.Values{
		"sid":           {creds.SID},
		"submission_id": {submissionID},
		"title":         {data.Title},
		"desc":          {data.Description},
		"keywords":      {strings.Join(data.Tags, ",")},
		"type":          {opts.Type},
		"visibility":    {"yes"},
	}
	if opts.Type == "" {
		form.Set("type", "1")
	}
	if opts.NoNotify {
		form.Set("visibility", "yes_nowatch")
	}
	for _, tag := range ratingTags[data.Rating] {
		form.Set("tag["+tag+"]", "yes")
	}
	if opts.Scraps {
		form.Set("scraps", "yes")
	}
	if opts.FriendsOnly {
		form.Set("friends_only", "yes")
	}
	if opts.BlockGuests {
		form.Set("guest_block", "yes")
	}

	edited, resp, err := a.call(ctx, data.ProfileID, "api_editsubmission.php", website.Request{Form: form})
	if err != nil {
		return a.Fail(result, err)
	}
	if edited.ErrorCode != nil {
		return a.Fail(result, resp.Error(Name, edited.ErrorMessage))
	}

	result.Success = true
	result.SrcURL = a.Client(data.ProfileID).URL("/s/" + submissionID)
	result.Response = string(resp.Body)
	logger.Log.Info("submission published", "component", Name, "profile", data.ProfileID, "submission", submissionID)
	return result, nil
}
