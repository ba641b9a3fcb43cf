package weasyl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const submitPage = `<html><body><form method="post" enctype="multipart/form-data">
<input type="hidden" name="token" value="csrf-123">
<select name="folderid">
  <option value="">None</option>
  <option value="11">Sketches</option>
  <optgroup label="Comics">
    <option value="21">Chapter 1</option>
    <option value="22">Chapter 2</option>
  </optgroup>
</select>
</form></body></html>`

const errorPage = `<html><body><div id="error_content" class="content"><p>Invalid token</p></div></body></html>`

type fakeWeasyl struct {
	rejectNext bool
	fields     map[string]string
	files      []string
}

func (f *fakeWeasyl) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	authed := func(r *http.Request) bool { return r.Header.Get(apiKeyHeader) == "good-key" }
	mux.HandleFunc("GET /api/whoami", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, `{"error":{"name":"Unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"login":"artist","userid":77}`))
	})
	mux.HandleFunc("GET /submit/{kind}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(submitPage))
	})
	mux.HandleFunc("POST /submit/{kind}", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		if f.rejectNext || r.FormValue("token") != "csrf-123" {
			f.rejectNext = false
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(errorPage))
			return
		}
		f.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f.fields[k] = v[0]
		}
		f.files = nil
		for field, headers := range r.MultipartForm.File {
			for _, h := range headers {
				f.files = append(f.files, field+":"+h.Filename)
			}
		}
		if r.PathValue("kind") == "journal" {
			http.Redirect(w, r, "/journal/55/news", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/manage/thumbnail?submitid=99", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /manage/thumbnail", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>thumbnail editor</body></html>"))
	})
	mux.HandleFunc("GET /journal/{id}/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>journal</body></html>"))
	})
	return mux
}

func setup(t *testing.T) (*Adapter, *fakeWeasyl) {
	t.Helper()
	fake := &fakeWeasyl{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	sessions := session.New(session.NewMemory(), nil)
	return New(website.NewClient(Name, server.URL, time.Second), sessions, clock.Fake(time.Now())), fake
}

func TestParseFolders(t *testing.T) {
	folders := parseFolders([]byte(submitPage))
	assert.Equal(t, []domain.Folder{
		{ID: "11", Title: "Sketches"},
		{Title: "Comics", Subfolders: []domain.Folder{{ID: "21", Title: "Chapter 1"}, {ID: "22", Title: "Chapter 2"}}},
	}, folders)
	assert.Nil(t, parseFolders([]byte("<html></html>")))
}

func TestScrapeHelpers(t *testing.T) {
	assert.Equal(t, "csrf-123", csrfToken([]byte(submitPage)))
	assert.Empty(t, csrfToken([]byte("<p>nothing</p>")))
	assert.Equal(t, "Invalid token", errorMessage([]byte(errorPage)))
	assert.Empty(t, errorMessage([]byte(submitPage)))
}

func TestCheckStatus(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	status, err := a.CheckStatus(ctx, "p1", website.AuthData{"api_key": "bad-key"})
	require.NoError(t, err)
	assert.False(t, status.LoggedIn())

	status, err = a.CheckStatus(ctx, "p1", website.AuthData{"api_key": "good-key"})
	require.NoError(t, err)
	assert.Equal(t, domain.WebsiteStatus{Username: "artist", Status: domain.LoggedIn}, status)
	assert.Len(t, a.Folders("p1"), 2)
	assert.Equal(t, "77", a.Sessions.Get(a.Key("p1")).AccountID)

	// The key was stored; a plain re-check works from durable data.
	a.Sessions.Clear(a.Key("p1"))
	status, err = a.CheckStatus(ctx, "p1", nil)
	require.NoError(t, err)
	assert.True(t, status.LoggedIn())

	status, err = a.CheckStatus(ctx, "p2", nil)
	require.NoError(t, err)
	assert.False(t, status.LoggedIn())
}

func loggedIn(t *testing.T) (*Adapter, *fakeWeasyl) {
	t.Helper()
	a, fake := setup(t)
	status, err := a.CheckStatus(context.Background(), "p1", website.AuthData{"api_key": "good-key"})
	require.NoError(t, err)
	require.True(t, status.LoggedIn())
	return a, fake
}

func TestPostSubmission(t *testing.T) {
	a, fake := loggedIn(t)
	primary := domain.PostFile{FileDescriptor: domain.FileDescriptor{Name: "art.png", MimeType: "image/png"}, Data: []byte("png")}
	thumb := domain.PostFile{FileDescriptor: domain.FileDescriptor{Name: "thumb.jpg", MimeType: "image/jpeg"}, Data: []byte("jpg")}

	result, err := a.Post(context.Background(), &domain.Submission{}, domain.PostData{
		Title:       "Art",
		Description: "desc",
		Tags:        []string{"Digital Art", "fox"},
		Type:        domain.TypeSubmission,
		Rating:      domain.RatingMature,
		ProfileID:   "p1",
		Primary:     &primary,
		Thumbnail:   &thumb,
		Options:     &Options{Folder: "21", Category: "1030", Critique: true},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, a.Client("p1").URL("/submission/99"), result.SrcURL)

	assert.Equal(t, "30", fake.fields["rating"])
	assert.Equal(t, "digital_art fox", fake.fields["tags"])
	assert.Equal(t, "21", fake.fields["folderid"])
	assert.Equal(t, "on", fake.fields["critique"])
	assert.ElementsMatch(t, []string{"submitfile:art.png", "thumbfile:thumb.jpg"}, fake.files)
}

func TestPostJournal(t *testing.T) {
	a, fake := loggedIn(t)
	result, err := a.Post(context.Background(), &domain.Submission{}, domain.PostData{
		Title: "News", Description: "hello", Type: domain.TypeJournal, Rating: domain.RatingGeneral, ProfileID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, a.Client("p1").URL("/journal/55"), result.SrcURL)
	assert.Equal(t, "hello", fake.fields["content"])
	assert.Empty(t, fake.files)
}

func TestPostInvalidToken(t *testing.T) {
	a, fake := loggedIn(t)
	fake.rejectNext = true

	result, err := a.Post(context.Background(), &domain.Submission{}, domain.PostData{
		Title: "News", Type: domain.TypeJournal, Rating: domain.RatingGeneral, ProfileID: "p1",
	})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid token", result.Error)
	assert.Contains(t, result.Response, "error_content")
	assert.False(t, website.IsUnauthorized(err))
	assert.Contains(t, Config("https://www.weasyl.com", time.Hour).RetrySignatures, "invalid token")
}

func TestSubmitPath(t *testing.T) {
	file := func(mime string) *domain.PostFile {
		return &domain.PostFile{FileDescriptor: domain.FileDescriptor{MimeType: mime}}
	}
	assert.Equal(t, "/submit/journal", submitPath(domain.PostData{Type: domain.TypeJournal}))
	assert.Equal(t, "/submit/visual", submitPath(domain.PostData{Type: domain.TypeSubmission, Primary: file("image/png")}))
	assert.Equal(t, "/submit/multimedia", submitPath(domain.PostData{Type: domain.TypeSubmission, Primary: file("audio/mpeg")}))
	assert.Equal(t, "/submit/literary", submitPath(domain.PostData{Type: domain.TypeSubmission, Primary: file("application/pdf")}))
}
