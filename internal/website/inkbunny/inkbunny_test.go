package inkbunny

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/itchan-dev/crosspost/internal/markup"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInkbunny struct {
	sid     string
	files   []string
	thumbs  []string
	edit    url.Values
	failing string
}

func (f *fakeInkbunny) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	invalid := `{"error_code":2,"error_message":"Invalid Session ID sent as variable 'sid'."}`
	mux.HandleFunc("POST /api_login.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("password") != "hunter2" {
			w.Write([]byte(`{"error_code":0,"error_message":"Invalid login."}`))
			return
		}
		w.Write([]byte(`{"sid":"` + f.sid + `","user_id":"1234","ratingsmask":"11111"}`))
	})
	mux.HandleFunc("POST /api_userrating.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("sid") != f.sid {
			w.Write([]byte(invalid))
			return
		}
		w.Write([]byte(`{"sid":"` + f.sid + `","user_ratings":{}}`))
	})
	mux.HandleFunc("POST /api_upload.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		if r.FormValue("sid") != f.sid {
			w.Write([]byte(invalid))
			return
		}
		f.files, f.thumbs = nil, nil
		for _, h := range r.MultipartForm.File["uploadedfile[]"] {
			f.files = append(f.files, h.Filename)
		}
		for _, h := range r.MultipartForm.File["uploadedthumbnail[]"] {
			f.thumbs = append(f.thumbs, h.Filename)
		}
		w.Write([]byte(`{"sid":"` + f.sid + `","submission_id":555}`))
	})
	mux.HandleFunc("POST /api_editsubmission.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.edit = r.PostForm
		if f.failing != "" {
			w.Write([]byte(`{"error_code":9,"error_message":"` + f.failing + `"}`))
			return
		}
		w.Write([]byte(`{"sid":"` + f.sid + `","submission_id":"555"}`))
	})
	return mux
}

func setup(t *testing.T) (*Adapter, *fakeInkbunny) {
	t.Helper()
	fake := &fakeInkbunny{sid: "sid-1"}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	sessions := session.New(session.NewMemory(), nil)
	return New(website.NewClient(Name, server.URL, time.Second), sessions, clock.Fake(time.Now())), fake
}

func TestCheckStatus(t *testing.T) {
	a, fake := setup(t)
	ctx := context.Background()

	status, err := a.CheckStatus(ctx, "p1", website.AuthData{"username": "artist", "password": "nope"})
	require.NoError(t, err)
	assert.False(t, status.LoggedIn())

	status, err = a.CheckStatus(ctx, "p1", website.AuthData{"username": "artist", "password": "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, domain.WebsiteStatus{Username: "artist", Status: domain.LoggedIn}, status)
	assert.Equal(t, "1234", a.Sessions.Get(a.Key("p1")).AccountID)

	// The site forgets the session.
	fake.sid = "sid-2"
	status, err = a.CheckStatus(ctx, "p1", nil)
	require.NoError(t, err)
	assert.False(t, status.LoggedIn())
	assert.Equal(t, session.Entry{}, a.Sessions.Get(a.Key("p1")))
}

func loggedIn(t *testing.T) (*Adapter, *fakeInkbunny) {
	t.Helper()
	a, fake := setup(t)
	status, err := a.CheckStatus(context.Background(), "p1", website.AuthData{"username": "artist", "password": "hunter2"})
	require.NoError(t, err)
	require.True(t, status.LoggedIn())
	return a, fake
}

func postData() domain.PostData {
	file := func(name string) domain.PostFile {
		return domain.PostFile{FileDescriptor: domain.FileDescriptor{Name: name, MimeType: "image/png"}, Data: []byte("png")}
	}
	primary, thumb := file("a.png"), file("t.png")
	return domain.PostData{
		Title:       "Fox",
		Description: "[b]bold[/b]",
		Tags:        []string{"fox", "art", "digital", "wip"},
		Type:        domain.TypeSubmission,
		Rating:      domain.RatingExtreme,
		ProfileID:   "p1",
		Primary:     &primary,
		Additional:  []domain.PostFile{file("b.png")},
		Thumbnail:   &thumb,
		Options:     &Options{Scraps: true, NoNotify: true},
	}
}

func TestPost(t *testing.T) {
	a, fake := loggedIn(t)
	result, err := a.Post(context.Background(), &domain.Submission{}, postData())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, a.Client("p1").URL("/s/555"), result.SrcURL)

	assert.Equal(t, []string{"a.png", "b.png"}, fake.files)
	assert.Equal(t, []string{"t.png"}, fake.thumbs)
	assert.Equal(t, "555", fake.edit.Get("submission_id"))
	assert.Equal(t, "fox,art,digital,wip", fake.edit.Get("keywords"))
	assert.Equal(t, "1", fake.edit.Get("type"))
	assert.Equal(t, "yes_nowatch", fake.edit.Get("visibility"))
	assert.Equal(t, "yes", fake.edit.Get("tag[4]"))
	assert.Equal(t, "yes", fake.edit.Get("tag[5]"))
	assert.Empty(t, fake.edit.Get("tag[2]"))
	assert.Equal(t, "yes", fake.edit.Get("scraps"))
}

func TestPostErrors(t *testing.T) {
	a, fake := loggedIn(t)
	ctx := context.Background()

	fake.failing = "Upload ticket expired"
	result, err := a.Post(ctx, &domain.Submission{}, postData())
	require.Error(t, err)
	assert.Equal(t, "Upload ticket expired", result.Error)

	journal := postData()
	journal.Type = domain.TypeJournal
	_, err = a.Post(ctx, &domain.Submission{}, journal)
	assert.ErrorContains(t, err, "journals are not supported")

	logout := postData()
	logout.ProfileID = "p9"
	_, err = a.Post(ctx, &domain.Submission{}, logout)
	assert.True(t, website.IsUnauthorized(err))
}

func TestRules(t *testing.T) {
	cfg := Config("https://inkbunny.net", time.Hour)
	v := validation.New(website.NewRegistry(website.Entry{Config: cfg, Adapter: New(website.NewClient(Name, "http://x", time.Second), session.New(session.NewMemory(), nil), nil)}))

	sub := &domain.Submission{Type: domain.TypeJournal, Rating: domain.RatingGeneral}
	data := domain.PostData{Type: domain.TypeJournal, Rating: domain.RatingGeneral, Tags: []string{"a", "b", "c"},
		Login: domain.LoginInformation{Website: Name}}
	report := v.ValidateWebsite(sub, data, cfg.Rules, nil)
	require.Len(t, report.Problems, 2)
	assert.Equal(t, "does not support journal posts", report.Problems[0].Message)
	assert.Equal(t, "requires at least 4 tags (has 3)", report.Problems[1].Message)

	assert.Equal(t, "[b]bold[/b]", markup.BBCode().Apply("**bold**"))
}
