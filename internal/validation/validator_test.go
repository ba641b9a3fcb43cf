package validation

import (
	"strings"
	"testing"

	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWebsites map[string]bool

func (m mockWebsites) Has(name string) bool { return m[name] }

type testOptions struct {
	Folder     string `json:"folder" validate:"required"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public unlisted"`
}

func (o *testOptions) SelectedFolders() []string { return []string{o.Folder} }

func newValidator() *Validator {
	return New(mockWebsites{"site": true, "other": true})
}

func image(name, mime string, size int64) *domain.FileDescriptor {
	return &domain.FileDescriptor{Name: name, MimeType: mime, Size: size}
}

func messages(problems []domain.Problem) string {
	var parts []string
	for _, p := range problems {
		parts = append(parts, p.Message)
	}
	return strings.Join(parts, "; ")
}

func TestValidateGeneric(t *testing.T) {
	v := newValidator()

	t.Run("valid", func(t *testing.T) {
		sub := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeSubmission, Primary: image("a.png", "image/png", 10)}
		form := domain.FormData{Parts: []domain.WebsitePart{{Website: "site", ProfileID: "p1"}}}
		report := v.Validate(sub, form)
		assert.False(t, report.Blocked())
		assert.Empty(t, sub.Problems)
	})

	t.Run("missing everything", func(t *testing.T) {
		sub := &domain.Submission{Type: domain.TypeSubmission, Problems: []domain.Problem{{Message: "stale"}}}
		report := v.Validate(sub, domain.FormData{})
		require.True(t, report.Blocked())
		got := messages(sub.Problems)
		assert.Contains(t, got, "rating is required")
		assert.Contains(t, got, "primary file is required")
		assert.Contains(t, got, "no website selected")
		assert.NotContains(t, got, "stale")
	})

	t.Run("parts", func(t *testing.T) {
		sub := &domain.Submission{Rating: domain.RatingAdult, Type: domain.TypeJournal}
		form := domain.FormData{Parts: []domain.WebsitePart{
			{Website: "site"},
			{Website: "nowhere", ProfileID: "p1"},
		}}
		report := v.Validate(sub, form)
		require.Len(t, report.Problems, 2)
		assert.Equal(t, domain.Problem{Message: "no login profile selected", Context: "site"}, report.Problems[0])
		assert.Equal(t, "nowhere", report.Problems[1].Context)
	})

	t.Run("bad rating", func(t *testing.T) {
		sub := &domain.Submission{Rating: "spicy", Type: domain.TypeJournal}
		report := v.Validate(sub, domain.FormData{Parts: []domain.WebsitePart{{Website: "site", ProfileID: "p"}}})
		assert.Equal(t, `unknown rating "spicy"`, messages(report.Problems))
	})
}

func postData(sub *domain.Submission) domain.PostData {
	return domain.PostData{
		Type:   sub.Type,
		Rating: sub.Rating,
		Tags:   []string{"one"},
		Login:  domain.LoginInformation{Website: "site", ProfileID: "p1"},
	}
}

func TestFileType(t *testing.T) {
	v := newValidator()
	tests := []struct {
		name     string
		file     *domain.FileDescriptor
		accepted []string
		ok       bool
	}{
		{"mime subtype", image("art", "image/png", 1), []string{"png", "jpeg"}, true},
		{"extension fallback", image("anim.gif", "application/octet-stream", 1), []string{"gif"}, true},
		{"unsupported", image("anim.gif", "application/octet-stream", 1), []string{"png"}, false},
		{"full mime", image("clip", "video/mp4", 1), []string{"video/mp4"}, true},
		{"wildcard", image("song.flac", "audio/flac", 1), []string{"audio/*"}, true},
		{"case insensitive", image("ART.JPEG", "", 1), []string{"jpeg"}, true},
		{"no info", image("noext", "", 1), []string{"png"}, false},
		{"anything goes", image("x.bin", "", 1), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeSubmission, Primary: tt.file}
			report := v.ValidateWebsite(sub, postData(sub), Rules{AcceptedFiles: tt.accepted}, nil)
			if tt.ok {
				assert.False(t, report.Blocked(), messages(report.Problems))
			} else {
				require.True(t, report.Blocked())
				assert.Contains(t, report.Problems[0].Message, "does not support file format")
				assert.Equal(t, "site", report.Problems[0].Context)
			}
		})
	}
}

func TestFileTypeIgnoredForJournals(t *testing.T) {
	v := newValidator()
	sub := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeJournal, Primary: image("a.exe", "", 1)}
	report := v.ValidateWebsite(sub, postData(sub), Rules{AcceptedFiles: []string{"png"}}, nil)
	assert.False(t, report.Blocked())
}

func TestFileSize(t *testing.T) {
	v := newValidator()
	rules := Rules{MaxFileSize: SizeLimits{Image: MB(50), Default: MB(10)}}

	at := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeSubmission, Primary: image("a.png", "image/png", 50*1024*1024)}
	assert.False(t, v.ValidateWebsite(at, postData(at), rules, nil).Blocked())

	over := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeSubmission, Primary: image("a.png", "image/png", 50*1024*1024+1)}
	report := v.ValidateWebsite(over, postData(over), rules, nil)
	require.True(t, report.Blocked())
	assert.Contains(t, report.Problems[0].Message, "over the 50 MiB limit")

	// Additional files are checked too, against their own content type.
	extra := &domain.Submission{
		Rating: domain.RatingGeneral, Type: domain.TypeSubmission,
		Primary:    image("a.png", "image/png", 1),
		Additional: []domain.FileDescriptor{{Name: "b.txt", MimeType: "text/plain", Size: MB(11)}},
	}
	assert.True(t, v.ValidateWebsite(extra, postData(extra), rules, nil).Blocked())
}

func TestSizeLimitsFor(t *testing.T) {
	limits := SizeLimits{Image: 1, Video: 2, Default: 9}
	assert.Equal(t, int64(1), limits.For(domain.FileDescriptor{MimeType: "image/png"}))
	assert.Equal(t, int64(2), limits.For(domain.FileDescriptor{MimeType: "video/webm"}))
	assert.Equal(t, int64(9), limits.For(domain.FileDescriptor{MimeType: "audio/mpeg"}))
	assert.Equal(t, int64(9), limits.For(domain.FileDescriptor{}))
}

func TestRatingsAndTypes(t *testing.T) {
	v := newValidator()
	rules := Rules{
		Ratings:         []domain.Rating{domain.RatingGeneral, domain.RatingMature},
		SubmissionTypes: []domain.SubmissionType{domain.TypeSubmission},
	}
	sub := &domain.Submission{Rating: domain.RatingExtreme, Type: domain.TypeJournal}
	report := v.ValidateWebsite(sub, postData(sub), rules, nil)
	got := messages(report.Problems)
	assert.Contains(t, got, "does not support journal posts")
	assert.Contains(t, got, `does not support rating "extreme"`)
}

func TestOptions(t *testing.T) {
	v := newValidator()
	sub := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeJournal}
	cached := []domain.Folder{{ID: "f1", Title: "Main"}}

	data := postData(sub)
	data.Options = &testOptions{}
	report := v.ValidateWebsite(sub, data, Rules{}, cached)
	assert.Equal(t, "option folder is required", messages(report.Problems))

	data.Options = &testOptions{Folder: "f1", Visibility: "secret"}
	report = v.ValidateWebsite(sub, data, Rules{}, cached)
	assert.Equal(t, "option visibility must be one of: public unlisted", messages(report.Problems))

	data.Options = &testOptions{Folder: "deleted"}
	report = v.ValidateWebsite(sub, data, Rules{}, cached)
	assert.Equal(t, `folder "deleted" no longer exists`, messages(report.Problems))

	report = v.ValidateWebsite(sub, data, Rules{}, nil)
	assert.Empty(t, report.Problems)

	data.Options = &testOptions{Folder: "f1", Visibility: "public"}
	assert.False(t, v.ValidateWebsite(sub, data, Rules{}, cached).Blocked())

	data.Options = map[string]string{"ignored": "yes"}
	assert.False(t, v.ValidateWebsite(sub, data, Rules{}, cached).Blocked())
}

func TestTagsAndWarnings(t *testing.T) {
	v := newValidator()
	sub := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeJournal}

	data := postData(sub)
	data.Tags = []string{"a", "b", "c"}
	report := v.ValidateWebsite(sub, data, Rules{MinTags: 4}, nil)
	assert.Equal(t, "requires at least 4 tags (has 3)", messages(report.Problems))

	data.Tags = nil
	data.Title = "a long title"
	data.Description = strings.Repeat("é", 501)
	report = v.ValidateWebsite(sub, data, Rules{DescriptionLimit: 500, TitleLimit: 5}, nil)
	assert.False(t, report.Blocked())
	warnings := messages(report.Warnings)
	assert.Contains(t, warnings, "no tags")
	assert.Contains(t, warnings, "description is 501 characters")
	assert.Contains(t, warnings, "title will be truncated to 5 characters")
}

func TestExtraRules(t *testing.T) {
	v := newValidator()
	sub := &domain.Submission{Rating: domain.RatingGeneral, Type: domain.TypeJournal}
	called := false
	rules := Rules{Extra: []RuleFunc{func(s *domain.Submission, d domain.PostData, r *Report) {
		called = true
		r.Warn(d.Login.Website, "custom")
	}}}
	report := v.ValidateWebsite(sub, postData(sub), rules, nil)
	assert.True(t, called)
	assert.Equal(t, "custom", messages(report.Warnings))
	assert.Empty(t, sub.Warnings, "ValidateWebsite must not mutate the submission")

	report.ApplyTo(sub)
	assert.Len(t, sub.Warnings, 1)
}
