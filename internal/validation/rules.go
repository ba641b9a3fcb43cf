package validation

import (
	"strings"

	"github.com/itchan-dev/crosspost/shared/domain"
)

// SizeLimits are per media type byte ceilings. Zero means no limit.
type SizeLimits struct {
	Image   int64
	Video   int64
	Audio   int64
	Text    int64
	Default int64
}

func MB(n int64) int64 { return n * 1024 * 1024 }

// For picks the ceiling that applies to a file's content type.
func (l SizeLimits) For(file domain.FileDescriptor) int64 {
	var limit int64
	switch file.MediaType() {
	case "image":
		limit = l.Image
	case "video":
		limit = l.Video
	case "audio":
		limit = l.Audio
	case "text":
		limit = l.Text
	}
	if limit == 0 {
		return l.Default
	}
	return limit
}

// RuleFunc is a site-specific check run after the declarative rules.
type RuleFunc func(sub *domain.Submission, data domain.PostData, report *Report)

// Rules is the static validation profile of one website.
type Rules struct {
	// AcceptedFiles lists extensions or MIME subtypes ("png"), full MIME
	// types ("image/png") or wildcards ("image/*").
	AcceptedFiles    []string
	MaxFileSize      SizeLimits
	MinTags          int
	DescriptionLimit int // runes; exceeding it only warns
	TitleLimit       int // runes; exceeding it only warns
	// Ratings and SubmissionTypes restrict what the site takes; empty means all.
	Ratings         []domain.Rating
	SubmissionTypes []domain.SubmissionType
	Extra           []RuleFunc
}

func (r Rules) supportsRating(rating domain.Rating) bool {
	if len(r.Ratings) == 0 {
		return true
	}
	for _, allowed := range r.Ratings {
		if allowed == rating {
			return true
		}
	}
	return false
}

func (r Rules) supportsType(t domain.SubmissionType) bool {
	if len(r.SubmissionTypes) == 0 {
		return true
	}
	for _, allowed := range r.SubmissionTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// SupportsFile checks the declared MIME subtype first and the file extension
// second; some sites and browsers only report one of them reliably.
func SupportsFile(accepted []string, file domain.FileDescriptor) bool {
	if len(accepted) == 0 {
		return true
	}
	mime := strings.ToLower(strings.TrimSpace(file.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	subtype := file.Subtype()
	for _, entry := range accepted {
		entry = strings.ToLower(entry)
		switch {
		case strings.HasSuffix(entry, "/*"):
			if file.MediaType() != "" && strings.TrimSuffix(entry, "/*") == file.MediaType() {
				return true
			}
		case strings.Contains(entry, "/"):
			if entry == mime {
				return true
			}
		case subtype != "" && entry == subtype:
			return true
		}
	}
	ext := file.Extension()
	if ext == "" {
		return false
	}
	for _, entry := range accepted {
		if strings.ToLower(entry) == ext {
			return true
		}
	}
	return false
}
