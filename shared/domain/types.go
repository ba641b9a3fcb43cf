package domain

import "strings"

type Rating string

const (
	RatingGeneral Rating = "general"
	RatingMature  Rating = "mature"
	RatingAdult   Rating = "adult"
	RatingExtreme Rating = "extreme"
)

func (r Rating) Valid() bool {
	switch r {
	case RatingGeneral, RatingMature, RatingAdult, RatingExtreme:
		return true
	}
	return false
}

type SubmissionType string

const (
	TypeSubmission SubmissionType = "submission"
	TypeJournal    SubmissionType = "journal"
)

func (t SubmissionType) Valid() bool {
	return t == TypeSubmission || t == TypeJournal
}

type LoginStatus string

const (
	LoggedIn  LoginStatus = "logged_in"
	LoggedOut LoginStatus = "logged_out"
)

// Problem is a validation finding rendered by the caller. Context names the
// website (or field) it applies to; empty for generic findings.
type Problem struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

type FileDescriptor struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Extension returns the lower-case file extension without the dot.
func (f FileDescriptor) Extension() string {
	i := strings.LastIndexByte(f.Name, '.')
	if i < 0 || i == len(f.Name)-1 {
		return ""
	}
	return strings.ToLower(f.Name[i+1:])
}

// Subtype returns the lower-case MIME subtype, e.g. "png" for "image/png; q=1".
func (f FileDescriptor) Subtype() string {
	mime := f.MimeType
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	_, sub, ok := strings.Cut(strings.TrimSpace(mime), "/")
	if !ok {
		return ""
	}
	return strings.ToLower(sub)
}

// MediaType returns the lower-case top-level MIME type, e.g. "image".
func (f FileDescriptor) MediaType() string {
	top, _, _ := strings.Cut(strings.TrimSpace(f.MimeType), "/")
	return strings.ToLower(top)
}
