package website

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// PostingError is a failure reported by, or on the way to, a website.
type PostingError struct {
	Website    string
	StatusCode int
	// Message is shown to the user.
	Message string
	// Body is the raw response, if any.
	Body string
	Err  error
}

func (e *PostingError) Error() string {
	var b strings.Builder
	b.WriteString(e.Website)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PostingError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports a 401 from the site: the stored credentials were
// rejected. A 403 does not count; sites also use it for stale form tokens.
func IsUnauthorized(err error) bool {
	var pe *PostingError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusUnauthorized
}

// Describe splits err into the user-facing message and the raw response body.
func Describe(err error) (message, body string) {
	var pe *PostingError
	if errors.As(err, &pe) {
		message = pe.Message
		if message == "" && pe.Err != nil {
			message = pe.Err.Error()
		}
		if message == "" {
			message = pe.Error()
		}
		return message, pe.Body
	}
	return err.Error(), ""
}
