package website

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/itchan-dev/crosspost/shared/domain"
)

const (
	userAgent       = "crosspost/1.0"
	maxResponseSize = 16 << 20
)

// Client talks to one website. Copies made by WithJar share the transport.
type Client struct {
	Website    string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(website, baseURL string, timeout time.Duration) *Client {
	return &Client{
		Website:    website,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// WithJar returns a client sending the cookies of one profile.
func (c *Client) WithJar(jar http.CookieJar) *Client {
	hc := *c.HTTPClient
	hc.Jar = jar
	return &Client{Website: c.Website, BaseURL: c.BaseURL, HTTPClient: &hc}
}

type Field struct {
	Name  string
	Value string
}

type FilePart struct {
	Field string
	File  domain.PostFile
}

type Multipart struct {
	Fields []Field
	Files  []FilePart
}

// Request describes one call. At most one of JSON, Form and Multipart is set.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	JSON      any
	Form      url.Values
	Multipart *Multipart
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is where the request ended up after redirects.
	URL *url.URL
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("cannot decode response: %w", err)
	}
	return nil
}

// Error builds a PostingError for a failed response.
func (r *Response) Error(website, message string) *PostingError {
	return &PostingError{Website: website, StatusCode: r.StatusCode, Message: message, Body: string(r.Body)}
}

// URL resolves path against the base url; absolute urls pass through.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL + path
}

// Do is the single helper every adapter request goes through. A non-nil
// error means the site could not be reached or the body could not be read;
// HTTP error statuses are returned as responses.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	target := c.URL(r.Path)
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	body, contentType, err := r.body()
	if err != nil {
		return nil, &PostingError{Website: c.Website, Message: "cannot build request", Err: err}
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		// Unblocks the multipart writer goroutine.
		if closer, ok := body.(io.Closer); ok {
			closer.Close()
		}
		return nil, &PostingError{Website: c.Website, Message: "cannot build request", Err: err}
	}
	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &PostingError{Website: c.Website, Message: "website unavailable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &PostingError{Website: c.Website, StatusCode: resp.StatusCode, Message: "cannot read response", Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data, URL: resp.Request.URL}, nil
}

func (r Request) body() (io.Reader, string, error) {
	switch {
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	case r.Form != nil:
		return strings.NewReader(r.Form.Encode()), "application/x-www-form-urlencoded", nil
	case r.Multipart != nil:
		return r.Multipart.stream()
	}
	return nil, "", nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// stream writes the form through a pipe so large files are not buffered twice.
func (m *Multipart) stream() (io.Reader, string, error) {
	pipeReader, pipeWriter := io.Pipe()
	writer := multipart.NewWriter(pipeWriter)

	go func() {
		for _, f := range m.Fields {
			if err := writer.WriteField(f.Name, f.Value); err != nil {
				pipeWriter.CloseWithError(err)
				return
			}
		}
		for _, f := range m.Files {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition",
				fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(f.File.Name)))
			contentType := f.File.MimeType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			h.Set("Content-Type", contentType)

			part, err := writer.CreatePart(h)
			if err != nil {
				pipeWriter.CloseWithError(err)
				return
			}
			if _, err := part.Write(f.File.Data); err != nil {
				pipeWriter.CloseWithError(err)
				return
			}
		}
		pipeWriter.CloseWithError(writer.Close())
	}()

	return pipeReader, writer.FormDataContentType(), nil
}
