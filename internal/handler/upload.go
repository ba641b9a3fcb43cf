package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/itchan-dev/crosspost/internal/poster"
	"github.com/itchan-dev/crosspost/shared/api"
	"github.com/itchan-dev/crosspost/shared/domain"
	sharederrors "github.com/itchan-dev/crosspost/shared/errors"
	"github.com/itchan-dev/crosspost/shared/utils"
)

var ErrPayloadTooLarge = errors.New("payload too large")

// Form file fields of /v1/submissions/post.
const (
	fieldJSON       = "json"
	fieldPrimary    = "primary"
	fieldAdditional = "additional"
	fieldThumbnail  = "thumbnail"
)

const maxMemory = 32 << 20

// parseMultipart caps the body at maxSize and parses it. Exceeding the cap
// resets the connection once MaxBytesReader stops reading.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return fmt.Errorf("%w: upload exceeds the limit of %s", ErrPayloadTooLarge, humanize.IBytes(uint64(maxSize)))
		}
		return sharederrors.BadRequest("invalid multipart form")
	}
	return nil
}

// parseUpload reads the JSON payload and every uploaded file.
func parseUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (req api.SubmissionRequest, files poster.Files, err error) {
	if err = parseMultipart(w, r, maxSize); err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			err = sharederrors.PayloadTooLarge(err.Error())
		}
		return
	}

	payload := r.FormValue(fieldJSON)
	if payload == "" {
		err = sharederrors.BadRequest("missing JSON payload in multipart form")
		return
	}
	if err = utils.DecodeValidate(strings.NewReader(payload), &req); err != nil {
		return
	}

	form := r.MultipartForm
	if files.Primary, err = singleFile(form, fieldPrimary); err != nil {
		return
	}
	if files.Thumbnail, err = singleFile(form, fieldThumbnail); err != nil {
		return
	}
	for _, fh := range form.File[fieldAdditional] {
		var f domain.PostFile
		if f, err = readFile(fh); err != nil {
			return
		}
		files.Additional = append(files.Additional, f)
	}
	return
}

func singleFile(form *multipart.Form, field string) (*domain.PostFile, error) {
	headers := form.File[field]
	switch len(headers) {
	case 0:
		return nil, nil
	case 1:
		f, err := readFile(headers[0])
		if err != nil {
			return nil, err
		}
		return &f, nil
	}
	return nil, sharederrors.BadRequest(fmt.Sprintf("only one %s file is allowed", field))
}

func readFile(fh *multipart.FileHeader) (domain.PostFile, error) {
	file, err := fh.Open()
	if err != nil {
		return domain.PostFile{}, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.PostFile{}, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return domain.PostFile{
		FileDescriptor: domain.FileDescriptor{
			Name:     fh.Filename,
			MimeType: DetectMimeType(fh, data),
			Size:     int64(len(data)),
		},
		Data: data,
	}, nil
}

// DetectMimeType trusts a specific Content-Type, then the extension, then
// the content itself.
func DetectMimeType(fh *multipart.FileHeader, data []byte) string {
	mimeType := fh.Header.Get("Content-Type")
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	if detected := mime.TypeByExtension(filepath.Ext(fh.Filename)); detected != "" {
		return detected
	}
	return http.DetectContentType(data)
}
