// Package thumbnail scales an image file down to a JPEG preview for sites
// that want one next to the upload.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/itchan-dev/crosspost/shared/domain"
)

const (
	quality = 85
	// maxDecodedSize guards against headers claiming enormous dimensions.
	maxDecodedSize = 512 << 20
)

var ErrNotImage = errors.New("file is not an image")

type Generator struct {
	maxSize int
}

// New returns a generator whose output fits in a maxSize square.
func New(maxSize int) *Generator {
	return &Generator{maxSize: maxSize}
}

// Generate returns a JPEG thumbnail of file. Non-image files yield ErrNotImage.
func (g *Generator) Generate(file domain.PostFile) (domain.PostFile, error) {
	if file.MediaType() != "" && file.MediaType() != "image" {
		return domain.PostFile{}, ErrNotImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return domain.PostFile{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height)*4 > maxDecodedSize {
		return domain.PostFile{}, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return domain.PostFile{}, fmt.Errorf("failed to decode image: %w", err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), g.maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; transparent areas become white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return domain.PostFile{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + "_thumb.jpg"
	return domain.PostFile{
		FileDescriptor: domain.FileDescriptor{Name: name, MimeType: "image/jpeg", Size: int64(buf.Len())},
		Data:           buf.Bytes(),
	}, nil
}

// fit scales w×h down to fit a max×max box, keeping the aspect ratio.
// Images already small enough keep their size.
func fit(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}
