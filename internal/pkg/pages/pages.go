package pages

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("document has no pages")
	ErrUnreadablePDF   = errors.New("pdf could not be read")
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsAllowedExtension reports whether uploads with ext are accepted.
func IsAllowedExtension(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// Count returns the billable page count of an upload. PDFs are parsed with
// relaxed validation; images always count as one page.
func Count(rs io.ReadSeeker, ext string) (int, error) {
	ext = strings.ToLower(ext)
	if !IsAllowedExtension(ext) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	if ext != ".pdf" {
		return 1, nil
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(rs, cfg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	if n <= 0 {
		return 0, ErrEmptyDocument
	}
	return n, nil
}
