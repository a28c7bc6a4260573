package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrExtensionNotAllowed = errors.New("only PDF, JPG, JPEG and PNG files are supported")
	ErrScriptableContent   = errors.New("HTML and XML content is not allowed")
	ErrTypeMismatch        = errors.New("file content does not match a supported type")
)

var allowedExt = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var allowedMime = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// SniffLen is how many leading bytes ValidateDocumentBySniff looks at.
const SniffLen = 512

// ValidateDocumentBySniff checks the provided filename (extension) and the first bytes (head)
// against the whitelist of document types. Returns detected mime or an error.
func ValidateDocumentBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrExtensionNotAllowed
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") ||
		strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrScriptableContent
	}

	if !allowedMime[detected] {
		return "", ErrTypeMismatch
	}
	if (ext == ".pdf") != (detected == "application/pdf") {
		return "", ErrTypeMismatch
	}
	return detected, nil
}
