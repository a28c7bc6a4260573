package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
)

// Config holds object storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Optional CDN or bucket website prefix
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   strings.TrimRight(env.GetEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		Enabled:         env.GetEnvBool("S3_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 storage is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 storage is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 storage is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if S3 storage is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// DocumentKey returns the per-owner key for an uploaded source document.
// Format: documents/<owner>/<uuid><ext>
func DocumentKey(ownerID uint, ext string) string {
	return fmt.Sprintf("documents/%d/%s%s", ownerID, uuid.New().String(), normalizeExt(ext))
}

// ReceiptKey returns the per-owner key for a payment receipt image.
func ReceiptKey(ownerID uint, ext string) string {
	return fmt.Sprintf("receipts/%d/%s%s", ownerID, uuid.New().String(), normalizeExt(ext))
}

// OwnsKey reports whether key lives under the owner's prefix.
func OwnsKey(ownerID uint, key string) bool {
	clean := path.Clean(key)
	for _, root := range []string{"documents", "receipts"} {
		if strings.HasPrefix(clean, fmt.Sprintf("%s/%d/", root, ownerID)) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ContentType returns the MIME type based on file extension
func ContentType(ext string) string {
	switch normalizeExt(ext) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
