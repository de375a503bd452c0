// Package storage keeps generated documents (invoice PDFs) in an object
// store: the local filesystem in development, Cloudflare R2 in production.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is a flat key/value object store.
type Storage interface {
	// Put writes data at key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller closes the reader. Missing
	// keys return an error matching ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType defaults to the type implied by the key's extension.
	ContentType string

	// MaxSize rejects larger payloads with ErrTooLarge. Zero means no limit.
	MaxSize int64
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string // defaults to "auto"
}

// =============================================================================
// Keys
// =============================================================================

// InvoiceKey is where the rendered invoice of a payment is cached.
// Format: invoices/{userID}/{paymentID}.pdf
func InvoiceKey(userID, paymentID uuid.UUID) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", userID, paymentID)
}

// validateKey rejects empty, absolute and parent-relative keys.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// contentTypeFor guesses a MIME type from the key extension.
func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
