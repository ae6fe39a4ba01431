package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

// Document is a stored record addressed by a string key within a collection.
// UpdatedAt is assigned by the store on every write.
type Document struct {
	Key       string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// Store defines the document-store interface the engine depends on.
// Implementations must give at-least read-your-writes consistency per key.
type Store interface {
	Get(ctx context.Context, collection, key string) (*Document, error)
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Set(ctx context.Context, collection, key string, data any) error
	Update(ctx context.Context, collection, key string, partial map[string]any) error
	Delete(ctx context.Context, collection, key string) error
	QueryByField(ctx context.Context, collection, field, op string, value any) ([]Document, error)

	Close() error
}

// Supported QueryByField operators.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpLess         = "<"
	OpLessEqual    = "<="
)

var keySanitizer = strings.NewReplacer("/", "-", "\x00", "")

// SanitizeKey strips structural separators from an identifier so it can be
// used as a document key or as a segment of a composite key.
func SanitizeKey(id string) string {
	return keySanitizer.Replace(id)
}

// CompositeKey joins sanitized segments into a single document key.
func CompositeKey(segments ...string) string {
	sanitized := make([]string, len(segments))
	for i, s := range segments {
		sanitized[i] = SanitizeKey(s)
	}
	return strings.Join(sanitized, "_")
}
