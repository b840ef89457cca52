package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
)

// Document is a flat field map addressed by collection and id.
// A nil field value removes the field on write.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store defines document operations.
type Store interface {
	Upsert(ctx context.Context, collection, id string, fields map[string]any) error
	// Batch applies every document in one round trip. Order is not guaranteed.
	Batch(ctx context.Context, collection string, docs []Document) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (map[string]string, error)
	List(ctx context.Context, collection string) (map[string]map[string]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Encode renders a field value the way it is stored.
func Encode(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []byte:
		return string(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("encode field: %w", err)
		}
		return string(b), nil
	}
}

// split separates fields to set from fields to remove.
func split(fields map[string]any) (map[string]string, []string, error) {
	set := make(map[string]string, len(fields))
	var del []string
	for k, v := range fields {
		if v == nil {
			del = append(del, k)
			continue
		}
		s, err := Encode(v)
		if err != nil {
			return nil, nil, err
		}
		set[k] = s
	}
	return set, del, nil
}
