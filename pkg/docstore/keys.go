package docstore

import (
	"fmt"
	"strings"
)

// DocKey is the hash key of one document.
func DocKey(prefix, collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, collection, id)
}

// IndexKey is the set listing the ids of a collection.
func IndexKey(prefix, collection string) string {
	return fmt.Sprintf("%s:%s:_ids", prefix, collection)
}

// Collection joins name parts, e.g. Collection("canvas", id).
func Collection(parts ...string) string {
	return strings.Join(parts, "/")
}
