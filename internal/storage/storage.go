// Package storage keeps uploaded lesson documents in object storage until
// the ingestion worker reads them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrObjectNotFound is returned when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Store is a flat key/value blob store.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// DocumentKey builds the object key for a document upload.
func DocumentKey(mentorLessonID, documentID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return fmt.Sprintf("mentor-lessons/%s/documents/%s/%s", mentorLessonID, documentID, name)
}
