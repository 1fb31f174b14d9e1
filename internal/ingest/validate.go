// Package ingest turns uploaded lesson documents into embedded, page-cited
// chunks: validate, extract, chunk, embed and persist.
package ingest

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Accepted content types.
const (
	TypePDF  = "application/pdf"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeText = "text/plain"
)

// Upload validation errors.
var (
	ErrNoFiles         = errors.New("no files uploaded")
	ErrTooManyFiles    = errors.New("too many files")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
)

// Limits bounds one upload batch.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
	AllowedTypes []string
}

// DefaultLimits allows three files of at most 10 MiB each.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:     3,
		MaxFileBytes: 10 << 20,
		AllowedTypes: []string{TypePDF, TypeDOCX, TypeText},
	}
}

// FileInfo describes one uploaded file before any of its bytes are read.
type FileInfo struct {
	Name        string
	ContentType string
	Size        int64
}

// ValidateBatch checks the file count first, then the type and size of each
// file. It does no I/O.
func ValidateBatch(files []FileInfo, lim Limits) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	if lim.MaxFiles > 0 && len(files) > lim.MaxFiles {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyFiles, len(files), lim.MaxFiles)
	}
	for _, f := range files {
		ct := NormalizeContentType(f.ContentType, f.Name)
		if !allowed(ct, lim.AllowedTypes) {
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, f.Name, ct)
		}
		if lim.MaxFileBytes > 0 && f.Size > lim.MaxFileBytes {
			return fmt.Errorf("%w: %s is %d bytes, max %d", ErrFileTooLarge, f.Name, f.Size, lim.MaxFileBytes)
		}
	}
	return nil
}

// NormalizeContentType strips parameters from the declared type. Generic or
// missing types are inferred from the file extension.
func NormalizeContentType(declared, name string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if ct == "" || ct == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".pdf":
			return TypePDF
		case ".docx":
			return TypeDOCX
		case ".txt", ".md":
			return TypeText
		}
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			if mt, _, err := mime.ParseMediaType(byExt); err == nil {
				return mt
			}
		}
	}
	return ct
}

func allowed(ct string, types []string) bool {
	for _, t := range types {
		if strings.EqualFold(ct, t) {
			return true
		}
	}
	return false
}
