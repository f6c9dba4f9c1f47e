package ports

import (
	"context"
	"io"
)

// Meta describes an opened import file.
type Meta struct {
	Source      string // "https" or "s3"
	ContentType string
	Size        int64 // -1 when unknown
	Bucket      string
	Key         string
}

// FileOpener resolves an import path (https URL, s3:// URL or bare key).
type FileOpener interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, Meta, error)
}
