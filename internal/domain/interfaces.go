package domain

import (
	"context"
	"io"
)

// ArchiveExtractor unpacks an uploaded archive into destDir and returns
// the paths of the extracted files.
type ArchiveExtractor interface {
	Extract(archivePath, destDir string) ([]string, error)
}

// DocumentMerger concatenates a sorted list of same-kind documents into
// a single output file.
type DocumentMerger interface {
	Kind() DocumentKind
	Merge(paths []string, outputPath string) error
}

// MergeService drives extraction, filtering, sorting, merging and
// output storage for one upload.
type MergeService interface {
	MergeUpload(ctx context.Context, uploads []Upload, outputName string) (*MergeResult, error)
}

// OutputStore is the injected destination for merged documents.
type OutputStore interface {
	// Store writes the named object and returns its store path.
	// Storing under an existing name overwrites it.
	Store(ctx context.Context, name string, r io.Reader) (string, error)
	// Open reads back a stored object. Size is -1 when unknown.
	Open(path string) (io.ReadCloser, int64, error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetOutputPath() string
	GetMaxFileSize() int64
	GetLogLevel() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseBucket() string
}
