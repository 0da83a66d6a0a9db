package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/nwaples/rardecode/v2"

	"doc-merge-server/internal/domain"
)

// CompressedFileExtractor implements domain.ArchiveExtractor. Formats
// are tried in a fixed order: ZIP first (cheap container check), then
// RAR, then a generic multi-format fallback.
type CompressedFileExtractor struct {
	logger domain.Logger
}

// NewCompressedFileExtractor creates a new archive extractor
func NewCompressedFileExtractor(logger domain.Logger) *CompressedFileExtractor {
	return &CompressedFileExtractor{logger: logger}
}

// Extract unpacks the archive at archivePath into destDir and returns
// the extracted file paths. Directory entries are skipped and entry
// names are sanitized so members cannot escape destDir.
func (e *CompressedFileExtractor) Extract(archivePath, destDir string) ([]string, error) {
	if paths, err := e.extractZip(archivePath, destDir); err == nil {
		return paths, nil
	} else if !isZipFormatError(err) {
		return nil, fmt.Errorf("%w: %v", domain.ErrArchiveExtraction, err)
	}

	if paths, ok, err := e.extractRar(archivePath, destDir); ok {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrArchiveExtraction, err)
		}
		return paths, nil
	}

	return e.extractGeneric(archivePath, destDir)
}

func (e *CompressedFileExtractor) extractZip(archivePath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		target, err := secureJoin(destDir, f.Name)
		if err != nil {
			e.logger.Warn("Skipping unsafe archive entry", "entry", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		err = writeEntry(target, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		extracted = append(extracted, target)
	}

	e.logger.Debug("Extracted zip archive", "entries", len(extracted))
	return extracted, nil
}

// extractRar returns ok=false when the input is not a RAR archive, so
// the caller can fall through to the generic extractor.
func (e *CompressedFileExtractor) extractRar(archivePath, destDir string) ([]string, bool, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, true, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	rr, err := rardecode.NewReader(f)
	if err != nil {
		return nil, false, nil
	}

	var extracted []string
	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(extracted) == 0 {
				// Signature mismatch before any entry: not a RAR file.
				return nil, false, nil
			}
			return nil, true, fmt.Errorf("read rar entry: %w", err)
		}
		if hdr.IsDir {
			continue
		}
		target, err := secureJoin(destDir, hdr.Name)
		if err != nil {
			e.logger.Warn("Skipping unsafe archive entry", "entry", hdr.Name)
			continue
		}
		if err := writeEntry(target, rr); err != nil {
			return nil, true, err
		}
		extracted = append(extracted, target)
	}

	e.logger.Debug("Extracted rar archive", "entries", len(extracted))
	return extracted, true, nil
}

func (e *CompressedFileExtractor) extractGeneric(archivePath, destDir string) ([]string, error) {
	ctx := context.Background()

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	format, input, err := archives.Identify(ctx, filepath.Base(archivePath), f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedArchiveFormat, err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no extractor", domain.ErrUnsupportedArchiveFormat, format.Extension())
	}

	var extracted []string
	err = extractor.Extract(ctx, input, func(ctx context.Context, fi archives.FileInfo) error {
		if fi.IsDir() {
			return nil
		}
		target, err := secureJoin(destDir, fi.NameInArchive)
		if err != nil {
			e.logger.Warn("Skipping unsafe archive entry", "entry", fi.NameInArchive)
			return nil
		}
		rc, err := fi.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", fi.NameInArchive, err)
		}
		defer rc.Close()
		if err := writeEntry(target, rc); err != nil {
			return err
		}
		extracted = append(extracted, target)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: extract %s archive: %v", domain.ErrArchiveExtraction, format.Extension(), err)
	}

	e.logger.Debug("Extracted archive via generic fallback", "format", format.Extension(), "entries", len(extracted))
	return extracted, nil
}

// isZipFormatError reports whether the error means "not a zip file"
// rather than a failure while reading a recognized zip.
func isZipFormatError(err error) bool {
	return errors.Is(err, zip.ErrFormat)
}

// secureJoin joins an archive entry name onto destDir, rejecting names
// that would escape it.
func secureJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return filepath.Join(destDir, cleaned), nil
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create entry directory: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create entry file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write entry %s: %w", filepath.Base(target), err)
	}
	return nil
}
