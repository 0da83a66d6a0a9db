package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"doc-merge-server/internal/domain"
)

// DocumentMergeService drives one merge request: save uploads, extract
// archives, filter, sort, dispatch to the right merger and store the
// result. All working files live in a per-request scratch directory
// that is removed on exit, error paths included.
type DocumentMergeService struct {
	extractor domain.ArchiveExtractor
	mergers   map[domain.DocumentKind]domain.DocumentMerger
	store     domain.OutputStore
	logger    domain.Logger
}

// NewDocumentMergeService creates a new merge service instance
func NewDocumentMergeService(
	extractor domain.ArchiveExtractor,
	store domain.OutputStore,
	logger domain.Logger,
	mergers ...domain.DocumentMerger,
) *DocumentMergeService {
	byKind := make(map[domain.DocumentKind]domain.DocumentMerger, len(mergers))
	for _, m := range mergers {
		byKind[m.Kind()] = m
	}
	return &DocumentMergeService{
		extractor: extractor,
		mergers:   byKind,
		store:     store,
		logger:    logger,
	}
}

// MergeUpload merges the uploaded documents into a single output named
// outputName plus the source extension, and stores it in the output
// store. Exactly one merge strategy runs per request, chosen by the
// extension of the first sorted file.
func (s *DocumentMergeService) MergeUpload(ctx context.Context, uploads []domain.Upload, outputName string) (*domain.MergeResult, error) {
	if len(uploads) == 0 {
		return nil, domain.ErrNoFileProvided
	}

	outputName = sanitizeOutputName(outputName)

	scratch, err := os.MkdirTemp("", "docmerge-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	saved, err := s.saveUploads(scratch, uploads)
	if err != nil {
		return nil, err
	}

	candidates := saved
	if len(saved) == 1 {
		if _, ok := domain.KindForPath(saved[0]); !ok {
			extractDir := filepath.Join(scratch, "extracted")
			if err := os.MkdirAll(extractDir, 0o755); err != nil {
				return nil, fmt.Errorf("create extraction directory: %w", err)
			}
			candidates, err = s.extractor.Extract(saved[0], extractDir)
			if err != nil {
				return nil, err
			}
			s.logger.Debug("Extracted uploaded archive", "files", len(candidates))
		}
	}

	filtered := filterByKind(candidates)
	if len(filtered) == 0 {
		return nil, domain.ErrNoValidDocumentsFound
	}

	kind, err := uniformKind(filtered)
	if err != nil {
		return nil, err
	}

	sorted := SortByPartNumber(filtered)

	merger, ok := s.mergers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no merger for %s", domain.ErrDocumentMerge, kind)
	}

	mergedPath := filepath.Join(scratch, "merged"+kind.Extension())
	if err := merger.Merge(sorted, mergedPath); err != nil {
		return nil, err
	}

	fileName := outputName + kind.Extension()
	merged, err := os.Open(mergedPath)
	if err != nil {
		return nil, fmt.Errorf("open merged output: %w", err)
	}
	defer merged.Close()

	storedPath, err := s.store.Store(ctx, fileName, merged)
	if err != nil {
		return nil, fmt.Errorf("store merged output: %w", err)
	}

	s.logger.Info("Merge completed", "kind", kind, "sources", len(sorted), "output", fileName)

	return &domain.MergeResult{
		OutputPath:  storedPath,
		FileName:    fileName,
		MediaType:   kind.MediaType(),
		Kind:        kind,
		SourceCount: len(sorted),
	}, nil
}

// saveUploads writes the request's files into the scratch directory,
// keeping original base filenames so part tokens survive.
func (s *DocumentMergeService) saveUploads(scratch string, uploads []domain.Upload) ([]string, error) {
	dir := filepath.Join(scratch, "incoming")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create incoming directory: %w", err)
	}

	var saved []string
	used := make(map[string]bool)
	for _, u := range uploads {
		name := strings.TrimSpace(filepath.Base(u.Filename))
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = "upload"
		}
		// Colliding names within one request get a numeric suffix. The
		// check runs on the final name so a literal a_1.pdf next to two
		// a.pdf uploads still gets its own file.
		if used[name] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 1; used[name]; n++ {
				name = fmt.Sprintf("%s_%d%s", stem, n, ext)
			}
		}
		used[name] = true

		target := filepath.Join(dir, name)
		out, err := os.Create(target)
		if err != nil {
			return nil, fmt.Errorf("save upload %s: %w", name, err)
		}
		_, err = io.Copy(out, u.File)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("save upload %s: %w", name, err)
		}
		saved = append(saved, target)
	}
	return saved, nil
}

// filterByKind retains only mergeable documents, silently dropping
// everything else.
func filterByKind(paths []string) []string {
	var filtered []string
	for _, p := range paths {
		if _, ok := domain.KindForPath(p); ok {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// uniformKind returns the single document kind of the set, or
// ErrMixedDocumentTypes when PDF and DOCX inputs are mixed.
func uniformKind(paths []string) (domain.DocumentKind, error) {
	kind, _ := domain.KindForPath(paths[0])
	for _, p := range paths[1:] {
		k, _ := domain.KindForPath(p)
		if k != kind {
			return "", domain.ErrMixedDocumentTypes
		}
	}
	return kind, nil
}

// sanitizeOutputName strips path components and any extension from the
// caller-supplied output base name.
func sanitizeOutputName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "merged_document"
	}
	return name
}
