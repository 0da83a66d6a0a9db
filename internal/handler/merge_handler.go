// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"

	"doc-merge-server/internal/domain"
	apperrors "doc-merge-server/pkg/errors"
)

// Form fields checked for uploads, in priority order. Clients out
// there disagree on the field name, so all common ones are accepted.
var uploadFieldNames = []string{"files", "file", "data", "archive"}

const defaultOutputName = "merged_document"

// MergeHandler handles document merge HTTP requests
type MergeHandler struct {
	mergeService domain.MergeService
	store        domain.OutputStore
	maxFileSize  int64
	logger       domain.Logger
}

// NewMergeHandler creates a new merge handler
func NewMergeHandler(mergeService domain.MergeService, store domain.OutputStore, maxFileSize int64, logger domain.Logger) *MergeHandler {
	return &MergeHandler{
		mergeService: mergeService,
		store:        store,
		maxFileSize:  maxFileSize,
		logger:       logger,
	}
}

// Merge accepts a multipart upload of documents or an archive of
// documents, merges them in part order and streams the result back.
func (h *MergeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request exceeds the %d byte upload limit", h.maxFileSize))
			return
		}
		writeError(w, http.StatusBadRequest, "Request must be multipart/form-data with at least one file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := collectFileHeaders(r.MultipartForm)
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	uploads := make([]domain.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Could not read uploaded file %s", fh.Filename))
			return
		}
		defer f.Close()
		uploads = append(uploads, domain.Upload{Filename: fh.Filename, File: f})
	}

	outputName := r.FormValue("output_filename")
	if outputName == "" {
		outputName = defaultOutputName
	}

	result, err := h.mergeService.MergeUpload(r.Context(), uploads, outputName)
	if err != nil {
		appErr := toAppError(err)
		h.logger.Error("Merge request failed", err, "status", appErr.StatusCode)
		writeError(w, appErr.StatusCode, appErr.Message)
		return
	}

	reader, size, err := h.store.Open(result.OutputPath)
	if err != nil {
		h.logger.Error("Failed to open merged output", err, "path", result.OutputPath)
		writeError(w, http.StatusInternalServerError, "Merged document could not be read back")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", result.MediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("Streaming merged document interrupted", "error", err)
	}
}

// collectFileHeaders gathers uploaded files from the known field names
// first, then falls back to every remaining file field in sorted key
// order so field naming never loses an upload.
func collectFileHeaders(form *multipart.Form) []*multipart.FileHeader {
	var headers []*multipart.FileHeader
	seen := make(map[string]bool)

	for _, name := range uploadFieldNames {
		if fhs, ok := form.File[name]; ok {
			headers = append(headers, fhs...)
			seen[name] = true
		}
	}

	var rest []string
	for name := range form.File {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		headers = append(headers, form.File[name]...)
	}

	return headers
}

// toAppError maps service errors onto the HTTP error taxonomy. Input
// problems are the client's fault, merge failures are ours.
func toAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, domain.ErrNoFileProvided):
		return apperrors.NewValidationError("No file provided")
	case errors.Is(err, domain.ErrUnsupportedArchiveFormat):
		return apperrors.NewValidationError("Unsupported archive format")
	case errors.Is(err, domain.ErrArchiveExtraction):
		return apperrors.NewValidationError("Could not extract the uploaded archive")
	case errors.Is(err, domain.ErrNoValidDocumentsFound):
		return apperrors.NewValidationError("No PDF or DOCX documents found in the upload")
	case errors.Is(err, domain.ErrMixedDocumentTypes):
		return apperrors.NewValidationError("Cannot merge PDF and DOCX documents together")
	case errors.Is(err, domain.ErrUnreadablePDF):
		return apperrors.NewInternalError("A PDF input could not be read", err)
	case errors.Is(err, domain.ErrDocumentMerge):
		return apperrors.NewInternalError("Document merge failed", err)
	default:
		return apperrors.NewInternalError("Internal server error", err)
	}
}
