package domain

import "errors"

// Domain errors
var (
	ErrNoFileProvided           = errors.New("no file provided")
	ErrUnsupportedArchiveFormat = errors.New("unsupported archive format")
	ErrArchiveExtraction        = errors.New("archive extraction failed")
	ErrNoValidDocumentsFound    = errors.New("no valid PDF or DOCX files found")
	ErrMixedDocumentTypes       = errors.New("input mixes PDF and DOCX documents")
	ErrUnreadablePDF            = errors.New("unreadable PDF")
	ErrDocumentMerge            = errors.New("document merge failed")
)
