package domain

import (
	"io"
	"path/filepath"
	"strings"
)

// DocumentKind identifies the class of a mergeable document.
type DocumentKind string

const (
	KindPDF  DocumentKind = "pdf"
	KindDOCX DocumentKind = "docx"
)

// DocxMediaType is the OOXML word-processing media type.
const DocxMediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extension returns the file extension for the kind, including the dot.
func (k DocumentKind) Extension() string {
	switch k {
	case KindPDF:
		return ".pdf"
	case KindDOCX:
		return ".docx"
	}
	return ""
}

// MediaType returns the response content type for the kind.
func (k DocumentKind) MediaType() string {
	switch k {
	case KindPDF:
		return "application/pdf"
	case KindDOCX:
		return DocxMediaType
	}
	return "application/octet-stream"
}

// KindForPath infers the document kind from a file path. The second
// return value is false for anything that is not a mergeable document.
func KindForPath(path string) (DocumentKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF, true
	case ".docx":
		return KindDOCX, true
	}
	return "", false
}

// Upload is one file received on the merge endpoint. The reader is only
// valid for the duration of the request.
type Upload struct {
	Filename string
	File     io.Reader
}

// MergeResult describes a stored merged document.
type MergeResult struct {
	// OutputPath locates the merged file within the output store.
	OutputPath string
	// FileName is the download filename (base name plus extension).
	FileName string
	// MediaType is the response content type.
	MediaType string
	// Kind is the document class that was merged.
	Kind DocumentKind
	// SourceCount is the number of documents that went into the merge.
	SourceCount int
}
