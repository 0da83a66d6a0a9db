package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"doc-merge-server/internal/domain"
)

// PDFMerger implements domain.DocumentMerger for PDF inputs. Pages are
// appended as opaque units in input order.
type PDFMerger struct {
	conf   *model.Configuration
	logger domain.Logger
}

// NewPDFMerger creates a new PDF merger
func NewPDFMerger(logger domain.Logger) *PDFMerger {
	return &PDFMerger{
		conf:   model.NewDefaultConfiguration(),
		logger: logger,
	}
}

// Kind returns the document kind this merger handles
func (m *PDFMerger) Kind() domain.DocumentKind {
	return domain.KindPDF
}

// Merge validates every input up front and fails fast on the first
// unreadable one; no partial output is written.
func (m *PDFMerger) Merge(paths []string, outputPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no input files", domain.ErrDocumentMerge)
	}

	for _, p := range paths {
		if err := api.ValidateFile(p, m.conf); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrUnreadablePDF, filepath.Base(p), err)
		}
	}

	if err := api.MergeCreateFile(paths, outputPath, false, m.conf); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: %v", domain.ErrDocumentMerge, err)
	}

	m.logger.Info("Merged PDF documents", "sources", len(paths), "output", filepath.Base(outputPath))
	return nil
}
