package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"doc-merge-server/internal/domain"
)

// MockMergeService records the uploads it receives and returns a
// canned result or error.
type MockMergeService struct {
	result     *domain.MergeResult
	err        error
	filenames  []string
	outputName string
}

func (m *MockMergeService) MergeUpload(ctx context.Context, uploads []domain.Upload, outputName string) (*domain.MergeResult, error) {
	m.outputName = outputName
	m.filenames = nil
	for _, u := range uploads {
		m.filenames = append(m.filenames, u.Filename)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// MockOutputStore serves stored objects from memory.
type MockOutputStore struct {
	objects map[string][]byte
}

func (m *MockOutputStore) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[name] = data
	return name, nil
}

func (m *MockOutputStore) Open(path string) (io.ReadCloser, int64, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, 0, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

type formFile struct {
	field    string
	filename string
	content  string
}

func newMergeRequest(t *testing.T, files []formFile, outputName string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if outputName != "" {
		if err := mw.WriteField("output_filename", outputName); err != nil {
			t.Fatalf("write form field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestHandler(service *MockMergeService, store *MockOutputStore) *MergeHandler {
	return NewMergeHandler(service, store, 100<<20, NewMockHandlerLogger())
}

func TestMerge_StreamsResult(t *testing.T) {
	store := &MockOutputStore{objects: map[string][]byte{
		"report.pdf": []byte("merged pdf bytes"),
	}}
	service := &MockMergeService{result: &domain.MergeResult{
		OutputPath:  "report.pdf",
		FileName:    "report.pdf",
		MediaType:   "application/pdf",
		Kind:        domain.KindPDF,
		SourceCount: 2,
	}}

	h := newTestHandler(service, store)
	rr := httptest.NewRecorder()
	h.Merge(rr, newMergeRequest(t, []formFile{
		{field: "files", filename: "a_part1.pdf", content: "%PDF-fake"},
		{field: "files", filename: "a_part2.pdf", content: "%PDF-fake"},
	}, "report"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="report.pdf"`) {
		t.Fatalf("unexpected content disposition: %s", cd)
	}
	if cl := rr.Header().Get("Content-Length"); cl != "16" {
		t.Fatalf("expected content length 16, got %s", cl)
	}
	if rr.Body.String() != "merged pdf bytes" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
	if service.outputName != "report" {
		t.Fatalf("expected output name forwarded, got %q", service.outputName)
	}
}

func TestMerge_DefaultOutputName(t *testing.T) {
	store := &MockOutputStore{objects: map[string][]byte{"out": []byte("x")}}
	service := &MockMergeService{result: &domain.MergeResult{
		OutputPath: "out", FileName: "merged_document.pdf",
		MediaType: "application/pdf", Kind: domain.KindPDF, SourceCount: 1,
	}}

	h := newTestHandler(service, store)
	rr := httptest.NewRecorder()
	h.Merge(rr, newMergeRequest(t, []formFile{
		{field: "file", filename: "solo.pdf", content: "%PDF-fake"},
	}, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if service.outputName != "merged_document" {
		t.Fatalf("expected default output name, got %q", service.outputName)
	}
}

func TestMerge_CollectsAllFileFields(t *testing.T) {
	store := &MockOutputStore{objects: map[string][]byte{"out": []byte("x")}}
	service := &MockMergeService{result: &domain.MergeResult{
		OutputPath: "out", FileName: "out.docx",
		MediaType: domain.DocxMediaType, Kind: domain.KindDOCX, SourceCount: 3,
	}}

	h := newTestHandler(service, store)
	rr := httptest.NewRecorder()
	h.Merge(rr, newMergeRequest(t, []formFile{
		{field: "files", filename: "a_part1.docx", content: "x"},
		{field: "attachment_b", filename: "a_part3.docx", content: "x"},
		{field: "attachment_a", filename: "a_part2.docx", content: "x"},
	}, "out"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	want := []string{"a_part1.docx", "a_part2.docx", "a_part3.docx"}
	if len(service.filenames) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), service.filenames)
	}
	for i, name := range want {
		if service.filenames[i] != name {
			t.Fatalf("expected file %d to be %s, got %s", i, name, service.filenames[i])
		}
	}
}

func TestMerge_NoFiles(t *testing.T) {
	h := newTestHandler(&MockMergeService{}, &MockOutputStore{})
	rr := httptest.NewRecorder()
	h.Merge(rr, newMergeRequest(t, nil, "out"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No file provided") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestMerge_NotMultipart(t *testing.T) {
	h := newTestHandler(&MockMergeService{}, &MockOutputStore{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", strings.NewReader("plain body"))
	rr := httptest.NewRecorder()
	h.Merge(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMerge_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no file", domain.ErrNoFileProvided, http.StatusBadRequest},
		{"bad archive", domain.ErrUnsupportedArchiveFormat, http.StatusBadRequest},
		{"corrupt archive", domain.ErrArchiveExtraction, http.StatusBadRequest},
		{"nothing mergeable", domain.ErrNoValidDocumentsFound, http.StatusBadRequest},
		{"mixed kinds", domain.ErrMixedDocumentTypes, http.StatusBadRequest},
		{"broken pdf", domain.ErrUnreadablePDF, http.StatusInternalServerError},
		{"merge failed", domain.ErrDocumentMerge, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&MockMergeService{err: tt.err}, &MockOutputStore{})
			rr := httptest.NewRecorder()
			h.Merge(rr, newMergeRequest(t, []formFile{
				{field: "file", filename: "in.pdf", content: "x"},
			}, ""))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestMerge_RequestTooLarge(t *testing.T) {
	h := NewMergeHandler(&MockMergeService{}, &MockOutputStore{}, 64, NewMockHandlerLogger())
	rr := httptest.NewRecorder()
	h.Merge(rr, newMergeRequest(t, []formFile{
		{field: "file", filename: "big.pdf", content: strings.Repeat("x", 1024)},
	}, ""))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
}

func TestMerge_OutputMissingFromStore(t *testing.T) {
	service := &MockMergeService{result: &domain.MergeResult{
		OutputPath: "gone.pdf", FileName: "gone.pdf",
		MediaType: "application/pdf", Kind: domain.KindPDF, SourceCount: 1,
	}}
	h := newTestHandler(service, &MockOutputStore{})
	rr := httptest.NewRecorder()
	h.Merge(rr, newMergeRequest(t, []formFile{
		{field: "file", filename: "in.pdf", content: "x"},
	}, ""))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
