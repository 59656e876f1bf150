package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"pdfworks/api/dto"
	"pdfworks/api/middleware"
)

type mockTaskService struct {
	createConvertFunc func(ctx context.Context, traceID, ownerID, filename, storagePath string, size int64) (*dto.TaskResponse, error)
	createMergeFunc   func(ctx context.Context, traceID, ownerID string, req *dto.MergeRequest) (*dto.TaskResponse, error)
	getStatusFunc     func(ctx context.Context, ownerID, taskID string) (*dto.TaskResponse, error)
}

func (m *mockTaskService) CreateConvertTask(ctx context.Context, traceID, ownerID, filename, storagePath string, size int64) (*dto.TaskResponse, error) {
	return m.createConvertFunc(ctx, traceID, ownerID, filename, storagePath, size)
}

func (m *mockTaskService) CreateMergeTask(ctx context.Context, traceID, ownerID string, req *dto.MergeRequest) (*dto.TaskResponse, error) {
	return m.createMergeFunc(ctx, traceID, ownerID, req)
}

func (m *mockTaskService) GetTaskStatus(ctx context.Context, ownerID, taskID string) (*dto.TaskResponse, error) {
	return m.getStatusFunc(ctx, ownerID, taskID)
}

func authedRequest(r *http.Request, ownerID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.OwnerIDKey, ownerID))
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

// Minimal JPEG prefix; the handler only checks magic bytes.
var jpegContent = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 64)...)

func TestUpload_AdmitsConversion(t *testing.T) {
	dataDir := t.TempDir()
	var gotFilename, gotPath string
	service := &mockTaskService{
		createConvertFunc: func(ctx context.Context, traceID, ownerID, filename, storagePath string, size int64) (*dto.TaskResponse, error) {
			gotFilename = filename
			gotPath = storagePath
			return &dto.TaskResponse{ID: "task-1", Kind: "convert", Status: "pending"}, nil
		},
	}
	handler := NewTaskHandler(service, zaptest.NewLogger(t), dataDir, 10<<20)

	body, contentType := multipartUpload(t, "photo.jpg", jpegContent)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.TaskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "pending" {
		t.Errorf("Expected pending, got %s", resp.Status)
	}
	if gotFilename != "photo.jpg" {
		t.Errorf("Expected photo.jpg, got %s", gotFilename)
	}
	if !strings.HasPrefix(gotPath, filepath.Join(dataDir, "owner-1", "uploads")) {
		t.Errorf("Upload stored outside the owner directory: %s", gotPath)
	}
	if _, err := os.Stat(gotPath); err != nil {
		t.Errorf("Uploaded file not on disk: %v", err)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	service := &mockTaskService{}
	handler := NewTaskHandler(service, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("name", "no file here")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.Upload(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestUpload_RejectsNonImage(t *testing.T) {
	service := &mockTaskService{}
	handler := NewTaskHandler(service, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	body, contentType := multipartUpload(t, "notes.txt", []byte("plain text, not an image"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestUpload_RejectsPDF(t *testing.T) {
	service := &mockTaskService{}
	handler := NewTaskHandler(service, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	body, contentType := multipartUpload(t, "doc.pdf", []byte("%PDF-1.7 content"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for direct PDF upload, got %d", rec.Code)
	}
}

func TestMerge_AdmitsTask(t *testing.T) {
	service := &mockTaskService{
		createMergeFunc: func(ctx context.Context, traceID, ownerID string, req *dto.MergeRequest) (*dto.TaskResponse, error) {
			if len(req.ArtifactIDs) != 2 {
				t.Errorf("Expected 2 artifact ids, got %d", len(req.ArtifactIDs))
			}
			return &dto.TaskResponse{ID: "task-2", Kind: "merge", Status: "pending"}, nil
		},
	}
	handler := NewTaskHandler(service, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	payload := `{"artifact_ids":["a-1","a-2"],"output_filename":"combined.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.Merge(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMerge_InvalidBody(t *testing.T) {
	handler := NewTaskHandler(&mockTaskService{}, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.Merge(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestMerge_ServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", dto.ErrInvalidRequest, http.StatusBadRequest},
		{"forbidden", dto.ErrForbidden, http.StatusForbidden},
		{"artifact not found", dto.ErrArtifactNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &mockTaskService{
				createMergeFunc: func(ctx context.Context, traceID, ownerID string, req *dto.MergeRequest) (*dto.TaskResponse, error) {
					return nil, tc.err
				},
			}
			handler := NewTaskHandler(service, zaptest.NewLogger(t), t.TempDir(), 10<<20)

			req := httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader(`{"artifact_ids":["a-1"]}`))
			rec := httptest.NewRecorder()

			handler.Merge(rec, authedRequest(req, "owner-1"))

			if rec.Code != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestStatus_ReturnsTask(t *testing.T) {
	service := &mockTaskService{
		getStatusFunc: func(ctx context.Context, ownerID, taskID string) (*dto.TaskResponse, error) {
			if ownerID != "owner-1" || taskID != "task-1" {
				t.Errorf("Unexpected lookup: owner=%s task=%s", ownerID, taskID)
			}
			return &dto.TaskResponse{ID: taskID, Kind: "convert", Status: "succeeded"}, nil
		},
	}
	handler := NewTaskHandler(service, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/task-1", nil)
	req.SetPathValue("id", "task-1")
	rec := httptest.NewRecorder()

	handler.Status(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp dto.TaskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "succeeded" {
		t.Errorf("Expected succeeded, got %s", resp.Status)
	}
}

func TestStatus_NotFound(t *testing.T) {
	service := &mockTaskService{
		getStatusFunc: func(ctx context.Context, ownerID, taskID string) (*dto.TaskResponse, error) {
			return nil, dto.ErrTaskNotFound
		},
	}
	handler := NewTaskHandler(service, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()

	handler.Status(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestStatus_MissingID(t *testing.T) {
	handler := NewTaskHandler(&mockTaskService{}, zaptest.NewLogger(t), t.TempDir(), 10<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/", nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, authedRequest(req, "owner-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}
