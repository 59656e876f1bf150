package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdfworks/api/dto"
	"pdfworks/api/middleware"
	"pdfworks/api/validation"
)

// TaskService is the admission and status surface the handler depends on.
type TaskService interface {
	CreateConvertTask(ctx context.Context, traceID, ownerID, filename, storagePath string, size int64) (*dto.TaskResponse, error)
	CreateMergeTask(ctx context.Context, traceID, ownerID string, req *dto.MergeRequest) (*dto.TaskResponse, error)
	GetTaskStatus(ctx context.Context, ownerID, taskID string) (*dto.TaskResponse, error)
}

type TaskHandler struct {
	service     TaskService
	logger      *zap.Logger
	dataDir     string
	maxFileSize int64
}

func NewTaskHandler(service TaskService, logger *zap.Logger, dataDir string, maxFileSize int64) *TaskHandler {
	return &TaskHandler{
		service:     service,
		logger:      logger,
		dataDir:     dataDir,
		maxFileSize: maxFileSize,
	}
}

// Upload accepts a multipart image, stores it under the owner's upload
// directory and admits a conversion task for it.
func (h *TaskHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Failed to get file", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		h.handleError(w, "File too large", validation.ErrFileTooLarge, traceID, http.StatusBadRequest)
		return
	}

	fileType, err := validation.DetectFileType(file)
	if err != nil || !validation.IsAllowedImageType(fileType) {
		h.handleError(w, "Unsupported image type", validation.ErrInvalidFileType, traceID, http.StatusBadRequest)
		return
	}

	filename := filepath.Base(header.Filename)
	storagePath, size, err := h.storeUpload(ownerID, filename, file)
	if err != nil {
		h.handleError(w, "Failed to save file", err, traceID, http.StatusInternalServerError)
		return
	}

	resp, err := h.service.CreateConvertTask(r.Context(), traceID, ownerID, filename, storagePath, size)
	if err != nil {
		h.serviceError(w, "Failed to create task", err, traceID)
		return
	}

	h.logger.Info("Conversion task admitted",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.ID),
		zap.String("owner_id", ownerID),
		zap.String("filename", filename),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

// Merge admits a merge task over previously produced PDF artifacts.
func (h *TaskHandler) Merge(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	var req dto.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, "Invalid request body", err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.CreateMergeTask(r.Context(), traceID, ownerID, &req)
	if err != nil {
		h.serviceError(w, "Failed to create merge task", err, traceID)
		return
	}

	h.logger.Info("Merge task admitted",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.ID),
		zap.String("owner_id", ownerID),
		zap.Int("input_count", len(req.ArtifactIDs)),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

// Status returns the current state of the caller's task. The read never
// blocks on completion.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	taskID := r.PathValue("id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), ownerID, taskID)
	if err != nil {
		h.serviceError(w, "Failed to get task status", err, traceID)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) storeUpload(ownerID, filename string, file io.Reader) (string, int64, error) {
	dir := filepath.Join(h.dataDir, ownerID, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}

	storagePath := filepath.Join(dir, fmt.Sprintf("%s_%s", uuid.New().String(), filename))
	dst, err := os.Create(storagePath)
	if err != nil {
		return "", 0, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(storagePath)
		return "", 0, err
	}
	return storagePath, size, nil
}

func (h *TaskHandler) serviceError(w http.ResponseWriter, message string, err error, traceID string) {
	switch {
	case errors.Is(err, dto.ErrInvalidRequest):
		h.handleError(w, message, err, traceID, http.StatusBadRequest)
	case errors.Is(err, dto.ErrForbidden):
		h.handleError(w, message, err, traceID, http.StatusForbidden)
	case errors.Is(err, dto.ErrArtifactNotFound), errors.Is(err, dto.ErrTaskNotFound):
		h.handleError(w, message, err, traceID, http.StatusNotFound)
	default:
		h.handleError(w, message, err, traceID, http.StatusInternalServerError)
	}
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	body := dto.ErrorResponse{Error: message, TraceID: traceID}
	if err != nil && status < http.StatusInternalServerError {
		body.Error = fmt.Sprintf("%s: %v", message, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
