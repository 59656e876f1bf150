package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"go.uber.org/zap"

	"pdfworks/api/dto"
	"pdfworks/api/middleware"
	"pdfworks/api/models"
)

type ArtifactService interface {
	ListArtifacts(ctx context.Context, ownerID string) ([]*dto.ArtifactResponse, error)
	GetForDownload(ctx context.Context, ownerID, artifactID string) (*models.Artifact, error)
}

type ArtifactHandler struct {
	service ArtifactService
	logger  *zap.Logger
}

func NewArtifactHandler(service ArtifactService, logger *zap.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	artifacts, err := h.service.ListArtifacts(r.Context(), ownerID)
	if err != nil {
		h.handleError(w, "Failed to list artifacts", err, traceID, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(artifacts)
}

func (h *ArtifactHandler) Download(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	artifactID := r.PathValue("id")
	if artifactID == "" {
		h.handleError(w, "Artifact ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	artifact, err := h.service.GetForDownload(r.Context(), ownerID, artifactID)
	if err != nil {
		if errors.Is(err, dto.ErrArtifactNotFound) {
			h.handleError(w, "Artifact not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to resolve artifact", err, traceID, http.StatusInternalServerError)
		return
	}

	file, err := os.Open(artifact.StoragePath)
	if err != nil {
		h.handleError(w, "Failed to open artifact", err, traceID, http.StatusInternalServerError)
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	if artifact.Kind == models.ArtifactPDF {
		contentType = "application/pdf"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
			artifact.Filename, url.PathEscape(artifact.Filename)))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, artifact.Filename, artifact.CreatedAt, file)
}

func (h *ArtifactHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}
