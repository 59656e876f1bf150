package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdfworks/api/dto"
	"pdfworks/api/models"
	"pdfworks/api/repository"
)

type ArtifactService struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewArtifactService(repo repository.Repository, logger *zap.Logger) *ArtifactService {
	return &ArtifactService{
		repo:   repo,
		logger: logger,
	}
}

func (s *ArtifactService) ListArtifacts(ctx context.Context, ownerID string) ([]*dto.ArtifactResponse, error) {
	artifacts, err := s.repo.ListArtifactsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	responses := make([]*dto.ArtifactResponse, 0, len(artifacts))
	for _, artifact := range artifacts {
		responses = append(responses, &dto.ArtifactResponse{
			ID:        artifact.ID,
			Kind:      string(artifact.Kind),
			Filename:  artifact.Filename,
			Size:      artifact.Size,
			CreatedAt: artifact.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return responses, nil
}

// GetForDownload resolves an artifact for the caller. Foreign artifacts are
// reported as missing so existence does not leak across owners.
func (s *ArtifactService) GetForDownload(ctx context.Context, ownerID, artifactID string) (*models.Artifact, error) {
	if _, err := uuid.Parse(artifactID); err != nil {
		return nil, dto.ErrArtifactNotFound
	}

	artifact, err := s.repo.GetArtifact(ctx, artifactID)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			return nil, dto.ErrArtifactNotFound
		}
		return nil, err
	}
	if artifact.OwnerID != ownerID {
		s.logger.Warn("Download request for another user's artifact",
			zap.String("owner_id", ownerID),
			zap.String("artifact_id", artifactID),
		)
		return nil, dto.ErrArtifactNotFound
	}
	return artifact, nil
}
