package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"pdfworks/api/dto"
	"pdfworks/api/models"
)

func TestGetForDownload_OwnArtifact(t *testing.T) {
	repo := newFakeRepo()
	ownerID := uuid.New().String()
	artifact := repo.addArtifact(ownerID, models.ArtifactPDF)
	svc := NewArtifactService(repo, zaptest.NewLogger(t))

	got, err := svc.GetForDownload(context.Background(), ownerID, artifact.ID)
	if err != nil {
		t.Fatalf("GetForDownload failed: %v", err)
	}
	if got.ID != artifact.ID {
		t.Errorf("Expected artifact %s, got %s", artifact.ID, got.ID)
	}
}

func TestGetForDownload_ForeignArtifactLooksMissing(t *testing.T) {
	repo := newFakeRepo()
	artifact := repo.addArtifact(uuid.New().String(), models.ArtifactPDF)
	svc := NewArtifactService(repo, zaptest.NewLogger(t))

	_, err := svc.GetForDownload(context.Background(), uuid.New().String(), artifact.ID)
	if !errors.Is(err, dto.ErrArtifactNotFound) {
		t.Fatalf("Expected ErrArtifactNotFound, got %v", err)
	}
}

func TestGetForDownload_MalformedIDLooksMissing(t *testing.T) {
	svc := NewArtifactService(newFakeRepo(), zaptest.NewLogger(t))

	_, err := svc.GetForDownload(context.Background(), uuid.New().String(), "not-a-uuid")
	if !errors.Is(err, dto.ErrArtifactNotFound) {
		t.Fatalf("Expected ErrArtifactNotFound for malformed id, got %v", err)
	}
}

func TestGetForDownload_Unknown(t *testing.T) {
	svc := NewArtifactService(newFakeRepo(), zaptest.NewLogger(t))

	_, err := svc.GetForDownload(context.Background(), uuid.New().String(), uuid.New().String())
	if !errors.Is(err, dto.ErrArtifactNotFound) {
		t.Fatalf("Expected ErrArtifactNotFound, got %v", err)
	}
}

func TestListArtifacts_OwnerScoped(t *testing.T) {
	repo := newFakeRepo()
	ownerID := uuid.New().String()
	mine := repo.addArtifact(ownerID, models.ArtifactPDF)
	repo.addArtifact(uuid.New().String(), models.ArtifactPDF)
	svc := NewArtifactService(repo, zaptest.NewLogger(t))

	got, err := svc.ListArtifacts(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 artifact, got %d", len(got))
	}
	if got[0].ID != mine.ID {
		t.Errorf("Expected %s, got %s", mine.ID, got[0].ID)
	}
}
