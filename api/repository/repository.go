package repository

import (
	"context"
	"errors"

	"pdfworks/api/models"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateUser    = errors.New("username already exists")
)

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	CreateArtifact(ctx context.Context, artifact *models.Artifact) error
	GetArtifact(ctx context.Context, id string) (*models.Artifact, error)
	ListArtifactsByOwner(ctx context.Context, ownerID string) ([]*models.Artifact, error)

	CreateTask(ctx context.Context, task *models.Task) error
	// GetTaskForOwner scopes the lookup by owner in SQL; a task that exists
	// but belongs to someone else is indistinguishable from a missing one.
	GetTaskForOwner(ctx context.Context, id, ownerID string) (*models.Task, error)
	// TaskExists is used for audit logging only, to tell "not yours" apart
	// from "does not exist" without exposing the difference to callers.
	TaskExists(ctx context.Context, id string) (bool, error)
}
