package repository

import (
	"context"
	"errors"

	"pdfworks/worker/models"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinished is returned when a claim or terminal update races a
	// redelivered execution that already finished the task.
	ErrTaskFinished     = errors.New("task already in a terminal state")
	ErrArtifactNotFound = errors.New("artifact not found")
)

type Repository interface {
	// ClaimTask atomically flips a pending task to started and returns it.
	// A task stuck in started (worker crash before the terminal flip) may
	// be re-claimed so redelivery can finish it. Terminal tasks return
	// ErrTaskFinished.
	ClaimTask(ctx context.Context, taskID string) (*models.Task, error)
	// CompleteTask flips started to succeeded together with the result
	// reference and completion timestamp, as a single atomic update.
	CompleteTask(ctx context.Context, taskID, resultArtifactID string) error
	// FailTask flips a non-terminal task to failed with a human-readable
	// error message.
	FailTask(ctx context.Context, taskID, errMsg string) error

	GetArtifact(ctx context.Context, id string) (*models.Artifact, error)
	// GetArtifactsByIDs returns artifacts in exactly the order of ids.
	GetArtifactsByIDs(ctx context.Context, ids []string) ([]*models.Artifact, error)
	// UpsertArtifact inserts an output artifact. storage_path is unique, so
	// a redelivered execution that produced the same deterministic path
	// converges on the existing row instead of creating a second result.
	UpsertArtifact(ctx context.Context, artifact *models.Artifact) error
}
