package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pdfworks/worker/models"
)

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ClaimTask(ctx context.Context, taskID string) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET status = 'started', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'started')
		RETURNING id, trace_id, kind, owner_id, input_artifact_ids, output_filename, status, created_at, updated_at
	`

	var (
		task     models.Task
		inputIDs []byte
	)
	err := r.db.QueryRow(ctx, query, taskID).Scan(
		&task.ID,
		&task.TraceID,
		&task.Kind,
		&task.OwnerID,
		&inputIDs,
		&task.OutputFilename,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMissedClaim(ctx, taskID)
		}
		return nil, err
	}

	if err := json.Unmarshal(inputIDs, &task.InputArtifactIDs); err != nil {
		return nil, err
	}

	return &task, nil
}

// classifyMissedClaim tells a terminal task apart from a missing row after
// the claim update matched nothing.
func (r *PostgresRepo) classifyMissedClaim(ctx context.Context, taskID string) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, taskID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTaskNotFound
		}
		return err
	}
	if models.TaskStatus(status).IsTerminal() {
		return ErrTaskFinished
	}
	return fmt.Errorf("task %s in unexpected status %s", taskID, status)
}

func (r *PostgresRepo) CompleteTask(ctx context.Context, taskID, resultArtifactID string) error {
	query := `
		UPDATE tasks
		SET status = 'succeeded', result_artifact_id = $2, error_message = '',
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'started'
	`

	result, err := r.db.Exec(ctx, query, taskID, resultArtifactID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskFinished
	}
	return nil
}

func (r *PostgresRepo) FailTask(ctx context.Context, taskID, errMsg string) error {
	query := `
		UPDATE tasks
		SET status = 'failed', error_message = $2,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'started')
	`

	result, err := r.db.Exec(ctx, query, taskID, errMsg)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskFinished
	}
	return nil
}

func (r *PostgresRepo) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	query := `
		SELECT id, owner_id, kind, filename, storage_path, size, created_at
		FROM artifacts
		WHERE id = $1
	`

	var artifact models.Artifact
	err := r.db.QueryRow(ctx, query, id).Scan(
		&artifact.ID,
		&artifact.OwnerID,
		&artifact.Kind,
		&artifact.Filename,
		&artifact.StoragePath,
		&artifact.Size,
		&artifact.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}
		return nil, err
	}

	return &artifact, nil
}

func (r *PostgresRepo) GetArtifactsByIDs(ctx context.Context, ids []string) ([]*models.Artifact, error) {
	query := `
		SELECT id, owner_id, kind, filename, storage_path, size, created_at
		FROM artifacts
		WHERE id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*models.Artifact, len(ids))
	for rows.Next() {
		var artifact models.Artifact
		if err := rows.Scan(
			&artifact.ID,
			&artifact.OwnerID,
			&artifact.Kind,
			&artifact.Filename,
			&artifact.StoragePath,
			&artifact.Size,
			&artifact.CreatedAt,
		); err != nil {
			return nil, err
		}
		byID[artifact.ID] = &artifact
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reassemble in the caller-specified order; it is the merge order.
	artifacts := make([]*models.Artifact, 0, len(ids))
	for _, id := range ids {
		artifact, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func (r *PostgresRepo) UpsertArtifact(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (owner_id, kind, filename, storage_path, size)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (storage_path) DO UPDATE SET size = EXCLUDED.size
		RETURNING id, created_at
	`

	return r.db.QueryRow(ctx, query,
		artifact.OwnerID,
		artifact.Kind,
		artifact.Filename,
		artifact.StoragePath,
		artifact.Size,
	).Scan(&artifact.ID, &artifact.CreatedAt)
}
