package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pdfworks/api/database"
	"pdfworks/api/models"
)

const pgUniqueViolation = "23505"

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, hashed_password)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query, user.Username, user.HashedPassword).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (r *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, hashed_password, created_at
		FROM users
		WHERE username = $1
	`

	var user models.User
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.HashedPassword,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepo) CreateArtifact(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (owner_id, kind, filename, storage_path, size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		artifact.OwnerID,
		artifact.Kind,
		artifact.Filename,
		artifact.StoragePath,
		artifact.Size,
	).Scan(&artifact.ID, &artifact.CreatedAt)
}

func (r *PostgresRepo) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	query := `
		SELECT id, owner_id, kind, filename, storage_path, size, created_at
		FROM artifacts
		WHERE id = $1
	`

	var artifact models.Artifact
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
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

func (r *PostgresRepo) ListArtifactsByOwner(ctx context.Context, ownerID string) ([]*models.Artifact, error) {
	query := `
		SELECT id, owner_id, kind, filename, storage_path, size, created_at
		FROM artifacts
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*models.Artifact
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
		artifacts = append(artifacts, &artifact)
	}

	return artifacts, rows.Err()
}

func (r *PostgresRepo) CreateTask(ctx context.Context, task *models.Task) error {
	inputIDs, err := json.Marshal(task.InputArtifactIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (trace_id, kind, owner_id, input_artifact_ids, output_filename, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		task.TraceID,
		task.Kind,
		task.OwnerID,
		inputIDs,
		task.OutputFilename,
		task.Status,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *PostgresRepo) GetTaskForOwner(ctx context.Context, id, ownerID string) (*models.Task, error) {
	query := `
		SELECT id, trace_id, kind, owner_id, input_artifact_ids, output_filename,
		       status, result_artifact_id, error_message, created_at, updated_at, completed_at
		FROM tasks
		WHERE id = $1 AND owner_id = $2
	`

	var (
		task     models.Task
		inputIDs []byte
	)
	err := r.db.Pool.QueryRow(ctx, query, id, ownerID).Scan(
		&task.ID,
		&task.TraceID,
		&task.Kind,
		&task.OwnerID,
		&inputIDs,
		&task.OutputFilename,
		&task.Status,
		&task.ResultArtifactID,
		&task.ErrorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(inputIDs, &task.InputArtifactIDs); err != nil {
		return nil, err
	}

	return &task, nil
}

func (r *PostgresRepo) TaskExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}
