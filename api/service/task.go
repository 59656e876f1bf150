package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdfworks/api/dto"
	"pdfworks/api/kafka"
	"pdfworks/api/models"
	"pdfworks/api/repository"
)

// StatusCache is the owner-scoped task status cache consumed on the read
// path. Satisfied by cache.StatusCache; tests use an in-memory fake.
type StatusCache interface {
	Get(ctx context.Context, ownerID, taskID string) (string, error)
	Set(ctx context.Context, ownerID, taskID, status string) error
}

type TaskService struct {
	repo     repository.Repository
	cache    StatusCache
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewTaskService(repo repository.Repository, cache StatusCache, producer kafka.Producer, topic string, logger *zap.Logger) *TaskService {
	return &TaskService{
		repo:     repo,
		cache:    cache,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// CreateConvertTask records an uploaded image as an artifact and admits a
// conversion task for it. The file at storagePath has already been written
// by the handler; ownership is fixed at creation and never changes.
func (s *TaskService) CreateConvertTask(ctx context.Context, traceID, ownerID, filename, storagePath string, size int64) (*dto.TaskResponse, error) {
	artifact := &models.Artifact{
		OwnerID:     ownerID,
		Kind:        models.ArtifactImageUpload,
		Filename:    filename,
		StoragePath: storagePath,
		Size:        size,
	}
	if err := s.repo.CreateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	task := &models.Task{
		TraceID:          traceID,
		Kind:             models.KindConvert,
		OwnerID:          ownerID,
		InputArtifactIDs: []string{artifact.ID},
		Status:           models.StatusPending,
	}
	return s.admit(ctx, task)
}

// CreateMergeTask validates ownership of every referenced artifact and
// admits a merge task. The order of req.ArtifactIDs is the merge order and
// is preserved end to end. Nothing is enqueued unless every check passes.
func (s *TaskService) CreateMergeTask(ctx context.Context, traceID, ownerID string, req *dto.MergeRequest) (*dto.TaskResponse, error) {
	if len(req.ArtifactIDs) == 0 {
		return nil, fmt.Errorf("%w: artifact_ids must not be empty", dto.ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(req.ArtifactIDs))
	for _, id := range req.ArtifactIDs {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: malformed artifact id %s", dto.ErrInvalidRequest, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate artifact id %s", dto.ErrInvalidRequest, id)
		}
		seen[id] = true
	}

	outputFilename, err := SanitizeOutputFilename(req.OutputFilename)
	if err != nil {
		return nil, err
	}

	for _, id := range req.ArtifactIDs {
		artifact, err := s.repo.GetArtifact(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrArtifactNotFound) {
				return nil, fmt.Errorf("%w: %s", dto.ErrArtifactNotFound, id)
			}
			return nil, err
		}
		if artifact.OwnerID != ownerID {
			s.logger.Warn("Merge request referenced foreign artifact",
				zap.String("trace_id", traceID),
				zap.String("owner_id", ownerID),
				zap.String("artifact_id", id),
				zap.String("artifact_owner_id", artifact.OwnerID),
			)
			return nil, fmt.Errorf("%w: %s", dto.ErrForbidden, id)
		}
		if artifact.Kind != models.ArtifactPDF {
			return nil, fmt.Errorf("%w: artifact %s is not a PDF", dto.ErrInvalidRequest, id)
		}
	}

	task := &models.Task{
		TraceID:          traceID,
		Kind:             models.KindMerge,
		OwnerID:          ownerID,
		InputArtifactIDs: req.ArtifactIDs,
		OutputFilename:   outputFilename,
		Status:           models.StatusPending,
	}
	return s.admit(ctx, task)
}

// admit persists the pending task row and enqueues exactly one job for it.
func (s *TaskService) admit(ctx context.Context, task *models.Task) (*dto.TaskResponse, error) {
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if err := s.cache.Set(ctx, task.OwnerID, task.ID, string(task.Status)); err != nil {
		s.logger.Warn("Failed to prime status cache",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	msg := &kafka.TaskMessage{
		TaskID:         task.ID,
		TraceID:        task.TraceID,
		Kind:           string(task.Kind),
		ArtifactIDs:    task.InputArtifactIDs,
		OutputFilename: task.OutputFilename,
	}
	if err := s.producer.SendTaskMessage(ctx, s.topic, msg); err != nil {
		return nil, fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}

	return toResponse(task), nil
}

// GetTaskStatus returns the caller's view of a task. A task owned by
// someone else yields the same not-found error as a missing one; the
// difference is kept to an audit log line.
func (s *TaskService) GetTaskStatus(ctx context.Context, ownerID, taskID string) (*dto.TaskResponse, error) {
	// A malformed ID cannot name a task; reject it before it reaches the
	// registry as a cast error.
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, dto.ErrTaskNotFound
	}

	if status, err := s.cache.Get(ctx, ownerID, taskID); err == nil {
		if !models.TaskStatus(status).IsTerminal() {
			// Cache-served reads are the slim ID+Status shape documented on
			// dto.TaskResponse.
			return &dto.TaskResponse{ID: taskID, Status: status}, nil
		}
		// Terminal tasks carry a result or error that only the registry has.
	}

	task, err := s.repo.GetTaskForOwner(ctx, taskID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			if exists, auditErr := s.repo.TaskExists(ctx, taskID); auditErr == nil && exists {
				s.logger.Warn("Status request for another user's task",
					zap.String("owner_id", ownerID),
					zap.String("task_id", taskID),
				)
			}
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, ownerID, task.ID, string(task.Status)); err != nil {
		s.logger.Warn("Failed to refresh status cache",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	return toResponse(task), nil
}

// SanitizeOutputFilename validates a caller-supplied output name. Anything
// that could escape the owner's output directory is rejected.
func SanitizeOutputFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: output_filename must not be empty", dto.ErrInvalidRequest)
	}
	if filepath.IsAbs(name) || filepath.Base(name) != name || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: output_filename must be a plain file name", dto.ErrInvalidRequest)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name, nil
}

func toResponse(task *models.Task) *dto.TaskResponse {
	var completedAt *string
	if task.CompletedAt != nil {
		formatted := task.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		completedAt = &formatted
	}

	return &dto.TaskResponse{
		ID:               task.ID,
		TraceID:          task.TraceID,
		Kind:             string(task.Kind),
		Status:           string(task.Status),
		InputArtifactIDs: task.InputArtifactIDs,
		ResultArtifactID: task.ResultArtifactID,
		ErrorMessage:     task.ErrorMessage,
		CreatedAt:        task.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		CompletedAt:      completedAt,
	}
}
