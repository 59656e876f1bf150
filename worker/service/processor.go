package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdfworks/worker/kafka"
	"pdfworks/worker/models"
	"pdfworks/worker/repository"
)

// Converter is the external image/PDF capability the processor dispatches
// to. Satisfied by converter.PDFConverter; tests use a fake.
type Converter interface {
	ImageToPDF(ctx context.Context, inputPath, outputPath string) error
	MergePDFs(ctx context.Context, inputPaths []string, outputPath string) error
}

// StatusCache mirrors transitions for the API's read path. Best effort: a
// cache write failure never affects the task outcome.
type StatusCache interface {
	Set(ctx context.Context, ownerID, taskID, status string) error
}

// errInfra marks failures of the surrounding infrastructure (registry,
// artifact store I/O at the row level). They propagate to the consumer for
// retry and dead-lettering instead of failing the task.
var errInfra = errors.New("infrastructure failure")

type taskHandler func(ctx context.Context, task *models.Task) (*models.Artifact, error)

type Processor struct {
	repo     repository.Repository
	cache    StatusCache
	conv     Converter
	dataDir  string
	timeout  time.Duration
	logger   *zap.Logger
	handlers map[models.TaskKind]taskHandler
}

func NewProcessor(repo repository.Repository, cache StatusCache, conv Converter, dataDir string, timeout time.Duration, logger *zap.Logger) *Processor {
	p := &Processor{
		repo:    repo,
		cache:   cache,
		conv:    conv,
		dataDir: dataDir,
		timeout: timeout,
		logger:  logger,
	}
	p.handlers = map[models.TaskKind]taskHandler{
		models.KindConvert: p.runConvert,
		models.KindMerge:   p.runMerge,
	}
	return p
}

// Process executes one delivered job to a terminal task state. Domain
// failures are recorded on the task and swallowed; only infrastructure
// errors return non-nil, signalling the consumer to retry the delivery.
func (p *Processor) Process(ctx context.Context, msg *kafka.TaskMessage) error {
	task, err := p.repo.ClaimTask(ctx, msg.TaskID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTaskFinished):
			p.logger.Info("Redelivered task already finished",
				zap.String("task_id", msg.TaskID),
				zap.String("trace_id", msg.TraceID),
			)
			return nil
		case errors.Is(err, repository.ErrTaskNotFound):
			p.logger.Warn("Dropping job for unknown task",
				zap.String("task_id", msg.TaskID),
				zap.String("trace_id", msg.TraceID),
			)
			return nil
		default:
			return fmt.Errorf("claim task %s: %w", msg.TaskID, err)
		}
	}

	p.setStatus(ctx, task, models.StatusStarted)

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	handler, ok := p.handlers[task.Kind]
	if !ok {
		return p.failTask(ctx, task, fmt.Sprintf("unsupported task kind: %s", task.Kind))
	}

	artifact, err := handler(runCtx, task)
	if err != nil {
		if errors.Is(err, errInfra) {
			return fmt.Errorf("task %s: %w", task.ID, err)
		}
		return p.failTask(ctx, task, err.Error())
	}

	if err := p.repo.UpsertArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("store result artifact for task %s: %w", task.ID, err)
	}

	if err := p.repo.CompleteTask(ctx, task.ID, artifact.ID); err != nil {
		if errors.Is(err, repository.ErrTaskFinished) {
			// A concurrent redelivery finished first; its result stands.
			p.logger.Info("Task finished by another delivery",
				zap.String("task_id", task.ID),
				zap.String("trace_id", task.TraceID),
			)
			return nil
		}
		return fmt.Errorf("complete task %s: %w", task.ID, err)
	}

	p.setStatus(ctx, task, models.StatusSucceeded)
	p.logger.Info("Task succeeded",
		zap.String("task_id", task.ID),
		zap.String("trace_id", task.TraceID),
		zap.String("kind", string(task.Kind)),
		zap.String("result_artifact_id", artifact.ID),
	)
	return nil
}

func (p *Processor) runConvert(ctx context.Context, task *models.Task) (*models.Artifact, error) {
	if len(task.InputArtifactIDs) != 1 {
		return nil, fmt.Errorf("convert task expects exactly one input artifact, got %d", len(task.InputArtifactIDs))
	}

	input, err := p.loadOwnedArtifact(ctx, task, task.InputArtifactIDs[0])
	if err != nil {
		return nil, err
	}

	outName := outputName(input.Filename)
	outPath, err := p.outputPath(task, outName)
	if err != nil {
		return nil, err
	}

	if err := p.conv.ImageToPDF(ctx, input.StoragePath, outPath); err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}

	return p.resultArtifact(task, outName, outPath)
}

func (p *Processor) runMerge(ctx context.Context, task *models.Task) (*models.Artifact, error) {
	artifacts, err := p.repo.GetArtifactsByIDs(ctx, task.InputArtifactIDs)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			return nil, fmt.Errorf("merge input missing: %w", err)
		}
		return nil, fmt.Errorf("%w: load merge inputs: %v", errInfra, err)
	}

	paths := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		if artifact.OwnerID != task.OwnerID {
			return nil, fmt.Errorf("artifact %s not owned by task owner", artifact.ID)
		}
		paths = append(paths, artifact.StoragePath)
	}

	outPath, err := p.outputPath(task, task.OutputFilename)
	if err != nil {
		return nil, err
	}

	if err := p.conv.MergePDFs(ctx, paths, outPath); err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	return p.resultArtifact(task, task.OutputFilename, outPath)
}

func (p *Processor) loadOwnedArtifact(ctx context.Context, task *models.Task, artifactID string) (*models.Artifact, error) {
	artifact, err := p.repo.GetArtifact(ctx, artifactID)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			return nil, fmt.Errorf("input artifact %s not found", artifactID)
		}
		return nil, fmt.Errorf("%w: load artifact %s: %v", errInfra, artifactID, err)
	}
	if artifact.OwnerID != task.OwnerID {
		return nil, fmt.Errorf("artifact %s not owned by task owner", artifactID)
	}
	return artifact, nil
}

// outputPath derives a deterministic location from the task ID, so a
// redelivered execution rewrites the same file instead of forking a second
// result.
func (p *Processor) outputPath(task *models.Task, filename string) (string, error) {
	dir := filepath.Join(p.dataDir, task.OwnerID, "outputs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %v", errInfra, err)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s", task.ID, filename)), nil
}

func (p *Processor) resultArtifact(task *models.Task, filename, path string) (*models.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat output: %v", errInfra, err)
	}
	return &models.Artifact{
		OwnerID:     task.OwnerID,
		Kind:        models.ArtifactPDF,
		Filename:    filename,
		StoragePath: path,
		Size:        info.Size(),
	}, nil
}

func (p *Processor) failTask(ctx context.Context, task *models.Task, msg string) error {
	if err := p.repo.FailTask(ctx, task.ID, msg); err != nil {
		if errors.Is(err, repository.ErrTaskFinished) {
			return nil
		}
		return fmt.Errorf("record failure for task %s: %w", task.ID, err)
	}

	p.setStatus(ctx, task, models.StatusFailed)
	p.logger.Warn("Task failed",
		zap.String("task_id", task.ID),
		zap.String("trace_id", task.TraceID),
		zap.String("kind", string(task.Kind)),
		zap.String("error", msg),
	)
	return nil
}

func (p *Processor) setStatus(ctx context.Context, task *models.Task, status models.TaskStatus) {
	if err := p.cache.Set(ctx, task.OwnerID, task.ID, string(status)); err != nil {
		p.logger.Warn("Failed to update status cache",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}
}

func outputName(inputFilename string) string {
	stem := strings.TrimSuffix(inputFilename, filepath.Ext(inputFilename))
	if stem == "" {
		stem = "converted"
	}
	return stem + ".pdf"
}
