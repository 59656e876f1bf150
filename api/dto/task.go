package dto

import "errors"

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrForbidden        = errors.New("artifact owned by another user")
	ErrInvalidRequest   = errors.New("invalid request")
)

type MergeRequest struct {
	ArtifactIDs    []string `json:"artifact_ids"`
	OutputFilename string   `json:"output_filename"`
}

// TaskResponse is the caller's view of a task. Status reads served from the
// cache carry only ID and Status; the registry fills the remaining fields,
// and always does so once the task is terminal. Pollers must treat
// everything beyond ID and Status as optional until then.
type TaskResponse struct {
	ID               string   `json:"id"`
	TraceID          string   `json:"trace_id,omitempty"`
	Kind             string   `json:"kind"`
	Status           string   `json:"status"`
	InputArtifactIDs []string `json:"input_artifact_ids,omitempty"`
	ResultArtifactID *string  `json:"result_artifact_id,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
	CompletedAt      *string  `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
