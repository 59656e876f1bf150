package models

import (
	"time"
)

type TaskKind string

const (
	KindConvert TaskKind = "convert"
	KindMerge   TaskKind = "merge"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusStarted   TaskStatus = "started"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

type Task struct {
	ID               string
	TraceID          string
	Kind             TaskKind
	OwnerID          string
	InputArtifactIDs []string
	OutputFilename   string
	Status           TaskStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
