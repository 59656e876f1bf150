package models

import (
	"time"
)

type ArtifactKind string

const (
	ArtifactImageUpload ArtifactKind = "image-upload"
	ArtifactPDF         ArtifactKind = "pdf"
)

// Artifact is an immutable stored file with exactly one owner.
// Bytes are written once under StoragePath and never modified.
type Artifact struct {
	ID          string
	OwnerID     string
	Kind        ArtifactKind
	Filename    string
	StoragePath string
	Size        int64
	CreatedAt   time.Time
}
