package models

import (
	"time"
)

type ArtifactKind string

const (
	ArtifactImageUpload ArtifactKind = "image-upload"
	ArtifactPDF         ArtifactKind = "pdf"
)

type Artifact struct {
	ID          string
	OwnerID     string
	Kind        ArtifactKind
	Filename    string
	StoragePath string
	Size        int64
	CreatedAt   time.Time
}
