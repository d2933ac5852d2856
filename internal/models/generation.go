package models

import (
	"time"
)

// GenerationStatus tracks a generation request through the pipeline.
type GenerationStatus string

const (
	StatusPending       GenerationStatus = "pending"
	StatusGenerating    GenerationStatus = "generating"
	StatusMaterializing GenerationStatus = "materializing"
	StatusArchiving     GenerationStatus = "archiving"
	StatusBuilding      GenerationStatus = "building"
	StatusSucceeded     GenerationStatus = "succeeded"
	StatusFailed        GenerationStatus = "failed"
	StatusCancelled     GenerationStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s GenerationStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ArtifactState describes the outcome of artifact resolution after a build.
// "absent" means the build exited zero but the expected output path did not
// exist, which callers must treat as distinct from a failed build.
type ArtifactState string

const (
	ArtifactNone    ArtifactState = "none"    // build disabled or not reached
	ArtifactPresent ArtifactState = "present"
	ArtifactAbsent  ArtifactState = "absent"
)

// Generation represents one prompt-to-archive request.
type Generation struct {
	ID               string           `json:"id" db:"id"`
	UserID           string           `json:"user_id" db:"user_id"`
	Prompt           string           `json:"prompt" db:"prompt"`
	AppName          string           `json:"app_name" db:"app_name"`
	Status           GenerationStatus `json:"status" db:"status"`
	TemplateFallback bool             `json:"template_fallback" db:"template_fallback"`
	ArchivePath      string           `json:"archive_path,omitempty" db:"archive_path"`
	ArtifactState    ArtifactState    `json:"artifact_state" db:"artifact_state"`
	ArtifactPath     string           `json:"artifact_path,omitempty" db:"artifact_path"`
	BuildOutput      string           `json:"build_output,omitempty" db:"build_output"`
	Error            string           `json:"error,omitempty" db:"error"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}
