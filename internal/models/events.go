package models

import (
	"time"
)

// GenerationEvent is a progress event streamed to websocket subscribers
// while a generation moves through the pipeline.
type GenerationEvent struct {
	GenerationID string           `json:"generation_id"`
	EventType    string           `json:"event_type"`
	Status       GenerationStatus `json:"status"`
	Message      string           `json:"message,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Event types
const (
	EventTypeStageStarted  = "generation.stage_started"
	EventTypeStageFinished = "generation.stage_finished"
	EventTypeCompleted     = "generation.completed"
	EventTypeFailed        = "generation.failed"
	EventTypeCancelled     = "generation.cancelled"
)
