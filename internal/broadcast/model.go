package broadcast

import (
	"time"

	"github.com/kopainglay2025/relay/internal/channel"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Job is one admin-initiated one-to-many send. Terminal jobs are retained
// for audit and never retried automatically.
type Job struct {
	ID           string          `json:"id"`
	Channel      channel.Channel `json:"channel"`
	Text         string          `json:"text"`
	Status       Status          `json:"status"`
	SuccessCount int             `json:"success_count"`
	TotalCount   int             `json:"total_count"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
