package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TTS request lifecycle statuses. Transitions are monotonic:
// pending -> in_progress -> completed|failed. Terminal statuses never revert.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

type TTSRequest struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	ReferenceID       string
	ReferenceAudioURL sql.NullString
	InputText         string
	Status            string
	AudioURL          sql.NullString
	ErrorMessage      sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type UsageCounter struct {
	UserID    uuid.UUID
	Day       string
	Count     int
	UpdatedAt time.Time
}
