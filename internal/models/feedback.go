package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Feedback is a rating+comment for one generated TTS request. Exactly one of
// UserID and SessionID is set; the pair (TTSID, identity) is unique.
type Feedback struct {
	ID            uuid.UUID
	TTSID         uuid.UUID
	UserID        uuid.NullUUID
	SessionID     sql.NullString
	RatingOverall int
	Comment       sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SiteFeedback is page-level feedback with no target request and no
// ownership/edit semantics.
type SiteFeedback struct {
	ID            uuid.UUID
	UserID        uuid.NullUUID
	SessionID     sql.NullString
	RatingOverall int
	Comment       sql.NullString
	Page          sql.NullString
	CreatedAt     time.Time
}
