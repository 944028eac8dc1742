package supabase

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"voiceclone-backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateFeedback is returned when an insert hits the unique
	// (tts_id, identity) constraint.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// --- TTS requests ---

func (d *DatabaseClient) CreateTTSRequest(userID uuid.UUID, referenceID, referenceAudioURL, inputText string) (*models.TTSRequest, error) {
	var req models.TTSRequest
	err := d.db.QueryRow(`
		INSERT INTO tts_requests (user_id, reference_id, reference_audio_url, input_text, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, 'pending')
		RETURNING id, user_id, reference_id, reference_audio_url, input_text, status, audio_url, error_message, created_at, updated_at
	`, userID, referenceID, referenceAudioURL, inputText).Scan(
		&req.ID, &req.UserID, &req.ReferenceID, &req.ReferenceAudioURL, &req.InputText,
		&req.Status, &req.AudioURL, &req.ErrorMessage, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tts request: %w", err)
	}

	return &req, nil
}

func (d *DatabaseClient) GetTTSRequest(requestID, userID uuid.UUID) (*models.TTSRequest, error) {
	return d.getTTSRequest(`
		SELECT id, user_id, reference_id, reference_audio_url, input_text, status, audio_url, error_message, created_at, updated_at
		FROM tts_requests
		WHERE id = $1 AND user_id = $2
	`, requestID, userID)
}

// GetTTSRequestByID looks up a request without an ownership check. Used by the
// worker webhook, which authenticates with its own token.
func (d *DatabaseClient) GetTTSRequestByID(requestID uuid.UUID) (*models.TTSRequest, error) {
	return d.getTTSRequest(`
		SELECT id, user_id, reference_id, reference_audio_url, input_text, status, audio_url, error_message, created_at, updated_at
		FROM tts_requests
		WHERE id = $1
	`, requestID)
}

func (d *DatabaseClient) getTTSRequest(query string, args ...interface{}) (*models.TTSRequest, error) {
	var req models.TTSRequest
	err := d.db.QueryRow(query, args...).Scan(
		&req.ID, &req.UserID, &req.ReferenceID, &req.ReferenceAudioURL, &req.InputText,
		&req.Status, &req.AudioURL, &req.ErrorMessage, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tts request: %w", err)
	}

	return &req, nil
}

// UpdateTTSRequestStatus moves a request to a new status. The WHERE clause
// guards monotonicity: a terminal row is never updated, so a stale or
// duplicate transition is a no-op rather than a regression.
func (d *DatabaseClient) UpdateTTSRequestStatus(requestID uuid.UUID, status string) error {
	_, err := d.db.Exec(`
		UPDATE tts_requests
		SET status = $1
		WHERE id = $2 AND status NOT IN ('completed', 'failed')
	`, status, requestID)
	return err
}

func (d *DatabaseClient) UpdateTTSRequestError(requestID uuid.UUID, errorMsg string) error {
	_, err := d.db.Exec(`
		UPDATE tts_requests
		SET status = 'failed', error_message = $1
		WHERE id = $2 AND status NOT IN ('completed', 'failed')
	`, errorMsg, requestID)
	return err
}

// CompleteTTSRequest records the worker's terminal outcome. Returns false when
// the row was already terminal and the update did not apply.
func (d *DatabaseClient) CompleteTTSRequest(requestID uuid.UUID, status, audioURL, errorMsg string) (bool, error) {
	res, err := d.db.Exec(`
		UPDATE tts_requests
		SET status = $1, audio_url = NULLIF($2, ''), error_message = NULLIF($3, '')
		WHERE id = $4 AND status NOT IN ('completed', 'failed')
	`, status, audioURL, errorMsg, requestID)
	if err != nil {
		return false, fmt.Errorf("failed to complete tts request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// QueueCounts returns the request's position among waiting jobs and the total
// number waiting. Position is 0 for anything past pending.
func (d *DatabaseClient) QueueCounts(req *models.TTSRequest) (position, totalWaiting int, err error) {
	err = d.db.QueryRow(`
		SELECT COUNT(*) FROM tts_requests WHERE status = 'pending'
	`).Scan(&totalWaiting)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count waiting requests: %w", err)
	}

	if req.Status != models.StatusPending {
		return 0, totalWaiting, nil
	}

	var older int
	err = d.db.QueryRow(`
		SELECT COUNT(*) FROM tts_requests
		WHERE status = 'pending' AND created_at < $1
	`, req.CreatedAt).Scan(&older)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute queue position: %w", err)
	}

	return older + 1, totalWaiting, nil
}

// --- Profiles / usage ---

func (d *DatabaseClient) TermsAccepted(userID uuid.UUID) (bool, error) {
	var accepted bool
	err := d.db.QueryRow(`
		SELECT terms_accepted FROM profiles WHERE id = $1
	`, userID).Scan(&accepted)
	if errors.Is(err, sql.ErrNoRows) {
		// No profile row means terms were never accepted
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check terms acceptance: %w", err)
	}
	return accepted, nil
}

// IncrementUsage atomically charges one generation against the (user, day)
// counter. The conditional upsert means two concurrent calls at the limit
// boundary serialize in the database: at most one sees a returned row. When
// denied the counter is left unchanged and the current count is returned.
func (d *DatabaseClient) IncrementUsage(userID uuid.UUID, day string, limit int) (count int, allowed bool, err error) {
	err = d.db.QueryRow(`
		INSERT INTO usage_counters (user_id, day, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day) DO UPDATE
		SET count = usage_counters.count + 1, updated_at = NOW()
		WHERE usage_counters.count < $3
		RETURNING count
	`, userID, day, limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	// Denied: report the untouched count
	err = d.db.QueryRow(`
		SELECT count FROM usage_counters WHERE user_id = $1 AND day = $2
	`, userID, day).Scan(&count)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read usage counter: %w", err)
	}
	return count, false, nil
}

// --- Feedback ---

func (d *DatabaseClient) CreateFeedback(fb *models.Feedback) error {
	err := d.db.QueryRow(`
		INSERT INTO feedback (tts_id, user_id, session_id, rating_overall, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, fb.TTSID, fb.UserID, fb.SessionID, fb.RatingOverall, fb.Comment).Scan(
		&fb.ID, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateFeedback
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// GetFeedbackForIdentity returns the one feedback row the caller may see:
// its own, for the given request. Exactly one of userID/sessionID is set.
func (d *DatabaseClient) GetFeedbackForIdentity(ttsID uuid.UUID, userID uuid.NullUUID, sessionID sql.NullString) (*models.Feedback, error) {
	var query string
	var ident interface{}
	if userID.Valid {
		query = `
			SELECT id, tts_id, user_id, session_id, rating_overall, comment, created_at, updated_at
			FROM feedback WHERE tts_id = $1 AND user_id = $2
		`
		ident = userID.UUID
	} else {
		query = `
			SELECT id, tts_id, user_id, session_id, rating_overall, comment, created_at, updated_at
			FROM feedback WHERE tts_id = $1 AND session_id = $2
		`
		ident = sessionID.String
	}

	var fb models.Feedback
	err := d.db.QueryRow(query, ttsID, ident).Scan(
		&fb.ID, &fb.TTSID, &fb.UserID, &fb.SessionID,
		&fb.RatingOverall, &fb.Comment, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return &fb, nil
}

func (d *DatabaseClient) GetFeedbackByID(feedbackID uuid.UUID) (*models.Feedback, error) {
	var fb models.Feedback
	err := d.db.QueryRow(`
		SELECT id, tts_id, user_id, session_id, rating_overall, comment, created_at, updated_at
		FROM feedback WHERE id = $1
	`, feedbackID).Scan(
		&fb.ID, &fb.TTSID, &fb.UserID, &fb.SessionID,
		&fb.RatingOverall, &fb.Comment, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return &fb, nil
}

// UpdateFeedback patches only the provided fields.
func (d *DatabaseClient) UpdateFeedback(feedbackID uuid.UUID, rating *int, comment *string) error {
	_, err := d.db.Exec(`
		UPDATE feedback
		SET rating_overall = COALESCE($1::int, rating_overall),
		    comment = COALESCE($2::varchar, comment)
		WHERE id = $3
	`, rating, comment, feedbackID)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	return nil
}

func (d *DatabaseClient) CreateSiteFeedback(fb *models.SiteFeedback) error {
	err := d.db.QueryRow(`
		INSERT INTO site_feedback (user_id, session_id, rating_overall, comment, page)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, fb.UserID, fb.SessionID, fb.RatingOverall, fb.Comment, fb.Page).Scan(
		&fb.ID, &fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create site feedback: %w", err)
	}
	return nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
