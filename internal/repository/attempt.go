package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lughati/voice_service/internal/client"
	"github.com/lughati/voice_service/internal/scorer"
	"github.com/lughati/voice_service/internal/transcoder"
)

// PronunciationAttempt is one scored pronunciation submission. The record is
// append-only: attempts are never updated or deleted.
type PronunciationAttempt struct {
	ID             uuid.UUID            `json:"id"`
	UserID         uuid.UUID            `json:"user_id"`
	SentenceID     uuid.UUID            `json:"sentence_id"`
	SessionID      string               `json:"session_id"`
	AttemptNumber  int                  `json:"attempt_number"`
	TargetText     string               `json:"target_text"`
	UserTranscript string               `json:"user_transcript"`
	OverallScore   int                  `json:"overall_score"`
	WordScores     []scorer.WordScore   `json:"word_scores"`
	TimingAnalysis scorer.Timing        `json:"timing_analysis"`
	ErrorAnalysis  scorer.ErrorAnalysis `json:"error_analysis"`
	FeedbackText   string               `json:"feedback_text"`
	AudioQuality   transcoder.Quality   `json:"audio_quality"`
	AudioFileURL   string               `json:"audio_file_url"`
	CreatedAt      time.Time            `json:"created_at"`
}

// AttemptRepository defines the interface for pronunciation attempt access.
type AttemptRepository interface {
	// Create persists the attempt, assigning ID, AttemptNumber (1-based per
	// user+sentence pair) and CreatedAt.
	Create(ctx context.Context, attempt *PronunciationAttempt) error
	// ListByUser returns the user's attempts, newest first, up to limit.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*PronunciationAttempt, error)
	// ListByUserChronological returns all of the user's attempts oldest
	// first, for progress trend computation.
	ListByUserChronological(ctx context.Context, userID uuid.UUID) ([]*PronunciationAttempt, error)
}

// PostgresAttemptRepository implements AttemptRepository with PostgreSQL.
type PostgresAttemptRepository struct {
	db *client.PostgresClient
}

// NewPostgresAttemptRepository creates a new PostgresAttemptRepository.
func NewPostgresAttemptRepository(db *client.PostgresClient) *PostgresAttemptRepository {
	return &PostgresAttemptRepository{db: db}
}

const attemptColumns = `
	id, user_id, sentence_id, session_id, attempt_number, target_text,
	user_transcript, overall_score, word_scores, timing_analysis,
	error_analysis, feedback_text, audio_quality, audio_file_url, created_at
`

// Create inserts the attempt. The attempt number is computed inside the
// INSERT so two concurrent submissions for the same user+sentence pair race
// on the unique (user_id, sentence_id, attempt_number) index; the loser is
// retried once with a freshly computed number.
func (r *PostgresAttemptRepository) Create(ctx context.Context, attempt *PronunciationAttempt) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	err := r.insert(ctx, attempt)
	if isUniqueViolation(err) {
		err = r.insert(ctx, attempt)
	}
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (r *PostgresAttemptRepository) insert(ctx context.Context, attempt *PronunciationAttempt) error {
	query := `
		INSERT INTO pronunciation_attempts (
			user_id, sentence_id, session_id, attempt_number, target_text,
			user_transcript, overall_score, word_scores, timing_analysis,
			error_analysis, feedback_text, audio_quality, audio_file_url
		)
		VALUES (
			$1, $2, $3,
			(
				SELECT COALESCE(MAX(attempt_number), 0) + 1
				FROM pronunciation_attempts
				WHERE user_id = $1 AND sentence_id = $2
			),
			$4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING id, attempt_number, created_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		attempt.UserID,
		attempt.SentenceID,
		attempt.SessionID,
		attempt.TargetText,
		attempt.UserTranscript,
		attempt.OverallScore,
		attempt.WordScores,
		attempt.TimingAnalysis,
		attempt.ErrorAnalysis,
		attempt.FeedbackText,
		attempt.AudioQuality,
		attempt.AudioFileURL,
	).Scan(&attempt.ID, &attempt.AttemptNumber, &attempt.CreatedAt)
}

// ListByUser returns the user's attempts, newest first.
func (r *PostgresAttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*PronunciationAttempt, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT ` + attemptColumns + `
		FROM pronunciation_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

// ListByUserChronological returns all attempts for the user, oldest first.
func (r *PostgresAttemptRepository) ListByUserChronological(ctx context.Context, userID uuid.UUID) ([]*PronunciationAttempt, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT ` + attemptColumns + `
		FROM pronunciation_attempts
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, userID)
}

func (r *PostgresAttemptRepository) list(ctx context.Context, query string, args ...any) ([]*PronunciationAttempt, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*PronunciationAttempt
	for rows.Next() {
		var a PronunciationAttempt
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.SentenceID,
			&a.SessionID,
			&a.AttemptNumber,
			&a.TargetText,
			&a.UserTranscript,
			&a.OverallScore,
			&a.WordScores,
			&a.TimingAnalysis,
			&a.ErrorAnalysis,
			&a.FeedbackText,
			&a.AudioQuality,
			&a.AudioFileURL,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attempts: %w", err)
	}

	return attempts, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// InMemoryAttemptRepository implements AttemptRepository without a database.
// The mutex serializes attempt numbering the way the unique index does in
// Postgres.
type InMemoryAttemptRepository struct {
	mu       sync.Mutex
	attempts []*PronunciationAttempt
}

// NewInMemoryAttemptRepository creates an empty in-memory attempt repository.
func NewInMemoryAttemptRepository() *InMemoryAttemptRepository {
	return &InMemoryAttemptRepository{}
}

// Create stores the attempt with the next attempt number for its
// user+sentence pair.
func (r *InMemoryAttemptRepository) Create(ctx context.Context, attempt *PronunciationAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := 1
	for _, a := range r.attempts {
		if a.UserID == attempt.UserID && a.SentenceID == attempt.SentenceID && a.AttemptNumber >= next {
			next = a.AttemptNumber + 1
		}
	}

	attempt.ID = uuid.New()
	attempt.AttemptNumber = next
	attempt.CreatedAt = time.Now()

	stored := *attempt
	r.attempts = append(r.attempts, &stored)
	return nil
}

// ListByUser returns the user's attempts, newest first. Insertion order is
// the tiebreaker for attempts created within the same clock tick.
func (r *InMemoryAttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*PronunciationAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*PronunciationAttempt
	for i := len(r.attempts) - 1; i >= 0; i-- {
		if r.attempts[i].UserID != userID {
			continue
		}
		cp := *r.attempts[i]
		matched = append(matched, &cp)
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	return matched, nil
}

// ListByUserChronological returns all attempts for the user, oldest first.
func (r *InMemoryAttemptRepository) ListByUserChronological(ctx context.Context, userID uuid.UUID) ([]*PronunciationAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*PronunciationAttempt
	for _, a := range r.attempts {
		if a.UserID == userID {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	return matched, nil
}
