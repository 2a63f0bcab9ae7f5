package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lughati/voice_service/internal/client"
	"github.com/lughati/voice_service/internal/transcoder"
)

// VoiceSample is a stored recording with its extracted metadata. Samples are
// written alongside attempts but carry no foreign key to them; a sample can
// outlive or predate any attempt.
type VoiceSample struct {
	ID             uuid.UUID           `json:"id"`
	UserID         uuid.UUID           `json:"user_id"`
	SentenceID     *uuid.UUID          `json:"sentence_id,omitempty"`
	SessionID      string              `json:"session_id"`
	SampleType     string              `json:"sample_type"`
	AudioFileURL   string              `json:"audio_file_url"`
	Transcription  string              `json:"transcription"`
	AudioFeatures  transcoder.Features `json:"audio_features"`
	QualityMetrics transcoder.Quality  `json:"quality_metrics"`
	CreatedAt      time.Time           `json:"created_at"`
}

// SampleRepository defines the interface for voice sample access.
type SampleRepository interface {
	Create(ctx context.Context, sample *VoiceSample) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*VoiceSample, error)
}

// PostgresSampleRepository implements SampleRepository with PostgreSQL.
type PostgresSampleRepository struct {
	db *client.PostgresClient
}

// NewPostgresSampleRepository creates a new PostgresSampleRepository.
func NewPostgresSampleRepository(db *client.PostgresClient) *PostgresSampleRepository {
	return &PostgresSampleRepository{db: db}
}

// Create inserts a new voice sample.
func (r *PostgresSampleRepository) Create(ctx context.Context, sample *VoiceSample) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
		INSERT INTO voice_samples (
			user_id, sentence_id, session_id, sample_type, audio_file_url,
			transcription, audio_features, quality_metrics
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		sample.UserID,
		sample.SentenceID,
		sample.SessionID,
		sample.SampleType,
		sample.AudioFileURL,
		sample.Transcription,
		sample.AudioFeatures,
		sample.QualityMetrics,
	).Scan(&sample.ID, &sample.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create voice sample: %w", err)
	}

	return nil
}

// ListByUser returns the user's samples, newest first.
func (r *PostgresSampleRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*VoiceSample, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT id, user_id, sentence_id, session_id, sample_type,
		       audio_file_url, transcription, audio_features, quality_metrics,
		       created_at
		FROM voice_samples
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list voice samples: %w", err)
	}
	defer rows.Close()

	var samples []*VoiceSample
	for rows.Next() {
		var s VoiceSample
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.SentenceID,
			&s.SessionID,
			&s.SampleType,
			&s.AudioFileURL,
			&s.Transcription,
			&s.AudioFeatures,
			&s.QualityMetrics,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan voice sample: %w", err)
		}
		samples = append(samples, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read voice samples: %w", err)
	}

	return samples, nil
}

// InMemorySampleRepository implements SampleRepository without a database.
type InMemorySampleRepository struct {
	mu      sync.Mutex
	samples []*VoiceSample
}

// NewInMemorySampleRepository creates an empty in-memory sample repository.
func NewInMemorySampleRepository() *InMemorySampleRepository {
	return &InMemorySampleRepository{}
}

// Create stores the sample, assigning ID and CreatedAt.
func (r *InMemorySampleRepository) Create(ctx context.Context, sample *VoiceSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample.ID = uuid.New()
	sample.CreatedAt = time.Now()

	stored := *sample
	r.samples = append(r.samples, &stored)
	return nil
}

// ListByUser returns the user's samples, newest first.
func (r *InMemorySampleRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*VoiceSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*VoiceSample
	for i := len(r.samples) - 1; i >= 0; i-- {
		if r.samples[i].UserID != userID {
			continue
		}
		cp := *r.samples[i]
		matched = append(matched, &cp)
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	return matched, nil
}
