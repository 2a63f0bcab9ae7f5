package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lughati/voice_service/internal/client"
)

// Sentence is a practice sentence from the curated pool.
type Sentence struct {
	ID                uuid.UUID `json:"id"`
	EnglishText       string    `json:"english_text"`
	ArabicTranslation string    `json:"arabic_translation"`
	AudioURLUS        string    `json:"audio_url_us"`
	AudioURLUK        string    `json:"audio_url_uk"`
	CEFRLevel         string    `json:"cefr_level"`
	IsActive          bool      `json:"is_active"`
	UsageCount        int       `json:"usage_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SentenceRepository defines the interface for sentence data access.
type SentenceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Sentence, error)
	// ListByCEFRLevels returns active sentences matching any of the given
	// CEFR levels, least-used first.
	ListByCEFRLevels(ctx context.Context, levels []string, limit int) ([]*Sentence, error)
	// IncrementUsage bumps usage_count for the given sentences so the
	// least-used ordering keeps rotating the pool.
	IncrementUsage(ctx context.Context, ids []uuid.UUID) error
}

// PostgresSentenceRepository implements SentenceRepository with PostgreSQL.
type PostgresSentenceRepository struct {
	db *client.PostgresClient
}

// NewPostgresSentenceRepository creates a new PostgresSentenceRepository.
func NewPostgresSentenceRepository(db *client.PostgresClient) *PostgresSentenceRepository {
	return &PostgresSentenceRepository{db: db}
}

// GetByID retrieves a sentence by ID.
func (r *PostgresSentenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*Sentence, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT id, english_text, arabic_translation, audio_url_us, audio_url_uk,
		       cefr_level, is_active, usage_count, created_at, updated_at
		FROM sentences
		WHERE id = $1
	`

	var s Sentence
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.EnglishText,
		&s.ArabicTranslation,
		&s.AudioURLUS,
		&s.AudioURLUK,
		&s.CEFRLevel,
		&s.IsActive,
		&s.UsageCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sentence: %w", err)
	}

	return &s, nil
}

// ListByCEFRLevels returns active sentences for the levels, least-used first.
func (r *PostgresSentenceRepository) ListByCEFRLevels(ctx context.Context, levels []string, limit int) ([]*Sentence, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT id, english_text, arabic_translation, audio_url_us, audio_url_uk,
		       cefr_level, is_active, usage_count, created_at, updated_at
		FROM sentences
		WHERE is_active = true AND cefr_level = ANY($1)
		ORDER BY usage_count ASC, created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, levels, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sentences: %w", err)
	}
	defer rows.Close()

	var sentences []*Sentence
	for rows.Next() {
		var s Sentence
		if err := rows.Scan(
			&s.ID,
			&s.EnglishText,
			&s.ArabicTranslation,
			&s.AudioURLUS,
			&s.AudioURLUK,
			&s.CEFRLevel,
			&s.IsActive,
			&s.UsageCount,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sentence: %w", err)
		}
		sentences = append(sentences, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sentences: %w", err)
	}

	return sentences, nil
}

// IncrementUsage bumps usage_count for the given sentence IDs.
func (r *PostgresSentenceRepository) IncrementUsage(ctx context.Context, ids []uuid.UUID) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE sentences
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = ANY($1)
	`

	if _, err := r.db.Pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to increment sentence usage: %w", err)
	}
	return nil
}

// InMemorySentenceRepository implements SentenceRepository without a database.
type InMemorySentenceRepository struct {
	mu        sync.Mutex
	sentences map[uuid.UUID]*Sentence
}

// NewInMemorySentenceRepository creates an in-memory repository seeded with
// the given sentences.
func NewInMemorySentenceRepository(seed ...*Sentence) *InMemorySentenceRepository {
	r := &InMemorySentenceRepository{sentences: make(map[uuid.UUID]*Sentence)}
	for _, s := range seed {
		cp := *s
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		r.sentences[cp.ID] = &cp
	}
	return r
}

// GetByID retrieves a sentence by ID.
func (r *InMemorySentenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*Sentence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sentences[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListByCEFRLevels returns active matching sentences, least-used first.
func (r *InMemorySentenceRepository) ListByCEFRLevels(ctx context.Context, levels []string, limit int) ([]*Sentence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		wanted[l] = struct{}{}
	}

	var matched []*Sentence
	for _, s := range r.sentences {
		if !s.IsActive {
			continue
		}
		if _, ok := wanted[s.CEFRLevel]; !ok {
			continue
		}
		cp := *s
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UsageCount != matched[j].UsageCount {
			return matched[i].UsageCount < matched[j].UsageCount
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// IncrementUsage bumps usage_count for the given sentence IDs.
func (r *InMemorySentenceRepository) IncrementUsage(ctx context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if s, ok := r.sentences[id]; ok {
			s.UsageCount++
			s.UpdatedAt = time.Now()
		}
	}
	return nil
}
