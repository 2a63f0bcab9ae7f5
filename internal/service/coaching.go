package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lughati/voice_service/internal/errors"
	"github.com/lughati/voice_service/internal/scorer"
)

const (
	// Redis key prefix for coaching reply results
	coachingReplyKeyPrefix = "coaching:reply:"
	// TTL for reply results in Redis
	coachingReplyTTL = 2 * time.Minute
	// Default timeout for BLPOP waiting
	coachingWaitTimeout = 10 * time.Second
	// Ceiling for the background AI call
	coachingProcessTimeout = 45 * time.Second
)

// RedisQueue is the subset of Redis operations the service uses for the
// async reply pattern and session caching.
type RedisQueue interface {
	RPush(ctx context.Context, key string, value interface{}) error
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error
	BLPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error)
	HSet(ctx context.Context, key string, values ...interface{}) error
}

// CoachingProvider generates personalized pronunciation coaching from a
// scored attempt.
type CoachingProvider interface {
	CoachingTips(ctx context.Context, targetText, transcript string, overallScore int, pronunciationErrors []scorer.PronunciationError) (string, error)
}

// CoachingReply is the payload stored in Redis and returned to the client.
type CoachingReply struct {
	AttemptID   string    `json:"attempt_id"`
	Tips        string    `json:"tips"`
	GeneratedAt time.Time `json:"generated_at"`
}

// processCoaching is the background goroutine spawned after an attempt is
// recorded. It asks the AI provider for coaching tips and pushes the reply
// to Redis, where GetCoaching picks it up via BLPOP.
func (s *VoiceService) processCoaching(attemptID uuid.UUID, targetText, transcript string, overallScore int, pronunciationErrors []scorer.PronunciationError) {
	ctx, cancel := context.WithTimeout(context.Background(), coachingProcessTimeout)
	defer cancel()

	redisKey := coachingReplyKeyPrefix + attemptID.String()

	tips, err := s.coach.CoachingTips(ctx, targetText, transcript, overallScore, pronunciationErrors)
	if err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", attemptID.String()).
			Msg("Coaching generation failed")
		tips = "Keep practicing! Listen to the reference audio and try to match its rhythm."
	}

	reply := CoachingReply{
		AttemptID:   attemptID.String(),
		Tips:        tips,
		GeneratedAt: time.Now(),
	}

	if err := s.redis.RPush(ctx, redisKey, reply); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", attemptID.String()).
			Msg("Failed to push coaching reply to Redis")
		return
	}
	if err := s.redis.SetExpiry(ctx, redisKey, coachingReplyTTL); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", attemptID.String()).
			Msg("Failed to set coaching reply expiry")
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Msg("Coaching reply pushed to Redis")
}

// GetCoaching waits for the coaching reply of an attempt using BLPOP.
// Returns ErrTimeout if the reply is not ready within the wait window.
func (s *VoiceService) GetCoaching(ctx context.Context, attemptID uuid.UUID) (*CoachingReply, error) {
	if s.redis == nil {
		return nil, errors.New(errors.ErrAIService, "coaching is not configured")
	}

	redisKey := coachingReplyKeyPrefix + attemptID.String()

	data, err := s.redis.BLPop(ctx, coachingWaitTimeout, redisKey)
	if err != nil {
		if err == redis.Nil {
			return nil, errors.New(errors.ErrTimeout, "coaching reply not ready, please try again")
		}
		return nil, errors.InternalWrap("failed to get coaching reply", err)
	}

	var reply CoachingReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, errors.InternalWrap("failed to parse coaching reply", err)
	}

	return &reply, nil
}
