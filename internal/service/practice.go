package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/lughati/voice_service/internal/errors"
)

const practiceSessionKeyPrefix = "practice:session:"

const (
	practiceSessionSize = 10
	practiceSessionTTL  = coachingReplyTTL * 15 // 30 minutes
)

// difficultyLevels maps a difficulty label to the CEFR levels it draws from.
var difficultyLevels = map[string][]string{
	"easy":   {"A1", "A2"},
	"medium": {"B1", "B2"},
	"hard":   {"C1", "C2"},
}

var practiceInstructions = map[string]string{
	"easy":   "Practice these simple sentences. Focus on clear pronunciation and correct stress.",
	"medium": "Practice these sentences with natural rhythm. Pay attention to linking sounds.",
	"hard":   "Practice these challenging sentences. Focus on difficult sounds and intonation.",
}

// PracticeSentence is one sentence of a practice session.
type PracticeSentence struct {
	ID                uuid.UUID `json:"id"`
	Text              string    `json:"text"`
	ArabicTranslation string    `json:"arabicTranslation"`
	AudioURL          string    `json:"audioUrl,omitempty"`
}

// PracticeSession is a generated set of sentences to practice.
type PracticeSession struct {
	SessionID    string             `json:"sessionId"`
	Sentences    []PracticeSentence `json:"sentences"`
	Instructions string             `json:"instructions"`
}

// GeneratePracticeSession selects least-used sentences for the difficulty
// and hands them out with practice instructions. Selection bumps each
// sentence's usage counter so the pool keeps rotating.
func (s *VoiceService) GeneratePracticeSession(ctx context.Context, userID uuid.UUID, difficulty string) (*PracticeSession, error) {
	if difficulty == "" {
		difficulty = "medium"
	}

	levels, ok := difficultyLevels[difficulty]
	if !ok {
		levels = difficultyLevels["easy"]
	}

	sentences, err := s.sentences.ListByCEFRLevels(ctx, levels, practiceSessionSize)
	if err != nil {
		return nil, errors.InternalWrap("failed to select practice sentences", err)
	}

	ids := make([]uuid.UUID, 0, len(sentences))
	items := make([]PracticeSentence, 0, len(sentences))
	for _, sentence := range sentences {
		ids = append(ids, sentence.ID)

		audioURL := sentence.AudioURLUS
		if audioURL == "" {
			audioURL = sentence.AudioURLUK
		}
		items = append(items, PracticeSentence{
			ID:                sentence.ID,
			Text:              sentence.EnglishText,
			ArabicTranslation: sentence.ArabicTranslation,
			AudioURL:          audioURL,
		})
	}

	if err := s.sentences.IncrementUsage(ctx, ids); err != nil {
		s.log.Error().Err(err).Msg("Failed to increment sentence usage")
	}

	instructions, ok := practiceInstructions[difficulty]
	if !ok {
		instructions = practiceInstructions["medium"]
	}

	session := &PracticeSession{
		SessionID:    generateSessionID(),
		Sentences:    items,
		Instructions: instructions,
	}
	s.cacheSession(ctx, session, userID, difficulty)

	return session, nil
}

// cacheSession records session metadata in Redis so other services can
// attribute subsequent attempts to it. Best-effort.
func (s *VoiceService) cacheSession(ctx context.Context, session *PracticeSession, userID uuid.UUID, difficulty string) {
	if s.redis == nil {
		return
	}

	key := practiceSessionKeyPrefix + session.SessionID
	err := s.redis.HSet(ctx, key,
		"user_id", userID.String(),
		"difficulty", difficulty,
		"sentence_count", len(session.Sentences),
	)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", session.SessionID).Msg("Failed to cache practice session")
		return
	}
	if err := s.redis.SetExpiry(ctx, key, practiceSessionTTL); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.SessionID).Msg("Failed to set session expiry")
	}
}
