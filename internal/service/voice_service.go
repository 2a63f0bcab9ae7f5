package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lughati/voice_service/internal/errors"
	"github.com/lughati/voice_service/internal/repository"
	"github.com/lughati/voice_service/internal/scorer"
	"github.com/lughati/voice_service/internal/speech"
	"github.com/lughati/voice_service/internal/transcoder"
)

// AudioProcessor is the transcoding boundary of the pipeline, satisfied by
// *transcoder.Transcoder.
type AudioProcessor interface {
	Transcode(ctx context.Context, audio []byte, opts transcoder.TranscodeOptions) ([]byte, error)
	ExtractFeatures(ctx context.Context, audio []byte) (*transcoder.Features, error)
}

// AudioStore persists audio blobs and returns a public URL.
type AudioStore interface {
	UploadAudio(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// EventPublisher publishes domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, data interface{}) error
}

// VoiceService orchestrates the pronunciation pipeline: transcode, assess
// quality, transcribe, score, persist, and fan out to storage, events and
// the coaching queue.
type VoiceService struct {
	transcoder AudioProcessor
	speech     speech.Provider
	attempts   repository.AttemptRepository
	samples    repository.SampleRepository
	sentences  repository.SentenceRepository
	log        zerolog.Logger

	store  AudioStore
	events EventPublisher
	redis  RedisQueue
	coach  CoachingProvider

	sttLanguage  string
	feedbackLang string
}

// NewVoiceService creates a new VoiceService. Storage, events, Redis and
// coaching are optional collaborators attached via the With* methods; the
// pipeline degrades gracefully when they are absent.
func NewVoiceService(
	tc AudioProcessor,
	sp speech.Provider,
	attempts repository.AttemptRepository,
	samples repository.SampleRepository,
	sentences repository.SentenceRepository,
	log zerolog.Logger,
) *VoiceService {
	return &VoiceService{
		transcoder:   tc,
		speech:       sp,
		attempts:     attempts,
		samples:      samples,
		sentences:    sentences,
		log:          log,
		sttLanguage:  "en-US",
		feedbackLang: "ar",
	}
}

// WithStorage attaches an audio store for uploaded recordings.
func (s *VoiceService) WithStorage(store AudioStore) *VoiceService {
	s.store = store
	return s
}

// WithEvents attaches a publisher for attempt-recorded events.
func (s *VoiceService) WithEvents(events EventPublisher) *VoiceService {
	s.events = events
	return s
}

// WithCoaching attaches the async coaching pipeline (Redis reply queue plus
// an AI provider).
func (s *VoiceService) WithCoaching(redis RedisQueue, coach CoachingProvider) *VoiceService {
	s.redis = redis
	s.coach = coach
	return s
}

// WithLanguages overrides the recognition language and feedback language.
func (s *VoiceService) WithLanguages(sttLanguage, feedbackLang string) *VoiceService {
	if sttLanguage != "" {
		s.sttLanguage = sttLanguage
	}
	if feedbackLang != "" {
		s.feedbackLang = feedbackLang
	}
	return s
}

// AttemptResult is returned from AnalyzePronunciation.
type AttemptResult struct {
	AttemptID     uuid.UUID             `json:"attemptId"`
	AttemptNumber int                   `json:"attemptNumber"`
	OverallScore  int                   `json:"overallScore"`
	Feedback      string                `json:"feedback"`
	Analysis      *scorer.Analysis      `json:"analysis"`
	ErrorAnalysis scorer.ErrorAnalysis  `json:"errorAnalysis"`
	Transcription string                `json:"transcription"`
	AudioQuality  transcoder.Quality    `json:"audioQuality"`
	AudioFileURL  string                `json:"audioFileUrl,omitempty"`
}

// AnalyzePronunciation runs the full scoring pipeline for one submission.
// Steps are strictly sequential; nothing is persisted if any step before
// scoring fails.
func (s *VoiceService) AnalyzePronunciation(ctx context.Context, userID, sentenceID uuid.UUID, audio []byte) (*AttemptResult, error) {
	if len(audio) == 0 {
		return nil, errors.Validation("audio payload is required")
	}

	sentence, err := s.sentences.GetByID(ctx, sentenceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("sentence")
		}
		return nil, errors.InternalWrap("failed to load sentence", err)
	}

	processed, err := s.transcoder.Transcode(ctx, audio, transcoder.DefaultSpeechOptions())
	if err != nil {
		return nil, err
	}

	features, err := s.transcoder.ExtractFeatures(ctx, processed)
	if err != nil {
		return nil, err
	}
	quality := transcoder.QualityFromFeatures(*features)

	transcript, err := s.transcribeWithRetry(ctx, processed)
	if err != nil {
		return nil, err
	}

	analysis, err := scorer.Score(transcript, sentence.EnglishText)
	if err != nil {
		return nil, err
	}
	overall := analysis.OverallScore()
	feedback := analysis.Feedback(s.feedbackLang)
	errorAnalysis := analysis.AnalyzeErrors()

	sessionID := generateSessionID()
	audioURL := s.uploadAudio(ctx, processed, userID, sentenceID.String())

	attempt := &repository.PronunciationAttempt{
		UserID:         userID,
		SentenceID:     sentenceID,
		SessionID:      sessionID,
		TargetText:     sentence.EnglishText,
		UserTranscript: transcript,
		OverallScore:   overall,
		WordScores:     analysis.WordScores,
		TimingAnalysis: analysis.Timing,
		ErrorAnalysis:  errorAnalysis,
		FeedbackText:   feedback,
		AudioQuality:   quality,
		AudioFileURL:   audioURL,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, errors.InternalWrap("failed to save attempt", err)
	}

	sample := &repository.VoiceSample{
		UserID:         userID,
		SentenceID:     &sentence.ID,
		SessionID:      sessionID,
		SampleType:     "pronunciation_attempt",
		AudioFileURL:   audioURL,
		Transcription:  transcript,
		AudioFeatures:  *features,
		QualityMetrics: quality,
	}
	if err := s.samples.Create(ctx, sample); err != nil {
		// The attempt is already durable; a lost sample is logged, not fatal.
		s.log.Error().Err(err).
			Str("attempt_id", attempt.ID.String()).
			Msg("Failed to save voice sample")
	}

	s.publishAttemptRecorded(ctx, attempt)

	if s.redis != nil && s.coach != nil {
		go s.processCoaching(attempt.ID, sentence.EnglishText, transcript, overall, errorAnalysis.Errors)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("sentence_id", sentenceID.String()).
		Int("attempt_number", attempt.AttemptNumber).
		Int("overall_score", overall).
		Msg("Pronunciation attempt recorded")

	return &AttemptResult{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		OverallScore:  overall,
		Feedback:      feedback,
		Analysis:      analysis,
		ErrorAnalysis: errorAnalysis,
		Transcription: transcript,
		AudioQuality:  quality,
		AudioFileURL:  audioURL,
	}, nil
}

// transcribeWithRetry calls the speech provider, retrying once when the
// provider is unavailable. Other failure kinds are not retried.
func (s *VoiceService) transcribeWithRetry(ctx context.Context, audio []byte) (string, error) {
	transcript, err := s.speech.Transcribe(ctx, audio, s.sttLanguage)
	if err != nil && errors.HasCode(err, errors.ErrTranscription) {
		s.log.Warn().Err(err).Msg("Transcription failed, retrying once")
		transcript, err = s.speech.Transcribe(ctx, audio, s.sttLanguage)
	}
	if err != nil {
		return "", err
	}
	return transcript, nil
}

func (s *VoiceService) uploadAudio(ctx context.Context, audio []byte, userID uuid.UUID, identifier string) string {
	if s.store == nil {
		return ""
	}

	key := fmt.Sprintf("audio/pronunciation/%s/%s_%d.wav", userID, identifier, time.Now().UnixMilli())
	url, err := s.store.UploadAudio(ctx, key, audio, "audio/wav")
	if err != nil {
		// Storage failure must not lose the attempt.
		s.log.Error().Err(err).Str("key", key).Msg("Failed to upload audio")
		return ""
	}
	return url
}

// AttemptRecordedEvent is published after each persisted attempt.
type AttemptRecordedEvent struct {
	AttemptID     string    `json:"attempt_id"`
	UserID        string    `json:"user_id"`
	SentenceID    string    `json:"sentence_id"`
	AttemptNumber int       `json:"attempt_number"`
	OverallScore  int       `json:"overall_score"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *VoiceService) publishAttemptRecorded(ctx context.Context, attempt *repository.PronunciationAttempt) {
	if s.events == nil {
		return
	}

	event := AttemptRecordedEvent{
		AttemptID:     attempt.ID.String(),
		UserID:        attempt.UserID.String(),
		SentenceID:    attempt.SentenceID.String(),
		AttemptNumber: attempt.AttemptNumber,
		OverallScore:  attempt.OverallScore,
		CreatedAt:     attempt.CreatedAt,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", event.AttemptID).
			Msg("Failed to publish attempt event")
	}
}

// HistoryItem is one entry of the practice history.
type HistoryItem struct {
	ID                uuid.UUID `json:"id"`
	Sentence          string    `json:"sentence"`
	ArabicTranslation string    `json:"arabicTranslation,omitempty"`
	Score             int       `json:"score"`
	Transcription     string    `json:"transcription"`
	Feedback          string    `json:"feedback"`
	Date              time.Time `json:"date"`
}

// GetPracticeHistory returns the user's attempts, newest first.
func (s *VoiceService) GetPracticeHistory(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = 20
	}

	attempts, err := s.attempts.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, errors.InternalWrap("failed to load history", err)
	}

	// Denormalize the Arabic translation from the sentence catalog; a
	// deleted sentence just loses its translation in the listing.
	translations := make(map[uuid.UUID]string)
	items := make([]HistoryItem, 0, len(attempts))
	for _, a := range attempts {
		translation, ok := translations[a.SentenceID]
		if !ok {
			if sentence, err := s.sentences.GetByID(ctx, a.SentenceID); err == nil {
				translation = sentence.ArabicTranslation
			}
			translations[a.SentenceID] = translation
		}

		items = append(items, HistoryItem{
			ID:                a.ID,
			Sentence:          a.TargetText,
			ArabicTranslation: translation,
			Score:             a.OverallScore,
			Transcription:     a.UserTranscript,
			Feedback:          a.FeedbackText,
			Date:              a.CreatedAt,
		})
	}

	return items, nil
}

// ProgressReport summarizes a user's attempt history.
type ProgressReport struct {
	TotalAttempts   int      `json:"totalAttempts"`
	AverageScore    int      `json:"averageScore"`
	BestScore       int      `json:"bestScore"`
	ProgressTrend   float64  `json:"progressTrend"`
	Recommendations []string `json:"recommendations"`
}

// GetProgressReport computes longitudinal statistics over all of the user's
// attempts. The trend compares the mean of the last ten scores with the mean
// of the ten before them; with fewer than eleven attempts it is zero.
func (s *VoiceService) GetProgressReport(ctx context.Context, userID uuid.UUID) (*ProgressReport, error) {
	attempts, err := s.attempts.ListByUserChronological(ctx, userID)
	if err != nil {
		return nil, errors.InternalWrap("failed to load attempts", err)
	}

	if len(attempts) == 0 {
		return &ProgressReport{Recommendations: []string{}}, nil
	}

	scores := make([]int, len(attempts))
	sum, best := 0, 0
	for i, a := range attempts {
		scores[i] = a.OverallScore
		sum += a.OverallScore
		if a.OverallScore > best {
			best = a.OverallScore
		}
	}
	average := float64(sum) / float64(len(scores))

	recent := lastN(scores, 10)
	older := windowBefore(scores, 10, 10)

	return &ProgressReport{
		TotalAttempts:   len(attempts),
		AverageScore:    int(math.Round(average)),
		BestScore:       best,
		ProgressTrend:   progressTrend(recent, older),
		Recommendations: pronunciationRecommendations(average, scores),
	}, nil
}

func lastN(scores []int, n int) []int {
	if len(scores) <= n {
		return scores
	}
	return scores[len(scores)-n:]
}

// windowBefore returns the window of `size` scores ending `offset` from the
// end, truncated at the start of the slice.
func windowBefore(scores []int, offset, size int) []int {
	end := len(scores) - offset
	if end <= 0 {
		return nil
	}
	start := end - size
	if start < 0 {
		start = 0
	}
	return scores[start:end]
}

func progressTrend(recent, older []int) float64 {
	if len(recent) == 0 || len(older) == 0 {
		return 0
	}
	return mean(recent) - mean(older)
}

func mean(scores []int) float64 {
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

func pronunciationRecommendations(averageScore float64, scores []int) []string {
	var recs []string

	switch {
	case averageScore < 60:
		recs = append(recs, "Focus on basic pronunciation patterns and practice regularly.")
	case averageScore < 80:
		recs = append(recs, "Work on specific sounds that are challenging for Arabic speakers.")
	default:
		recs = append(recs, "Practice advanced pronunciation techniques and intonation.")
	}

	low := 0
	for _, s := range scores {
		if s < 70 {
			low++
		}
	}
	if float64(low) > float64(len(scores))*0.3 {
		recs = append(recs, "Consider working with a pronunciation coach for personalized feedback.")
	}

	return recs
}

// SaveVoiceSample processes and stores a standalone recording outside the
// scoring flow (for example onboarding voice profiles).
func (s *VoiceService) SaveVoiceSample(ctx context.Context, userID uuid.UUID, sampleType string, audio []byte, transcription string) (*repository.VoiceSample, error) {
	if len(audio) == 0 {
		return nil, errors.Validation("audio payload is required")
	}
	if sampleType == "" {
		return nil, errors.Validation("sample type is required")
	}

	processed, err := s.transcoder.Transcode(ctx, audio, transcoder.DefaultSpeechOptions())
	if err != nil {
		return nil, err
	}
	features, err := s.transcoder.ExtractFeatures(ctx, processed)
	if err != nil {
		return nil, err
	}
	quality := transcoder.QualityFromFeatures(*features)

	sample := &repository.VoiceSample{
		UserID:         userID,
		SessionID:      generateSessionID(),
		SampleType:     sampleType,
		AudioFileURL:   s.uploadAudio(ctx, processed, userID, sampleType),
		Transcription:  transcription,
		AudioFeatures:  *features,
		QualityMetrics: quality,
	}
	if err := s.samples.Create(ctx, sample); err != nil {
		return nil, errors.InternalWrap("failed to save voice sample", err)
	}

	return sample, nil
}

// GenerateReferenceAudio returns audio of the sentence spoken by a native
// voice: the pre-recorded clip when the catalog has one for the accent,
// otherwise synthesized on demand.
func (s *VoiceService) GenerateReferenceAudio(ctx context.Context, sentenceID uuid.UUID, accent string) (audioURL string, audio []byte, err error) {
	sentence, err := s.sentences.GetByID(ctx, sentenceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", nil, errors.NotFound("sentence")
		}
		return "", nil, errors.InternalWrap("failed to load sentence", err)
	}

	languageCode := "en-US"
	prerecorded := sentence.AudioURLUS
	if accent == "uk" {
		languageCode = "en-GB"
		prerecorded = sentence.AudioURLUK
	}
	if prerecorded != "" {
		return prerecorded, nil, nil
	}

	synthesized, err := s.speech.Synthesize(ctx, sentence.EnglishText, languageCode, "")
	if err != nil {
		return "", nil, err
	}

	if s.store != nil {
		key := fmt.Sprintf("audio/reference/%s_%s.mp3", sentence.ID, accent)
		if url, err := s.store.UploadAudio(ctx, key, synthesized, "audio/mpeg"); err == nil {
			return url, synthesized, nil
		}
	}
	return "", synthesized, nil
}

func generateSessionID() string {
	return fmt.Sprintf("voice_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
