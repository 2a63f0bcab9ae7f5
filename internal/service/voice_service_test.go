package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	apperrors "github.com/lughati/voice_service/internal/errors"
	"github.com/lughati/voice_service/internal/repository"
	"github.com/lughati/voice_service/internal/scorer"
	speechmock "github.com/lughati/voice_service/internal/speech/mock"
	"github.com/lughati/voice_service/internal/service"
	"github.com/lughati/voice_service/internal/transcoder"
)

// stubAudio satisfies service.AudioProcessor without invoking a codec.
type stubAudio struct {
	features     transcoder.Features
	transcodeErr error
}

func (s *stubAudio) Transcode(_ context.Context, audio []byte, _ transcoder.TranscodeOptions) ([]byte, error) {
	if s.transcodeErr != nil {
		return nil, s.transcodeErr
	}
	return audio, nil
}

func (s *stubAudio) ExtractFeatures(_ context.Context, _ []byte) (*transcoder.Features, error) {
	f := s.features
	return &f, nil
}

type uploadedObject struct {
	Key         string
	ContentType string
}

type stubStore struct {
	mu      sync.Mutex
	uploads []uploadedObject
}

func (s *stubStore) UploadAudio(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, uploadedObject{Key: key, ContentType: contentType})
	return "https://cdn.example.com/" + key, nil
}

type stubEvents struct {
	mu        sync.Mutex
	published []interface{}
}

func (s *stubEvents) Publish(_ context.Context, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, data)
	return nil
}

// stubRedis implements service.RedisQueue on in-process maps.
type stubRedis struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	hashes map[string][]interface{}
}

func newStubRedis() *stubRedis {
	return &stubRedis{
		lists:  make(map[string][][]byte),
		hashes: make(map[string][]interface{}),
	}
}

func (s *stubRedis) RPush(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], data)
	return nil
}

func (s *stubRedis) SetExpiry(_ context.Context, _ string, _ time.Duration) error { return nil }

func (s *stubRedis) BLPop(_ context.Context, _ time.Duration, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.lists[key]
	if len(items) == 0 {
		return nil, redis.Nil
	}
	s.lists[key] = items[1:]
	return items[0], nil
}

func (s *stubRedis) HSet(_ context.Context, key string, values ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[key] = values
	return nil
}

type fixture struct {
	svc       *service.VoiceService
	speech    *speechmock.Provider
	attempts  *repository.InMemoryAttemptRepository
	samples   *repository.InMemorySampleRepository
	sentences *repository.InMemorySentenceRepository
	store     *stubStore
	events    *stubEvents
	userID    uuid.UUID
	sentence  *repository.Sentence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sentence := &repository.Sentence{
		ID:                uuid.New(),
		EnglishText:       "I am happy today",
		ArabicTranslation: "أنا سعيد اليوم",
		CEFRLevel:         "A1",
		IsActive:          true,
	}

	f := &fixture{
		speech:    &speechmock.Provider{Transcript: "i am happy today"},
		attempts:  repository.NewInMemoryAttemptRepository(),
		samples:   repository.NewInMemorySampleRepository(),
		sentences: repository.NewInMemorySentenceRepository(sentence),
		store:     &stubStore{},
		events:    &stubEvents{},
		userID:    uuid.New(),
	}
	// The seeding copy assigns IDs; read the stored sentence back.
	listed, err := f.sentences.ListByCEFRLevels(context.Background(), []string{"A1"}, 1)
	if err != nil || len(listed) != 1 {
		t.Fatalf("seed sentence: %v", err)
	}
	f.sentence = listed[0]

	audio := &stubAudio{features: transcoder.Features{
		Duration:   2.5,
		SampleRate: 16000,
		Channels:   1,
		Codec:      "pcm_s16le",
		Bitrate:    256000,
	}}

	f.svc = service.NewVoiceService(audio, f.speech, f.attempts, f.samples, f.sentences, zerolog.Nop()).
		WithStorage(f.store).
		WithEvents(f.events)
	return f
}

func TestAnalyzePronunciationPerfectMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	result, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, f.sentence.ID, []byte("audio"))
	if err != nil {
		t.Fatalf("AnalyzePronunciation: %v", err)
	}

	if result.OverallScore != 100 {
		t.Errorf("OverallScore = %d, want 100", result.OverallScore)
	}
	if result.AttemptNumber != 1 {
		t.Errorf("AttemptNumber = %d, want 1", result.AttemptNumber)
	}
	if result.Transcription != "i am happy today" {
		t.Errorf("Transcription = %q", result.Transcription)
	}
	if result.ErrorAnalysis.TotalErrors != 0 {
		t.Errorf("TotalErrors = %d, want 0", result.ErrorAnalysis.TotalErrors)
	}
	if result.AudioFileURL == "" {
		t.Error("expected an uploaded audio URL")
	}

	attempts, _ := f.attempts.ListByUser(t.Context(), f.userID, 10)
	if len(attempts) != 1 {
		t.Fatalf("persisted attempts = %d, want 1", len(attempts))
	}
	if attempts[0].TargetText != "I am happy today" {
		t.Errorf("TargetText = %q", attempts[0].TargetText)
	}

	samples, _ := f.samples.ListByUser(t.Context(), f.userID, 10)
	if len(samples) != 1 {
		t.Fatalf("persisted samples = %d, want 1", len(samples))
	}
	if samples[0].SampleType != "pronunciation_attempt" {
		t.Errorf("SampleType = %q", samples[0].SampleType)
	}
	if samples[0].SessionID != attempts[0].SessionID {
		t.Error("sample and attempt must share a session id")
	}

	if len(f.events.published) != 1 {
		t.Errorf("published events = %d, want 1", len(f.events.published))
	}
	if len(f.store.uploads) != 1 || f.store.uploads[0].ContentType != "audio/wav" {
		t.Errorf("unexpected uploads: %+v", f.store.uploads)
	}
}

func TestAnalyzePronunciationAttemptNumbering(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for want := 1; want <= 3; want++ {
		result, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, f.sentence.ID, []byte("audio"))
		if err != nil {
			t.Fatalf("attempt %d: %v", want, err)
		}
		if result.AttemptNumber != want {
			t.Errorf("AttemptNumber = %d, want %d", result.AttemptNumber, want)
		}
	}
}

func TestAnalyzePronunciationShortTranscript(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.speech.Transcript = "i happy"

	result, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, f.sentence.ID, []byte("audio"))
	if err != nil {
		t.Fatalf("AnalyzePronunciation: %v", err)
	}

	if result.OverallScore != 36 {
		t.Errorf("OverallScore = %d, want 36", result.OverallScore)
	}
	if result.ErrorAnalysis.Severity != "medium" {
		t.Errorf("Severity = %q, want medium", result.ErrorAnalysis.Severity)
	}
}

func TestAnalyzePronunciationSentenceNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, uuid.New(), []byte("audio"))
	if !apperrors.HasCode(err, apperrors.ErrNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}

	attempts, _ := f.attempts.ListByUser(t.Context(), f.userID, 10)
	if len(attempts) != 0 {
		t.Errorf("nothing should be persisted, got %d attempts", len(attempts))
	}
}

func TestAnalyzePronunciationEmptyAudio(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, f.sentence.ID, nil); !apperrors.HasCode(err, apperrors.ErrValidation) {
		t.Fatalf("error = %v, want VALIDATION_ERROR", err)
	}
}

func TestTranscriptionRetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.speech.TranscribeErrs = []error{apperrors.TranscriptionUnavailable(nil)}

	result, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, f.sentence.ID, []byte("audio"))
	if err != nil {
		t.Fatalf("AnalyzePronunciation: %v", err)
	}
	if result.OverallScore != 100 {
		t.Errorf("OverallScore = %d, want 100", result.OverallScore)
	}
	if got := f.speech.TranscribeCallCount(); got != 2 {
		t.Errorf("Transcribe calls = %d, want 2", got)
	}
}

func TestTranscriptionFailsAfterRetry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.speech.TranscribeErrs = []error{
		apperrors.TranscriptionUnavailable(nil),
		apperrors.TranscriptionUnavailable(nil),
	}

	_, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, f.sentence.ID, []byte("audio"))
	if !apperrors.HasCode(err, apperrors.ErrTranscription) {
		t.Fatalf("error = %v, want TRANSCRIPTION_UNAVAILABLE", err)
	}
	if got := f.speech.TranscribeCallCount(); got != 2 {
		t.Errorf("Transcribe calls = %d, want 2", got)
	}

	attempts, _ := f.attempts.ListByUser(t.Context(), f.userID, 10)
	samples, _ := f.samples.ListByUser(t.Context(), f.userID, 10)
	if len(attempts) != 0 || len(samples) != 0 {
		t.Error("nothing should be persisted when transcription fails")
	}
}

func TestGetPracticeHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	transcripts := []string{"i am happy today", "i happy", "i am happy today"}
	for _, tr := range transcripts {
		f.speech.Transcript = tr
		if _, err := f.svc.AnalyzePronunciation(t.Context(), f.userID, f.sentence.ID, []byte("audio")); err != nil {
			t.Fatalf("AnalyzePronunciation: %v", err)
		}
	}

	items, err := f.svc.GetPracticeHistory(t.Context(), f.userID, 2)
	if err != nil {
		t.Fatalf("GetPracticeHistory: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	// Newest first: the last submission was a perfect match.
	if items[0].Score != 100 {
		t.Errorf("items[0].Score = %d, want 100", items[0].Score)
	}
	if items[1].Score != 36 {
		t.Errorf("items[1].Score = %d, want 36", items[1].Score)
	}
	if items[0].ArabicTranslation != "أنا سعيد اليوم" {
		t.Errorf("ArabicTranslation = %q", items[0].ArabicTranslation)
	}
}

func TestGetProgressReportEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	report, err := f.svc.GetProgressReport(t.Context(), f.userID)
	if err != nil {
		t.Fatalf("GetProgressReport: %v", err)
	}
	if report.TotalAttempts != 0 || report.AverageScore != 0 || report.BestScore != 0 || report.ProgressTrend != 0 {
		t.Errorf("expected zero report, got %+v", report)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("expected no recommendations, got %v", report.Recommendations)
	}
}

func TestGetProgressReportTrendAndRecommendations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	seed := func(score int, n int) {
		for i := 0; i < n; i++ {
			attempt := &repository.PronunciationAttempt{
				UserID:       f.userID,
				SentenceID:   f.sentence.ID,
				SessionID:    "seed",
				TargetText:   f.sentence.EnglishText,
				OverallScore: score,
			}
			if err := f.attempts.Create(t.Context(), attempt); err != nil {
				t.Fatalf("seed attempt: %v", err)
			}
		}
	}
	seed(50, 15)
	seed(80, 10)

	report, err := f.svc.GetProgressReport(t.Context(), f.userID)
	if err != nil {
		t.Fatalf("GetProgressReport: %v", err)
	}

	if report.TotalAttempts != 25 {
		t.Errorf("TotalAttempts = %d, want 25", report.TotalAttempts)
	}
	if report.AverageScore != 62 {
		t.Errorf("AverageScore = %d, want 62", report.AverageScore)
	}
	if report.BestScore != 80 {
		t.Errorf("BestScore = %d, want 80", report.BestScore)
	}
	// Last ten all scored 80; the ten before them all scored 50.
	if report.ProgressTrend != 30 {
		t.Errorf("ProgressTrend = %v, want 30", report.ProgressTrend)
	}
	if len(report.Recommendations) != 2 {
		t.Fatalf("Recommendations = %v, want 2 entries", report.Recommendations)
	}
	if report.Recommendations[0] != "Work on specific sounds that are challenging for Arabic speakers." {
		t.Errorf("Recommendations[0] = %q", report.Recommendations[0])
	}
	if report.Recommendations[1] != "Consider working with a pronunciation coach for personalized feedback." {
		t.Errorf("Recommendations[1] = %q", report.Recommendations[1])
	}
}

func TestSaveVoiceSample(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sample, err := f.svc.SaveVoiceSample(t.Context(), f.userID, "voice_profile", []byte("audio"), "hello there")
	if err != nil {
		t.Fatalf("SaveVoiceSample: %v", err)
	}
	if sample.SampleType != "voice_profile" {
		t.Errorf("SampleType = %q", sample.SampleType)
	}
	if sample.Transcription != "hello there" {
		t.Errorf("Transcription = %q", sample.Transcription)
	}
	if sample.QualityMetrics.QualityScore == 0 {
		t.Error("expected quality metrics to be populated")
	}

	if _, err := f.svc.SaveVoiceSample(t.Context(), f.userID, "", []byte("audio"), ""); !apperrors.HasCode(err, apperrors.ErrValidation) {
		t.Errorf("missing sample type error = %v, want VALIDATION_ERROR", err)
	}
}

func TestGenerateReferenceAudioSynthesizesWhenMissing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.speech.SynthesizedAudio = []byte("mp3-bytes")

	url, audio, err := f.svc.GenerateReferenceAudio(t.Context(), f.sentence.ID, "us")
	if err != nil {
		t.Fatalf("GenerateReferenceAudio: %v", err)
	}
	if len(audio) == 0 {
		t.Error("expected synthesized audio bytes")
	}
	if url == "" {
		t.Error("expected uploaded reference URL")
	}
	if len(f.speech.SynthesizeCalls) != 1 {
		t.Fatalf("Synthesize calls = %d, want 1", len(f.speech.SynthesizeCalls))
	}
	if f.speech.SynthesizeCalls[0].LanguageCode != "en-US" {
		t.Errorf("LanguageCode = %q, want en-US", f.speech.SynthesizeCalls[0].LanguageCode)
	}
}

type stubCoach struct {
	tips string
	err  error
}

func (c *stubCoach) CoachingTips(_ context.Context, _, _ string, _ int, _ []scorer.PronunciationError) (string, error) {
	return c.tips, c.err
}

func TestGetCoachingRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r := newStubRedis()
	f.svc.WithCoaching(r, &stubCoach{tips: "Slow down on the second syllable."})

	attemptID := uuid.New()
	reply := service.CoachingReply{AttemptID: attemptID.String(), Tips: "Slow down on the second syllable.", GeneratedAt: time.Now()}
	if err := r.RPush(t.Context(), "coaching:reply:"+attemptID.String(), reply); err != nil {
		t.Fatalf("RPush: %v", err)
	}

	got, err := f.svc.GetCoaching(t.Context(), attemptID)
	if err != nil {
		t.Fatalf("GetCoaching: %v", err)
	}
	if got.Tips != reply.Tips {
		t.Errorf("Tips = %q, want %q", got.Tips, reply.Tips)
	}
}

func TestGetCoachingTimesOutWhenEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.WithCoaching(newStubRedis(), &stubCoach{})

	if _, err := f.svc.GetCoaching(t.Context(), uuid.New()); !apperrors.HasCode(err, apperrors.ErrTimeout) {
		t.Fatalf("error = %v, want TIMEOUT", err)
	}
}
