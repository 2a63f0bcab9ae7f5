package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lughati/voice_service/internal/errors"
	"github.com/lughati/voice_service/internal/middleware"
	"github.com/lughati/voice_service/internal/service"
	"github.com/lughati/voice_service/pkg/response"
)

// maxAudioUploadBytes caps multipart audio uploads (10 MB).
const maxAudioUploadBytes = 10 << 20

// VoiceHandler handles the pronunciation pipeline HTTP endpoints.
type VoiceHandler struct {
	log          zerolog.Logger
	voiceService *service.VoiceService
}

// NewVoiceHandler creates a new VoiceHandler.
func NewVoiceHandler(log zerolog.Logger, voiceService *service.VoiceService) *VoiceHandler {
	return &VoiceHandler{
		log:          log,
		voiceService: voiceService,
	}
}

// AnalyzePronunciation handles POST /api/v1/voice/pronunciation/analyze
//
// Request: multipart/form-data with an "audio" file field and a
// "sentence_id" form value.
// Response: the scored attempt with feedback and analysis.
func (h *VoiceHandler) AnalyzePronunciation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.GetUserUUID(ctx)
	if !ok {
		response.Unauthorized(w, "invalid user identity")
		return
	}

	if err := r.ParseMultipartForm(maxAudioUploadBytes); err != nil {
		h.handleError(w, errors.Validation("failed to parse multipart form"))
		return
	}

	sentenceID, err := uuid.Parse(r.FormValue("sentence_id"))
	if err != nil {
		h.handleError(w, errors.Validation("sentence_id must be a valid uuid"))
		return
	}

	audioData, err := readAudioFile(r)
	if err != nil {
		h.handleError(w, err)
		return
	}

	result, err := h.voiceService.AnalyzePronunciation(ctx, userID, sentenceID, audioData)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// GetHistory handles GET /api/v1/voice/history?limit=20
func (h *VoiceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.GetUserUUID(ctx)
	if !ok {
		response.Unauthorized(w, "invalid user identity")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.handleError(w, errors.Validation("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	items, err := h.voiceService.GetPracticeHistory(ctx, userID, limit)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, items)
}

// GetProgress handles GET /api/v1/voice/progress
func (h *VoiceHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.GetUserUUID(ctx)
	if !ok {
		response.Unauthorized(w, "invalid user identity")
		return
	}

	report, err := h.voiceService.GetProgressReport(ctx, userID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, report)
}

// PracticeSessionRequest is the body for GeneratePracticeSession.
type PracticeSessionRequest struct {
	Difficulty string `json:"difficulty"` // "easy", "medium" or "hard"
}

// GeneratePracticeSession handles POST /api/v1/voice/practice/session
func (h *VoiceHandler) GeneratePracticeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.GetUserUUID(ctx)
	if !ok {
		response.Unauthorized(w, "invalid user identity")
		return
	}

	var req PracticeSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.handleError(w, errors.Validation("invalid request body"))
			return
		}
	}

	session, err := h.voiceService.GeneratePracticeSession(ctx, userID, req.Difficulty)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, session)
}

// SaveSample handles POST /api/v1/voice/sample/save
//
// Request: multipart/form-data with "audio", "sample_type" and an optional
// "transcription" value.
func (h *VoiceHandler) SaveSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.GetUserUUID(ctx)
	if !ok {
		response.Unauthorized(w, "invalid user identity")
		return
	}

	if err := r.ParseMultipartForm(maxAudioUploadBytes); err != nil {
		h.handleError(w, errors.Validation("failed to parse multipart form"))
		return
	}

	audioData, err := readAudioFile(r)
	if err != nil {
		h.handleError(w, err)
		return
	}

	sample, err := h.voiceService.SaveVoiceSample(ctx, userID,
		r.FormValue("sample_type"), audioData, r.FormValue("transcription"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Created(w, sample)
}

// GetCoaching handles GET /api/v1/voice/coaching?attempt_id=...
//
// This is the CONSUMER endpoint of the async coaching pattern - it blocks
// on BLPOP until the background goroutine pushes the reply, or times out
// with 504.
func (h *VoiceHandler) GetCoaching(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	attemptID, err := uuid.Parse(r.URL.Query().Get("attempt_id"))
	if err != nil {
		h.handleError(w, errors.Validation("attempt_id must be a valid uuid"))
		return
	}

	reply, err := h.voiceService.GetCoaching(ctx, attemptID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, reply)
}

// GetReferenceAudio handles GET /api/v1/voice/reference-audio?sentence_id=...&accent=us
//
// Responds with {"audioUrl": ...} when a URL is available; streams the
// synthesized MP3 directly when synthesis succeeded but upload was not
// possible.
func (h *VoiceHandler) GetReferenceAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sentenceID, err := uuid.Parse(r.URL.Query().Get("sentence_id"))
	if err != nil {
		h.handleError(w, errors.Validation("sentence_id must be a valid uuid"))
		return
	}

	accent := r.URL.Query().Get("accent")
	if accent == "" {
		accent = "us"
	}
	if accent != "us" && accent != "uk" {
		h.handleError(w, errors.Validation("accent must be \"us\" or \"uk\""))
		return
	}

	audioURL, audio, err := h.voiceService.GenerateReferenceAudio(ctx, sentenceID, accent)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if audioURL != "" {
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"audioUrl": audioURL,
			"accent":   accent,
		})
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// readAudioFile pulls the "audio" file out of a parsed multipart form.
func readAudioFile(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("audio")
	if err != nil {
		return nil, errors.Validation("audio file is required")
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Validation("failed to read audio file")
	}
	return audioData, nil
}

func (h *VoiceHandler) handleError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		if appErr.Code == errors.ErrInternal {
			h.log.Error().Err(err).Msg("Internal server error")
		}
		response.Error(w, appErr.HTTPStatus(), appErr)
		return
	}
	h.log.Error().Err(err).Msg("Internal server error")
	response.Error(w, http.StatusInternalServerError, errors.Internal("internal server error"))
}
