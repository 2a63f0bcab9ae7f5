package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lughati/voice_service/internal/client"
	"github.com/lughati/voice_service/internal/errors"
	"github.com/lughati/voice_service/internal/scorer"
)

// AIService provides AI-backed coaching on top of the configured chat
// providers.
type AIService struct {
	openaiClient *client.OpenAIClient
	geminiClient *client.GeminiClient
}

// NewAIService creates a new AI service.
func NewAIService(openaiClient *client.OpenAIClient, geminiClient *client.GeminiClient) *AIService {
	return &AIService{
		openaiClient: openaiClient,
		geminiClient: geminiClient,
	}
}

// Chat sends a chat message to the specified AI provider.
func (s *AIService) Chat(ctx context.Context, message, provider string) (string, error) {
	switch provider {
	case "openai":
		if s.openaiClient == nil {
			return "", errors.New(errors.ErrAIService, "OpenAI client not configured")
		}
		return s.openaiClient.Chat(ctx, message)

	case "gemini":
		if s.geminiClient == nil {
			return "", errors.New(errors.ErrAIService, "Gemini client not configured")
		}
		return s.geminiClient.Chat(ctx, message)

	default:
		// Default to OpenAI if available, otherwise Gemini
		if s.openaiClient != nil {
			return s.openaiClient.Chat(ctx, message)
		}
		if s.geminiClient != nil {
			return s.geminiClient.Chat(ctx, message)
		}
		return "", errors.New(errors.ErrAIService, "no AI provider configured")
	}
}

// CoachingTips builds a prompt from the scored attempt and asks the default
// provider for short, targeted advice.
func (s *AIService) CoachingTips(ctx context.Context, targetText, transcript string, overallScore int, pronunciationErrors []scorer.PronunciationError) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a pronunciation coach for Arabic-speaking English learners.\n")
	fmt.Fprintf(&b, "The learner tried to say: %q\n", targetText)
	fmt.Fprintf(&b, "Speech recognition heard: %q\n", transcript)
	fmt.Fprintf(&b, "Their score was %d out of 100.\n", overallScore)

	if len(pronunciationErrors) > 0 {
		b.WriteString("Detected problems:\n")
		for _, e := range pronunciationErrors {
			if e.Word != "" {
				fmt.Fprintf(&b, "- %s: %q (%s)\n", e.Type, e.Word, e.Issue)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", e.Type, e.Issue)
			}
		}
	}
	b.WriteString("Give 2-3 short, encouraging tips. Plain text, no lists of more than 3 items.")

	return s.Chat(ctx, b.String(), "")
}

// Ensure AIService satisfies the coaching boundary at compile time.
var _ CoachingProvider = (*AIService)(nil)
