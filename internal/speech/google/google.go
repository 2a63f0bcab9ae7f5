// Package google implements the speech boundary on the Google Cloud
// Speech-to-Text and Text-to-Speech REST APIs using API key auth.
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lughati/voice_service/internal/errors"
)

const (
	speechHost = "speech.googleapis.com"
	ttsHost    = "texttospeech.googleapis.com"

	defaultTimeout = 30 * time.Second
)

// Client talks to the Google Cloud Speech REST APIs.
type Client struct {
	apiKey string
	client *http.Client
}

// New creates a speech client. A zero timeout falls back to 30 seconds.
func New(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe sends the audio to the speech:recognize endpoint and returns the
// top alternative of the first result. No result means the clip contained no
// recognizable speech; that is reported as an empty transcript, not an error.
func (c *Client) Transcribe(ctx context.Context, audio []byte, languageCode string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New(errors.ErrTranscription, "Google Speech API key not configured")
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	payload := recognizeRequest{
		Config: recognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: 16000,
			LanguageCode:    languageCode,
		},
		Audio: recognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}

	var result recognizeResponse
	if err := c.post(ctx, speechHost, "/v1/speech:recognize", payload, &result); err != nil {
		return "", errors.TranscriptionUnavailable(err)
	}

	if len(result.Results) == 0 || len(result.Results[0].Alternatives) == 0 {
		return "", nil
	}
	return result.Results[0].Alternatives[0].Transcript, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize renders the text as MP3 via the text:synthesize endpoint.
func (c *Client) Synthesize(ctx context.Context, text, languageCode, voice string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, errors.New(errors.ErrAIService, "Google TTS API key not configured")
	}
	if text == "" {
		return nil, errors.Validation("text is required")
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	var payload synthesizeRequest
	payload.Input.Text = text
	payload.Voice.LanguageCode = languageCode
	payload.Voice.Name = voice
	payload.AudioConfig.AudioEncoding = "MP3"

	var result synthesizeResponse
	if err := c.post(ctx, ttsHost, "/v1/text:synthesize", payload, &result); err != nil {
		return nil, fmt.Errorf("text-to-speech request failed: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio content: %w", err)
	}
	return audio, nil
}

func (c *Client) post(ctx context.Context, host, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	u := url.URL{
		Scheme: "https",
		Host:   host,
		Path:   path,
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("google speech api error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
