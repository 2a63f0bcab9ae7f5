// Package speech defines the speech-service boundary: transcription of user
// audio and synthesis of reference audio. Implementations live in
// subpackages; callers depend only on these interfaces.
package speech

import "context"

// Transcriber converts spoken audio into text.
type Transcriber interface {
	// Transcribe recognizes speech in the audio buffer. The buffer must be
	// 16kHz mono PCM wav. An empty string with a nil error means the
	// service returned no recognition result for the clip.
	Transcribe(ctx context.Context, audio []byte, languageCode string) (string, error)
}

// Synthesizer converts text into spoken audio.
type Synthesizer interface {
	// Synthesize renders the text as MP3 audio using the given voice. An
	// empty voice name lets the provider pick a default for the language.
	Synthesize(ctx context.Context, text, languageCode, voice string) ([]byte, error)
}

// Provider bundles both directions of the speech boundary.
type Provider interface {
	Transcriber
	Synthesizer
}
