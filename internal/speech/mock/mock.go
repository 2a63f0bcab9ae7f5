// Package mock provides test doubles for the speech package interfaces.
//
// Use Provider to feed controlled transcripts and synthesized audio into the
// pipeline and inspect what the caller sent.
package mock

import (
	"context"
	"sync"

	"github.com/lughati/voice_service/internal/speech"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Audio is a copy of the audio bytes passed to Transcribe.
	Audio []byte
	// LanguageCode is the language passed to Transcribe.
	LanguageCode string
}

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	Text         string
	LanguageCode string
	Voice        string
}

// Provider is a mock implementation of speech.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by every Transcribe call.
	Transcript string

	// TranscribeErrs, if non-empty, are returned by successive Transcribe
	// calls in order; once exhausted, calls return Transcript with a nil
	// error. This models a provider that fails and then recovers.
	TranscribeErrs []error

	// SynthesizedAudio is returned by every Synthesize call.
	SynthesizedAudio []byte

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Transcribe records the call, then pops the next queued error or returns
// Transcript.
func (p *Provider) Transcribe(_ context.Context, audio []byte, languageCode string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(audio))
	copy(cp, audio)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Audio: cp, LanguageCode: languageCode})
	if len(p.TranscribeErrs) > 0 {
		err := p.TranscribeErrs[0]
		p.TranscribeErrs = p.TranscribeErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return p.Transcript, nil
}

// Synthesize records the call and returns SynthesizedAudio, SynthesizeErr.
func (p *Provider) Synthesize(_ context.Context, text, languageCode, voice string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, LanguageCode: languageCode, Voice: voice})
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	return p.SynthesizedAudio, nil
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) TranscribeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.SynthesizeCalls = nil
}

// Ensure Provider implements speech.Provider at compile time.
var _ speech.Provider = (*Provider)(nil)
