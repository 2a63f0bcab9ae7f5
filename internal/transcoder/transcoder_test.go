package transcoder_test

import (
	"os"
	"testing"

	"github.com/rs/zerolog"

	apperrors "github.com/lughati/voice_service/internal/errors"
	"github.com/lughati/voice_service/internal/transcoder"
)

func newTestTranscoder(t *testing.T, ffmpegPath string) *transcoder.Transcoder {
	t.Helper()

	tr, err := transcoder.New(transcoder.Options{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffmpegPath,
		TempDir:     t.TempDir(),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestDefaultSpeechOptions(t *testing.T) {
	t.Parallel()

	opts := transcoder.DefaultSpeechOptions()
	if opts.Format != "wav" || opts.SampleRate != 16000 || opts.Channels != 1 {
		t.Errorf("DefaultSpeechOptions() = %+v, want 16kHz mono wav", opts)
	}
}

func TestTranscodeFailureReportsAudioProcessing(t *testing.T) {
	t.Parallel()

	tr := newTestTranscoder(t, "/nonexistent/ffmpeg")
	_, err := tr.Transcode(t.Context(), []byte("not-audio"), transcoder.DefaultSpeechOptions())
	if !apperrors.HasCode(err, "AUDIO_PROCESSING_ERROR") {
		t.Errorf("Transcode error = %v, want AUDIO_PROCESSING_ERROR", err)
	}
}

// A failed operation must not leave its temp files behind.
func TestTempFilesRemovedAfterFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tr, err := transcoder.New(transcoder.Options{
		FFmpegPath:  "/nonexistent/ffmpeg",
		FFprobePath: "/nonexistent/ffprobe",
		TempDir:     dir,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio := []byte("not-audio")
	if _, err := tr.Transcode(t.Context(), audio, transcoder.DefaultSpeechOptions()); err == nil {
		t.Fatal("expected transcode failure")
	}
	if _, err := tr.ExtractFeatures(t.Context(), audio); err == nil {
		t.Fatal("expected probe failure")
	}
	if _, err := tr.RenderWaveform(t.Context(), audio, 640, 120); err == nil {
		t.Fatal("expected waveform failure")
	}
	if _, err := tr.NormalizeLoudness(t.Context(), audio, -16); err == nil {
		t.Fatal("expected normalize failure")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temp dir not empty after failures: %v", names)
	}
}

func TestNewCreatesTempDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested/work"
	if _, err := transcoder.New(transcoder.Options{TempDir: dir}, zerolog.Nop()); err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", dir)
	}
}
