// Package transcoder normalizes uploaded audio into formats the speech
// pipeline can consume by shelling out to ffmpeg/ffprobe.
//
// Every operation follows the same scoped-resource pattern: write the input
// buffer to a temp file, invoke the codec tool with the request context,
// read the output file, and remove both files on every exit path. A leaked
// temp file is a defect, so cleanup is registered before the codec runs.
package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lughati/voice_service/internal/errors"
)

// Options configures a Transcoder.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
}

// Transcoder runs ffmpeg/ffprobe operations against in-memory audio buffers.
// Safe for concurrent use: all state is per-call.
type Transcoder struct {
	ffmpeg  string
	ffprobe string
	tempDir string
	log     zerolog.Logger
}

// New creates a Transcoder and ensures the temp working directory exists.
func New(opts Options, log zerolog.Logger) (*Transcoder, error) {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", opts.TempDir, err)
	}
	return &Transcoder{
		ffmpeg:  opts.FFmpegPath,
		ffprobe: opts.FFprobePath,
		tempDir: opts.TempDir,
		log:     log,
	}, nil
}

// TranscodeOptions selects the output encoding for Transcode.
type TranscodeOptions struct {
	Format     string // container/format, e.g. "wav", "mp3"
	SampleRate int    // output sample rate in Hz
	Channels   int    // output channel count
	Bitrate    string // e.g. "128k"; empty keeps the encoder default
}

// DefaultSpeechOptions is the canonical format for the recognition pipeline:
// 16kHz mono PCM wav.
func DefaultSpeechOptions() TranscodeOptions {
	return TranscodeOptions{Format: "wav", SampleRate: 16000, Channels: 1}
}

// Transcode converts an audio buffer into the requested format.
func (t *Transcoder) Transcode(ctx context.Context, audio []byte, opts TranscodeOptions) ([]byte, error) {
	if len(audio) == 0 {
		return nil, errors.Validation("audio payload is empty")
	}
	if opts.Format == "" {
		opts.Format = "wav"
	}

	inPath := tempPath(t.tempDir, "input", "raw")
	outPath := tempPath(t.tempDir, "output", opts.Format)
	defer cleanupFiles(t.log, inPath, outPath)

	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return nil, errors.AudioProcessing("transcode", err)
	}

	args := []string{"-y", "-i", inPath}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}
	if opts.Bitrate != "" {
		args = append(args, "-b:a", opts.Bitrate)
	}
	args = append(args, "-f", opts.Format, outPath)

	if err := t.runFFmpeg(ctx, "transcode", args); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, errors.AudioProcessing("transcode", err)
	}
	return out, nil
}

// ExtractFeatures probes an audio buffer for its technical parameters.
func (t *Transcoder) ExtractFeatures(ctx context.Context, audio []byte) (*Features, error) {
	if len(audio) == 0 {
		return nil, errors.Validation("audio payload is empty")
	}

	inPath := tempPath(t.tempDir, "features", "audio")
	defer cleanupFiles(t.log, inPath)

	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return nil, errors.AudioProcessing("extract_features", err)
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		inPath,
	)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, errors.AudioProcessing("extract_features", t.execError(ctx, err))
	}

	return parseProbeOutput(stdout.Bytes())
}

// AssessQuality probes the buffer and rates its recognition fitness.
func (t *Transcoder) AssessQuality(ctx context.Context, audio []byte) (*Quality, error) {
	features, err := t.ExtractFeatures(ctx, audio)
	if err != nil {
		return nil, err
	}
	q := QualityFromFeatures(*features)
	return &q, nil
}

// RenderWaveform renders a PNG waveform image of the audio buffer.
func (t *Transcoder) RenderWaveform(ctx context.Context, audio []byte, width, height int) ([]byte, error) {
	if len(audio) == 0 {
		return nil, errors.Validation("audio payload is empty")
	}
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 200
	}

	inPath := tempPath(t.tempDir, "waveform-input", "audio")
	outPath := tempPath(t.tempDir, "waveform-output", "png")
	defer cleanupFiles(t.log, inPath, outPath)

	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return nil, errors.AudioProcessing("render_waveform", err)
	}

	filter := fmt.Sprintf("aformat=channel_layouts=mono,showwavespic=s=%dx%d", width, height)
	args := []string{"-y", "-i", inPath, "-filter_complex", filter, "-frames:v", "1", outPath}
	if err := t.runFFmpeg(ctx, "render_waveform", args); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, errors.AudioProcessing("render_waveform", err)
	}
	return out, nil
}

// NormalizeLoudness applies EBU R128 loudness normalization towards targetDb.
func (t *Transcoder) NormalizeLoudness(ctx context.Context, audio []byte, targetDb float64) ([]byte, error) {
	if len(audio) == 0 {
		return nil, errors.Validation("audio payload is empty")
	}

	inPath := tempPath(t.tempDir, "normalize-input", "audio")
	outPath := tempPath(t.tempDir, "normalize-output", "wav")
	defer cleanupFiles(t.log, inPath, outPath)

	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return nil, errors.AudioProcessing("normalize_loudness", err)
	}

	filter := fmt.Sprintf("loudnorm=I=%g:TP=-1.5:LRA=11", targetDb)
	args := []string{"-y", "-i", inPath, "-af", filter, "-f", "wav", outPath}
	if err := t.runFFmpeg(ctx, "normalize_loudness", args); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, errors.AudioProcessing("normalize_loudness", err)
	}
	return out, nil
}

func (t *Transcoder) runFFmpeg(ctx context.Context, operation string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffmpeg, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.log.Debug().
			Str("operation", operation).
			Str("stderr", stderr.String()).
			Err(err).
			Msg("ffmpeg invocation failed")
		return errors.AudioProcessing(operation, t.execError(ctx, err))
	}
	return nil
}

// execError prefers the context error so a cancelled request is reported as
// cancellation rather than a codec crash.
func (t *Transcoder) execError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// probeOutput mirrors the subset of ffprobe -show_streams JSON we consume.
type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitRate    string `json:"bit_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

func parseProbeOutput(data []byte) (*Features, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.AudioProcessing("extract_features", err)
	}

	for _, s := range probe.Streams {
		if s.CodecType != "audio" {
			continue
		}
		duration, _ := strconv.ParseFloat(s.Duration, 64)
		sampleRate, _ := strconv.Atoi(s.SampleRate)
		bitrate, _ := strconv.Atoi(s.BitRate)

		f := &Features{
			Duration:   duration,
			SampleRate: sampleRate,
			Channels:   s.Channels,
			Codec:      s.CodecName,
			Bitrate:    bitrate,
		}
		if bitrate > 0 && duration > 0 {
			f.SizeBytes = int(float64(bitrate) * duration / 8)
		}
		return f, nil
	}

	return nil, errors.AudioProcessing("extract_features", fmt.Errorf("no audio stream found"))
}
