package transcoder_test

import (
	"testing"

	apperrors "github.com/lughati/voice_service/internal/errors"
	"github.com/lughati/voice_service/internal/transcoder"
)

func TestQualityFromFeatures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		features      transcoder.Features
		wantScore     int
		wantHigh      bool
		wantRecsCount int
	}{
		{
			name: "studio quality stereo",
			features: transcoder.Features{
				SampleRate: 44100,
				Channels:   2,
				Bitrate:    192000,
			},
			wantScore:     100,
			wantHigh:      true,
			wantRecsCount: 0,
		},
		{
			name: "phone recording",
			features: transcoder.Features{
				SampleRate: 8000,
				Channels:   1,
				Bitrate:    32000,
			},
			wantScore:     25,
			wantHigh:      false,
			wantRecsCount: 4,
		},
		{
			name: "typical voice memo",
			features: transcoder.Features{
				SampleRate: 44100,
				Channels:   1,
				Bitrate:    128000,
			},
			wantScore:     85,
			wantHigh:      true,
			wantRecsCount: 1,
		},
		{
			name: "mid sample rate stereo",
			features: transcoder.Features{
				SampleRate: 22050,
				Channels:   2,
				Bitrate:    160000,
			},
			wantScore:     80,
			wantHigh:      true,
			wantRecsCount: 0,
		},
		{
			name: "surround channels penalized",
			features: transcoder.Features{
				SampleRate: 48000,
				Channels:   6,
				Bitrate:    256000,
			},
			wantScore:     90,
			wantHigh:      true,
			wantRecsCount: 0,
		},
		{
			name: "low bitrate only",
			features: transcoder.Features{
				SampleRate: 48000,
				Channels:   2,
				Bitrate:    96000,
			},
			wantScore:     80,
			wantHigh:      true,
			wantRecsCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := transcoder.QualityFromFeatures(tt.features)
			if got.QualityScore != tt.wantScore {
				t.Errorf("QualityScore = %d, want %d", got.QualityScore, tt.wantScore)
			}
			if got.IsHighQuality != tt.wantHigh {
				t.Errorf("IsHighQuality = %v, want %v", got.IsHighQuality, tt.wantHigh)
			}
			if len(got.Recommendations) != tt.wantRecsCount {
				t.Errorf("len(Recommendations) = %d, want %d: %v",
					len(got.Recommendations), tt.wantRecsCount, got.Recommendations)
			}
			if got.SampleRate != tt.features.SampleRate || got.Channels != tt.features.Channels || got.Bitrate != tt.features.Bitrate {
				t.Errorf("quality did not echo source features: %+v", got)
			}
		})
	}
}

func TestQualityScoreNeverNegative(t *testing.T) {
	t.Parallel()

	got := transcoder.QualityFromFeatures(transcoder.Features{
		SampleRate: 4000,
		Channels:   8,
		Bitrate:    16000,
	})
	if got.QualityScore != 20 {
		t.Errorf("QualityScore = %d, want 20", got.QualityScore)
	}
	if got.IsHighQuality {
		t.Error("heavily penalized clip must not be high quality")
	}
}

func TestTranscodeRejectsEmptyAudio(t *testing.T) {
	t.Parallel()

	tr := newTestTranscoder(t, "/nonexistent/ffmpeg")
	if _, err := tr.Transcode(t.Context(), nil, transcoder.DefaultSpeechOptions()); !apperrors.HasCode(err, "VALIDATION_ERROR") {
		t.Errorf("Transcode(empty) error = %v, want VALIDATION_ERROR", err)
	}
	if _, err := tr.ExtractFeatures(t.Context(), nil); !apperrors.HasCode(err, "VALIDATION_ERROR") {
		t.Errorf("ExtractFeatures(empty) error = %v, want VALIDATION_ERROR", err)
	}
	if _, err := tr.RenderWaveform(t.Context(), nil, 0, 0); !apperrors.HasCode(err, "VALIDATION_ERROR") {
		t.Errorf("RenderWaveform(empty) error = %v, want VALIDATION_ERROR", err)
	}
}
