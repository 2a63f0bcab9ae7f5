package scorer_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/lughati/voice_service/internal/scorer"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestWordSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "cat", "cat", 1.0},
		{"one substitution", "cat", "bat", 1.0 - 1.0/3.0},
		{"fully different", "cat", "dog", 0.0},
		{"empty left", "", "cat", 0.0},
		{"empty right", "cat", "", 0.0},
		{"both empty", "", "", 1.0},
		{"longer pair", "happy", "am", 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scorer.WordSimilarity(tt.a, tt.b)
			if !almostEqual(got, tt.want) {
				t.Errorf("WordSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestWordSimilarity_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"cat", "bat"},
		{"happy", "am"},
		{"pronunciation", "pronounciation"},
		{"a", "abcdef"},
	}
	for _, p := range pairs {
		ab := scorer.WordSimilarity(p[0], p[1])
		ba := scorer.WordSimilarity(p[1], p[0])
		if !almostEqual(ab, ba) {
			t.Errorf("WordSimilarity(%q, %q) = %v but WordSimilarity(%q, %q) = %v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScore_PerfectMatch(t *testing.T) {
	t.Parallel()

	a, err := scorer.Score("I am happy today", "I am happy today")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !almostEqual(a.Accuracy, 1.0) {
		t.Errorf("Accuracy = %v, want 1.0", a.Accuracy)
	}
	if got := a.OverallScore(); got != 100 {
		t.Errorf("OverallScore() = %d, want 100", got)
	}
	for i, ws := range a.WordScores {
		if !ws.IsCorrect {
			t.Errorf("word %d (%q) IsCorrect = false, want true", i, ws.TargetWord)
		}
	}
}

func TestScore_CaseInsensitive(t *testing.T) {
	t.Parallel()

	a, err := scorer.Score("i AM Happy TODAY", "I am happy today")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !almostEqual(a.Accuracy, 1.0) {
		t.Errorf("Accuracy = %v, want 1.0", a.Accuracy)
	}
}

func TestScore_ShortTranscript(t *testing.T) {
	t.Parallel()

	// target "I am happy today" (4 words), transcript "I happy" (2 words).
	// Positional alignment: (i,i)=1.0, (happy,am)=0.2, ("",happy)=0, ("",today)=0.
	a, err := scorer.Score("I happy", "I am happy today")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	if !almostEqual(a.Accuracy, 0.3) {
		t.Errorf("Accuracy = %v, want 0.3", a.Accuracy)
	}
	if !almostEqual(a.Timing.SpeedRatio, 0.5) {
		t.Errorf("SpeedRatio = %v, want 0.5", a.Timing.SpeedRatio)
	}
	if !almostEqual(a.Timing.TimingAccuracy, 0.5) {
		t.Errorf("TimingAccuracy = %v, want 0.5", a.Timing.TimingAccuracy)
	}
	// round((0.3*0.7 + 0.5*0.3) * 100) = round(36.0) = 36
	if got := a.OverallScore(); got != 36 {
		t.Errorf("OverallScore() = %d, want 36", got)
	}
	if got := len(a.WordScores); got != 4 {
		t.Errorf("len(WordScores) = %d, want 4", got)
	}
}

func TestScore_EmptyTarget(t *testing.T) {
	t.Parallel()

	if _, err := scorer.Score("hello", ""); err == nil {
		t.Fatal("Score with empty target: err = nil, want validation error")
	}
	if _, err := scorer.Score("hello", "   "); err == nil {
		t.Fatal("Score with whitespace target: err = nil, want validation error")
	}
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := scorer.Score("the quick brown focks", "the quick brown fox")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	second, err := scorer.Score("the quick brown focks", "the quick brown fox")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Score is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestScore_UnclampedTimingAccuracy(t *testing.T) {
	t.Parallel()

	// Transcript three times the target length: |1 - |6-2|/2| = 1.0 again by
	// the absolute value; |1 - |8-2|/2| = 2.0 exceeds 1 and is preserved.
	a, err := scorer.Score("a b c d e f g h", "x y")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !almostEqual(a.Timing.TimingAccuracy, 2.0) {
		t.Errorf("TimingAccuracy = %v, want 2.0 (unclamped)", a.Timing.TimingAccuracy)
	}
}

func TestAnalyzeErrors_Severity(t *testing.T) {
	t.Parallel()

	mkAnalysis := func(lowWords int, speedRatio float64) *scorer.Analysis {
		a := &scorer.Analysis{
			Timing: scorer.Timing{SpeedRatio: speedRatio, TimingAccuracy: 1.0},
		}
		for i := 0; i < lowWords; i++ {
			a.WordScores = append(a.WordScores, scorer.WordScore{
				UserWord: "x", TargetWord: "y", Score: 0.1,
			})
		}
		a.WordScores = append(a.WordScores, scorer.WordScore{
			UserWord: "same", TargetWord: "same", Score: 1.0, IsCorrect: true,
		})
		return a
	}

	tests := []struct {
		name         string
		lowWords     int
		speedRatio   float64
		wantSeverity string
		wantTotal    int
	}{
		{"no errors", 0, 1.0, "low", 0},
		{"one flagged word", 1, 1.0, "medium", 1},
		{"two flagged words", 2, 1.0, "medium", 2},
		{"three flagged words", 3, 1.0, "medium", 3},
		{"four flagged words", 4, 1.0, "high", 4},
		{"too fast only", 0, 2.0, "medium", 1},
		{"too slow only", 0, 0.25, "medium", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ea := mkAnalysis(tt.lowWords, tt.speedRatio).AnalyzeErrors()
			if ea.Severity != tt.wantSeverity {
				t.Errorf("Severity = %q, want %q", ea.Severity, tt.wantSeverity)
			}
			if ea.TotalErrors != tt.wantTotal {
				t.Errorf("TotalErrors = %d, want %d", ea.TotalErrors, tt.wantTotal)
			}
		})
	}
}

func TestAnalyzeErrors_SpeedErrorShape(t *testing.T) {
	t.Parallel()

	a := &scorer.Analysis{Timing: scorer.Timing{SpeedRatio: 1.6}}
	ea := a.AnalyzeErrors()
	if len(ea.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(ea.Errors))
	}
	if ea.Errors[0].Type != "speed" {
		t.Errorf("error Type = %q, want %q", ea.Errors[0].Type, "speed")
	}
	if ea.Errors[0].Word != "" {
		t.Errorf("speed error carries Word = %q, want empty", ea.Errors[0].Word)
	}
}
