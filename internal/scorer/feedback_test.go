package scorer_test

import (
	"strings"
	"testing"

	"github.com/lughati/voice_service/internal/scorer"
)

func TestFeedback_Perfect(t *testing.T) {
	t.Parallel()

	a, err := scorer.Score("good morning", "good morning")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	ar := a.Feedback("ar")
	if !strings.Contains(ar, "ممتاز") {
		t.Errorf("Feedback(\"ar\") = %q, want the Arabic congratulatory message", ar)
	}
	en := a.Feedback("en")
	if !strings.Contains(en, "Excellent") {
		t.Errorf("Feedback(\"en\") = %q, want the English congratulatory message", en)
	}
}

func TestFeedback_ListsLowScoreWords(t *testing.T) {
	t.Parallel()

	a, err := scorer.Score("zzz yyy xxx www", "alpha bravo charlie delta")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	fb := a.Feedback("en")
	// Only the first three problem words are listed.
	for _, want := range []string{"alpha", "bravo", "charlie"} {
		if !strings.Contains(fb, want) {
			t.Errorf("Feedback(\"en\") = %q, missing word %q", fb, want)
		}
	}
	if strings.Contains(fb, "delta") {
		t.Errorf("Feedback(\"en\") = %q, lists more than three words", fb)
	}
}

func TestFeedback_UnknownLanguageFallsBack(t *testing.T) {
	t.Parallel()

	a, err := scorer.Score("hello", "hello")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if got, want := a.Feedback("xx"), a.Feedback("en"); got != want {
		t.Errorf("Feedback(\"xx\") = %q, want English fallback %q", got, want)
	}
}
