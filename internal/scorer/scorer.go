// Package scorer implements pronunciation scoring by aligning a user
// transcript against a target sentence word-by-word.
//
// Scoring is a pure function of its two string inputs: no I/O, no hidden
// state. Word similarity is normalized Levenshtein edit distance, words are
// aligned positionally after whitespace tokenization, and the overall 0-100
// score blends word accuracy (70%) with a timing heuristic (30%).
package scorer

import (
	"math"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/lughati/voice_service/internal/errors"
)

// correctThreshold is the similarity above which a word counts as correctly
// pronounced. Strictly greater-than: a word at exactly 0.8 is not correct.
const correctThreshold = 0.8

// WordScore is the per-position alignment result for one word pair.
type WordScore struct {
	UserWord   string  `json:"userWord"`
	TargetWord string  `json:"targetWord"`
	Score      float64 `json:"score"`
	IsCorrect  bool    `json:"isCorrect"`
}

// Timing captures the word-count based speed analysis.
type Timing struct {
	UserWordCount   int     `json:"userWordCount"`
	TargetWordCount int     `json:"targetWordCount"`
	SpeedRatio      float64 `json:"speedRatio"`
	TimingAccuracy  float64 `json:"timingAccuracy"`
}

// Analysis is the full scoring result for one transcript/target pair.
type Analysis struct {
	WordScores []WordScore `json:"wordScores"`
	Accuracy   float64     `json:"accuracy"`
	Timing     Timing      `json:"timing"`
}

// Score aligns userTranscript against targetText and computes per-word and
// timing scores. targetText must contain at least one word; an empty target
// is a caller error.
func Score(userTranscript, targetText string) (*Analysis, error) {
	targetWords := tokenize(targetText)
	if len(targetWords) == 0 {
		return nil, errors.Validation("target text must contain at least one word")
	}
	userWords := tokenize(userTranscript)

	n := len(userWords)
	if len(targetWords) > n {
		n = len(targetWords)
	}

	wordScores := make([]WordScore, 0, n)
	var total float64
	for i := 0; i < n; i++ {
		userWord := wordAt(userWords, i)
		targetWord := wordAt(targetWords, i)

		score := WordSimilarity(userWord, targetWord)
		wordScores = append(wordScores, WordScore{
			UserWord:   userWord,
			TargetWord: targetWord,
			Score:      score,
			IsCorrect:  score > correctThreshold,
		})
		total += score
	}

	return &Analysis{
		WordScores: wordScores,
		Accuracy:   total / float64(n),
		Timing:     analyzeTiming(len(userWords), len(targetWords)),
	}, nil
}

// WordSimilarity returns the normalized edit-distance similarity of two
// words in [0, 1]: identical words score 1.0, an empty side scores 0.0,
// and otherwise 1 - levenshtein(a,b)/max(len(a),len(b)).
func WordSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	distance := matchr.Levenshtein(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// OverallScore blends word accuracy and timing accuracy into the user-facing
// 0-100 integer: round((accuracy*0.7 + timingAccuracy*0.3) * 100).
func (a *Analysis) OverallScore() int {
	return int(math.Round((a.Accuracy*0.7 + a.Timing.TimingAccuracy*0.3) * 100))
}

// LowScoreWords returns the target words whose similarity fell below the
// correctness threshold, in sentence order.
func (a *Analysis) LowScoreWords() []string {
	var words []string
	for _, ws := range a.WordScores {
		if ws.Score < correctThreshold {
			words = append(words, ws.TargetWord)
		}
	}
	return words
}

// analyzeTiming derives the speed metrics from word counts. The caller
// guarantees targetCount > 0.
//
// TimingAccuracy is |1 - |user-target|/target|, deliberately unclamped: a
// transcript more than twice the target length produces a value above 1
// exactly as the reference behavior does.
func analyzeTiming(userCount, targetCount int) Timing {
	diff := math.Abs(float64(userCount - targetCount))
	return Timing{
		UserWordCount:   userCount,
		TargetWordCount: targetCount,
		SpeedRatio:      float64(userCount) / float64(targetCount),
		TimingAccuracy:  math.Abs(1.0 - diff/float64(targetCount)),
	}
}

// tokenize lowercases the text and splits it on whitespace. Punctuation is
// intentionally preserved: "today." and "today" are different words.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func wordAt(words []string, i int) string {
	if i < len(words) {
		return words[i]
	}
	return ""
}
