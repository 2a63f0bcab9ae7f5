package scorer

// Speed-ratio bounds beyond which a speed error is flagged.
const (
	tooFastRatio = 1.5
	tooSlowRatio = 0.5
)

// PronunciationError is one structured finding in an error analysis.
type PronunciationError struct {
	Type       string `json:"type"`
	Word       string `json:"word,omitempty"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// ErrorAnalysis aggregates the structured findings for one attempt.
type ErrorAnalysis struct {
	Errors      []PronunciationError `json:"errors"`
	TotalErrors int                  `json:"totalErrors"`
	Severity    string               `json:"severity"`
}

// AnalyzeErrors derives the structured error list from an analysis: one
// pronunciation error per word below the correctness threshold, plus a speed
// error when the transcript is much longer or shorter than the target.
// Severity: "high" above 3 errors, "medium" for 1-3, "low" for none.
func (a *Analysis) AnalyzeErrors() ErrorAnalysis {
	var errs []PronunciationError

	for _, ws := range a.WordScores {
		if ws.Score < correctThreshold {
			errs = append(errs, PronunciationError{
				Type:       "pronunciation",
				Word:       ws.TargetWord,
				Issue:      "Incorrect pronunciation",
				Suggestion: "Practice this word slowly and listen to the correct pronunciation",
			})
		}
	}

	if a.Timing.SpeedRatio > tooFastRatio {
		errs = append(errs, PronunciationError{
			Type:       "speed",
			Issue:      "Speaking too fast",
			Suggestion: "Slow down your speech for better clarity",
		})
	} else if a.Timing.SpeedRatio < tooSlowRatio {
		errs = append(errs, PronunciationError{
			Type:       "speed",
			Issue:      "Speaking too slow",
			Suggestion: "Try to speak with more natural rhythm",
		})
	}

	severity := "low"
	switch {
	case len(errs) > 3:
		severity = "high"
	case len(errs) >= 1:
		severity = "medium"
	}

	return ErrorAnalysis{
		Errors:      errs,
		TotalErrors: len(errs),
		Severity:    severity,
	}
}
