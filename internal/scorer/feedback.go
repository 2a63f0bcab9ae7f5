package scorer

import (
	"fmt"
	"strings"
)

// maxFeedbackWords caps how many problem words appear in corrective feedback.
const maxFeedbackWords = 3

// feedbackTemplate holds the localized feedback strings for one language tag.
type feedbackTemplate struct {
	perfect    string
	corrective string // fmt verb %s receives the comma-joined word list
}

var feedbackTemplates = map[string]feedbackTemplate{
	"ar": {
		perfect:    "ممتاز! نطقك دقيق جداً. استمر على هذا النحو!",
		corrective: "تحتاج إلى تحسين نطق الكلمات التالية: %s. ركز على النطق الصحيح وحاول مرة أخرى.",
	},
	"en": {
		perfect:    "Excellent! Your pronunciation is very accurate. Keep it up!",
		corrective: "You need to improve your pronunciation of these words: %s. Focus on the correct sounds and try again.",
	},
}

// Feedback renders the natural-language feedback for an analysis in the
// requested language. Unknown language tags fall back to English.
func (a *Analysis) Feedback(lang string) string {
	tmpl, ok := feedbackTemplates[lang]
	if !ok {
		tmpl = feedbackTemplates["en"]
	}

	lowWords := a.LowScoreWords()
	if len(lowWords) == 0 {
		return tmpl.perfect
	}
	if len(lowWords) > maxFeedbackWords {
		lowWords = lowWords[:maxFeedbackWords]
	}
	return fmt.Sprintf(tmpl.corrective, strings.Join(lowWords, ", "))
}
