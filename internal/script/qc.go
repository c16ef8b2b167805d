package script

import (
	"regexp"
	"strings"
)

// WordRange maps a target duration to the acceptable script word band.
func WordRange(duration string) (int, int) {
	switch duration {
	case "15s":
		return 60, 75
	case "30s":
		return 90, 120
	case "60s":
		return 150, 180
	}
	return 90, 120
}

var (
	wordPattern  = regexp.MustCompile(`[\w’']+`)
	emojiPattern = regexp.MustCompile("[\U0001F600-\U0001F64F]")
)

// CountWords counts word tokens, treating apostrophes as word-internal.
func CountWords(text string) int {
	return len(wordPattern.FindAllString(text, -1))
}

// FirstSentence returns everything up to and including the first sentence
// terminator that is followed by whitespace.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t') {
				return text[:i+1]
			}
		}
	}
	return text
}

// QCReport is the local quality gate run on a generated script before it is
// accepted or sent for one editor fix round.
type QCReport struct {
	WordCount              int      `json:"word_count"`
	FirstSentenceWordCount int      `json:"first_sentence_word_count"`
	HookOK                 bool     `json:"hook_ok"`
	PunctuationOK          bool     `json:"punctuation_rules_ok"`
	RiskFlags              []string `json:"risk_flags"`
	FixNeeded              bool     `json:"fix_needed"`
}

// Evaluate checks word count against [lo, hi], hook length and punctuation
// rules (no em or en dashes, no emoji).
func Evaluate(text string, lo, hi int) QCReport {
	wc := CountWords(text)
	fsWC := CountWords(FirstSentence(text))
	hookOK := fsWC <= 18
	punctOK := !strings.Contains(text, "—") &&
		!strings.Contains(text, "–") &&
		!emojiPattern.MatchString(text)

	var risk []string
	if !punctOK {
		risk = append(risk, "punctuation")
	}
	if !hookOK {
		risk = append(risk, "hook_long")
	}
	if wc < lo || wc > hi {
		risk = append(risk, "length_out_of_range")
	}

	return QCReport{
		WordCount:              wc,
		FirstSentenceWordCount: fsWC,
		HookOK:                 hookOK,
		PunctuationOK:          punctOK,
		RiskFlags:              risk,
		FixNeeded:              len(risk) > 0,
	}
}
