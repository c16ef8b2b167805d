package script

import (
	"encoding/json"
	"regexp"
	"strings"
)

// OutcomeKind tags how the model output was recovered.
type OutcomeKind int

const (
	// OutcomeParsed means the output decoded as the expected JSON object.
	OutcomeParsed OutcomeKind = iota
	// OutcomeDegraded means no JSON could be recovered; the whole reply was
	// taken as the paragraph and ssml is empty.
	OutcomeDegraded
)

// Outcome is the result of interpreting a model reply. Parse never fails:
// unparseable replies degrade to paragraph-only.
type Outcome struct {
	Kind      OutcomeKind
	Paragraph string
	SSML      string
}

type paragraphPayload struct {
	Paragraph string `json:"paragraph"`
	SSML      string `json:"ssml"`
}

var (
	fenceOpen  = regexp.MustCompile("^```(json)?\\s*")
	newlineRun = regexp.MustCompile(`\s*\n+\s*`)
	spaceRun   = regexp.MustCompile(`\s{2,}`)
)

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = fenceOpen.ReplaceAllString(raw, "")
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
	}
	return raw
}

// NormalizeParagraph folds a reply into a single flowing paragraph.
func NormalizeParagraph(text string) string {
	text = strings.TrimSpace(text)
	text = newlineRun.ReplaceAllString(text, " ")
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Parse interprets a model reply: strict JSON first, then the outermost
// {...} block, and finally the raw text coerced into a paragraph.
func Parse(raw string) Outcome {
	raw = stripFences(raw)

	var payload paragraphPayload
	if err := json.Unmarshal([]byte(raw), &payload); err == nil {
		return Outcome{
			Kind:      OutcomeParsed,
			Paragraph: NormalizeParagraph(payload.Paragraph),
			SSML:      strings.TrimSpace(payload.SSML),
		}
	}

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err == nil {
				return Outcome{
					Kind:      OutcomeParsed,
					Paragraph: NormalizeParagraph(payload.Paragraph),
					SSML:      strings.TrimSpace(payload.SSML),
				}
			}
		}
	}

	return Outcome{
		Kind:      OutcomeDegraded,
		Paragraph: NormalizeParagraph(raw),
		SSML:      "",
	}
}
