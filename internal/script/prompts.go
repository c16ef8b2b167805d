package script

import (
	"fmt"
	"strings"
)

// GeneratorSystem frames the model as a copywriter plus SSML engineer and
// pins the output to a single JSON object.
const GeneratorSystem = "You are a senior fashion copywriter AND an SSML engineer. " +
	"Return ONLY a single JSON object (no extra commentary, no markdown)."

// ScriptSystem is the plain-paragraph system prompt used for video scripts,
// where only text is needed.
const ScriptSystem = "You write 15/30/60-second documentary-style vertical scripts for men's heritage fashion." +
	" Output ONE paragraph only. No labels. Follow six-beat arc:" +
	" (1) Hook why icon matters; first sentence <=18 words." +
	" (2) Style philosophy." +
	" (3) Signature looks with specific garments." +
	" (4) One iconic accessory with cultural impact." +
	" (5) Range across settings." +
	" (6) Closing legacy line naming their influence." +
	" Tone: concise, authoritative, cinematic. No emojis. No em dashes. Standard punctuation." +
	" Use conservative phrasing if uncertain; no invented model numbers."

// EditorSystem drives the single QC fix round.
const EditorSystem = "You are a precise editor."

// composeIcon appends the category as a parenthetical hint when present.
func composeIcon(icon, category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return icon
	}
	return fmt.Sprintf("%s (%s)", icon, category)
}

// ParagraphPrompt asks for a documentary paragraph and its SSML rendering in
// one JSON object.
func ParagraphPrompt(icon, category, notes string, lo, hi int) string {
	return fmt.Sprintf(`GOAL
1) Write ONE documentary-style brand paragraph (%d-%d words) about %s.
- Weave in these notes naturally: %s
- Concrete visuals (fit, fabric, color mood, scene); present tense; no hype, emojis, or markdown.
- Include one subtle styling suggestion.
- End with a calm, confident closing line.

2) Convert that paragraph into VALID, production-ready SSML (ElevenLabs-compatible).

SSML RULES
- Output ONE <speak> block only (no XML declaration, no code fences, no comments).
- Wrap content in <prosody rate="medium"> ... </prosody>.
- Use <break> between 120-500ms at natural beats.
- Use <emphasis level="moderate"> on up to 3 short phrases.
- Convert years to <say-as interpret-as="date" format="y">YYYY</say-as>.
- Convert standalone integers to <say-as interpret-as="cardinal">N</say-as> when helpful.
- Escape special characters (&, <, >, ").
- End with <mark name="END"/> right before </speak>.
- No vendor-specific or <audio> tags.

OUTPUT FORMAT
Return ONLY a single JSON object (no extra text, no markdown), strictly valid and double-quoted:
{
"paragraph": "string - the plain text paragraph (%d-%d words).",
"ssml": "<speak>...</speak>"
}`, lo, hi, composeIcon(icon, category), strings.TrimSpace(notes), lo, hi)
}

// ScriptPrompt is the user prompt for a plain script of the given word range.
func ScriptPrompt(icon, notes string, lo, hi int) string {
	return fmt.Sprintf("Icon/Topic: %s\nNotes: %s\nWord target: %d-%d words.\nReturn only the single paragraph.",
		icon, strings.TrimSpace(notes), lo, hi)
}

// FixPrompt is the one-round editor prompt applied when QC flags the draft.
func FixPrompt(icon, notes, original string, lo, hi int) string {
	return fmt.Sprintf("Correct to satisfy rules. Keep one paragraph; hook first sentence <=18 words;"+
		" target %d-%d words. Remove emojis and em dashes; soften risky claims; preserve factual notes.\n"+
		"Icon: %s\nNotes: %s\nOriginal: %s\nReturn only the corrected paragraph.",
		lo, hi, icon, strings.TrimSpace(notes), original)
}
