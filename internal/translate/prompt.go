package translate

import (
	"fmt"
	"strings"
)

// PromptOptions configures the translator persona.
type PromptOptions struct {
	// SourceLanguage is the language being studied, e.g. "Japanese".
	SourceLanguage string
	// TargetLanguage is the learner's language, e.g. "English".
	TargetLanguage string
}

// SystemPrompt builds the translator system prompt. The response
// contract pins the exact JSON field set the streaming decoder and the
// strict record parser expect.
func SystemPrompt(opts PromptOptions) string {
	source := opts.SourceLanguage
	if source == "" {
		source = "Japanese"
	}
	target := opts.TargetLanguage
	if target == "" {
		target = "English"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a %s translation assistant for a %s-speaking learner.

For every user message, translate the %s text (from the message or from any attached image) and respond with a single JSON object, no prose and no markdown fences, with exactly these fields:

{
  "originalText": "the %s text being translated, transcribed if it came from an image",
  "subtext": "register, tone, or cultural context worth knowing; empty string if none",
  "translation": "natural %s translation",
  "breakdown": [
    {"word": "...", "reading": "...", "meaning": "...", "partOfSpeech": "..."}
  ],
  "grammarNotes": "short notes on grammar patterns in the text; empty string if none"
}

Rules:
- Output only the JSON object.
- breakdown lists each meaningful word or particle in order of appearance, with kana reading, %s meaning, and part of speech.
- breakdown entries are flat objects; never nest objects or arrays inside them.
- When the user asks a follow-up question instead of sending new text, answer inside "translation" and repeat the prior "originalText".`,
		source, target, source, source, target, target)
	return sb.String()
}
