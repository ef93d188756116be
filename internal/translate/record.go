// Package translate defines the translation record schema the assistant
// produces and the prompt that elicits it.
package translate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WordEntry is one word-level annotation of a completed record.
type WordEntry struct {
	Word         string `json:"word"`
	Reading      string `json:"reading,omitempty"`
	Meaning      string `json:"meaning,omitempty"`
	PartOfSpeech string `json:"partOfSpeech,omitempty"`
}

// Record is the fully parsed translation record for one turn.
type Record struct {
	OriginalText string      `json:"originalText"`
	Subtext      string      `json:"subtext,omitempty"`
	Translation  string      `json:"translation"`
	Breakdown    []WordEntry `json:"breakdown,omitempty"`
	GrammarNotes string      `json:"grammarNotes,omitempty"`
}

// ParseRecord strictly parses a completed response buffer into a Record.
// Markdown code fences around the JSON are tolerated since some models
// add them despite the prompt contract.
func ParseRecord(raw string) (*Record, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var record Record
	if err := json.Unmarshal([]byte(cleaned), &record); err != nil {
		return nil, fmt.Errorf("parsing translation record: %w", err)
	}
	return &record, nil
}
