package stream

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	breakdownOpen = regexp.MustCompile(`"breakdown"\s*:\s*\[`)

	// Breakdown entries are flat by schema, so a simple non-nested
	// brace run matches a complete object.
	flatObject = regexp.MustCompile(`\{[^{}]*\}`)
)

// breakdownResult is the outcome of extracting the breakdown array from
// a fragment. inProgress is true while the producer is still inside a
// trailing, unclosed entry object.
type breakdownResult struct {
	entries    []PartialWordEntry
	found      bool
	inProgress bool
}

// extractBreakdown collects every complete breakdown entry plus at most
// one trailing partial entry from the fragment.
func extractBreakdown(buffer string) breakdownResult {
	loc := breakdownOpen.FindStringIndex(buffer)
	if loc == nil {
		return breakdownResult{}
	}

	window := buffer[loc[1]:]
	if end := strings.Index(window, "]"); end >= 0 {
		window = window[:end]
	}

	result := breakdownResult{found: true}

	for _, obj := range flatObject.FindAllString(window, -1) {
		result.entries = append(result.entries, parseEntry(obj))
	}

	// An entry is in progress when the window's last opening brace has
	// no closing brace after it.
	lastOpen := strings.LastIndex(window, "{")
	lastClose := strings.LastIndex(window, "}")
	if lastOpen > lastClose {
		result.inProgress = true
		if entry := extractEntryFields(window[lastOpen:]); entry != (PartialWordEntry{}) {
			result.entries = append(result.entries, entry)
		}
	}

	return result
}

// parseEntry parses a complete entry object, preferring a strict parse
// and falling back to per-field extraction on malformed input rather
// than discarding the entry.
func parseEntry(obj string) PartialWordEntry {
	if gjson.Valid(obj) {
		parsed := gjson.Parse(obj)
		return PartialWordEntry{
			Word:         parsed.Get("word").String(),
			Reading:      parsed.Get("reading").String(),
			Meaning:      parsed.Get("meaning").String(),
			PartOfSpeech: parsed.Get("partOfSpeech").String(),
		}
	}
	return extractEntryFields(obj)
}

// extractEntryFields recovers whatever entry fields are present in a
// possibly truncated object substring.
func extractEntryFields(obj string) PartialWordEntry {
	var entry PartialWordEntry
	if r := extractStringField(obj, "word"); r.found {
		entry.Word = r.value
	}
	if r := extractStringField(obj, "reading"); r.found {
		entry.Reading = r.value
	}
	if r := extractStringField(obj, "meaning"); r.found {
		entry.Meaning = r.value
	}
	if r := extractStringField(obj, "partOfSpeech"); r.found {
		entry.PartOfSpeech = r.value
	}
	return entry
}
