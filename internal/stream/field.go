package stream

import (
	"fmt"
	"regexp"
	"strings"
)

// fieldResult is the outcome of extracting one string field from a
// fragment. value holds whatever has been scanned so far; complete is
// true once the closing quote was seen.
type fieldResult struct {
	value    string
	found    bool
	complete bool
}

// The record schema is fixed, so the opening patterns are precompiled.
var openPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, name := range []string{
		"originalText", "subtext", "translation", "grammarNotes",
		"word", "reading", "meaning", "partOfSpeech",
	} {
		openPatterns[name] = compileOpenPattern(name)
	}
}

func compileOpenPattern(field string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`"%s"\s*:\s*"`, regexp.QuoteMeta(field)))
}

func openPattern(field string) *regexp.Regexp {
	if re, ok := openPatterns[field]; ok {
		return re
	}
	return compileOpenPattern(field)
}

// extractStringField locates the first `"field":"` opening in the
// fragment and scans the value character by character, honoring
// backslash escapes, until an unescaped quote closes it or the buffer
// runs out.
func extractStringField(buffer, field string) fieldResult {
	loc := openPattern(field).FindStringIndex(buffer)
	if loc == nil {
		return fieldResult{}
	}

	var sb strings.Builder
	i := loc[1]
	for i < len(buffer) {
		c := buffer[i]
		switch c {
		case '\\':
			if i+1 >= len(buffer) {
				// Dangling escape at the end of the fragment; the value
				// is whatever was scanned before it.
				return fieldResult{value: sb.String(), found: true}
			}
			switch esc := buffer[i+1]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(esc)
			}
			i += 2
		case '"':
			return fieldResult{value: sb.String(), found: true, complete: true}
		default:
			sb.WriteByte(c)
			i++
		}
	}

	return fieldResult{value: sb.String(), found: true}
}
