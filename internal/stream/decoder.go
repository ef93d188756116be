package stream

// Decode reconstructs the partial translation record visible in the
// buffer so far. It is pure, total, and never fails: malformed or
// truncated fragments degrade to partial or absent fields.
//
// Fields are evaluated in schema order; the last one found incomplete
// becomes Streaming.CurrentField, so the breakdown array takes priority
// over grammarNotes when both are open. Streaming.IsComplete is left
// false; the transport flips it at end of stream.
//
// Decoding is monotonic under buffer growth: a field, entry, or
// completed value reported for a prefix is never lost when more of the
// same stream is appended.
func Decode(buffer string) PartialTranslation {
	var out PartialTranslation
	current := ""

	if r := extractStringField(buffer, "originalText"); r.found {
		out.OriginalText = &r.value
		if !r.complete {
			current = "originalText"
		}
	}
	if r := extractStringField(buffer, "subtext"); r.found {
		out.Subtext = &r.value
		if !r.complete {
			current = "subtext"
		}
	}
	if r := extractStringField(buffer, "translation"); r.found {
		out.Translation = &r.value
		if !r.complete {
			current = "translation"
		}
	}
	if r := extractStringField(buffer, "grammarNotes"); r.found {
		out.GrammarNotes = &r.value
		if !r.complete {
			current = "grammarNotes"
		}
	}
	if b := extractBreakdown(buffer); b.found {
		out.Breakdown = b.entries
		if b.inProgress {
			current = "breakdown"
		}
	}

	out.Streaming.CurrentField = current
	return out
}
