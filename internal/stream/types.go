// Package stream incrementally reconstructs a translation record from a
// growing, syntactically incomplete JSON buffer produced by a streaming
// provider response.
//
// Decode is a pure function of the whole buffer: the caller appends each
// network delta to its own buffer and re-decodes, so there is no parser
// state to corrupt and calls may be skipped or coalesced freely.
package stream

// StreamingMeta tracks decode progress for cursor/placeholder UI.
type StreamingMeta struct {
	// IsComplete is never set by Decode; the caller flips it when the
	// outer stream signals end of message. A syntactically closed
	// fragment mid-stream is indistinguishable from a finished one.
	IsComplete bool `json:"isComplete"`

	// CurrentField names the record field still being written, if any.
	CurrentField string `json:"currentField,omitempty"`
}

// PartialWordEntry is one word-level annotation of the breakdown array,
// each field filled in independently as it arrives.
type PartialWordEntry struct {
	Word         string `json:"word,omitempty"`
	Reading      string `json:"reading,omitempty"`
	Meaning      string `json:"meaning,omitempty"`
	PartOfSpeech string `json:"partOfSpeech,omitempty"`
}

// PartialTranslation is the decoded state of an in-flight translation
// record. A string field is non-nil once its opening `"name":"` pattern
// has been seen, even if the value is not yet closed.
type PartialTranslation struct {
	OriginalText *string            `json:"originalText,omitempty"`
	Subtext      *string            `json:"subtext,omitempty"`
	Translation  *string            `json:"translation,omitempty"`
	GrammarNotes *string            `json:"grammarNotes,omitempty"`
	Breakdown    []PartialWordEntry `json:"breakdown,omitempty"`
	Streaming    StreamingMeta      `json:"_streaming"`
}
