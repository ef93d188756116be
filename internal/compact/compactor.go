package compact

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kotoba-dev/kotoba/internal/protocol"
)

// Limits controls the compaction budget and floors.
type Limits struct {
	// HardLimit is the request size the provider API rejects above.
	HardLimit int
	// SafetyMargin is subtracted from HardLimit to absorb estimation error.
	SafetyMargin int
	// ImagesKeptInTail is the number of most-recent messages whose
	// images are never stripped.
	ImagesKeptInTail int
	// SoftFloor is the message count soft truncation stops at.
	SoftFloor int
	// EmergencyFloor is the message count emergency truncation stops at.
	// Compaction never drops below it, even when still over budget.
	EmergencyFloor int
}

// DefaultLimits mirrors the provider's 32 MiB request cap with a 2 MiB
// safety margin.
func DefaultLimits() Limits {
	return Limits{
		HardLimit:        32 << 20,
		SafetyMargin:     2 << 20,
		ImagesKeptInTail: 4,
		SoftFloor:        10,
		EmergencyFloor:   5,
	}
}

// EffectiveLimit is the size compaction actually targets.
func (l Limits) EffectiveLimit() int {
	return l.HardLimit - l.SafetyMargin
}

// Report is the outcome of one compaction pass. Messages is always an
// independent copy; the caller's history is never mutated.
type Report struct {
	Messages        []protocol.ChatMessage
	WasCompacted    bool
	DroppedImages   int
	DroppedMessages int

	// FinalSize is the estimate for the returned messages. OverBudget
	// is true when the estimate still exceeds the effective limit after
	// all phases; the floors make the limit best-effort, so callers
	// needing a hard guarantee must check this themselves.
	FinalSize  int
	OverBudget bool
}

// Compactor applies the three-phase degrade algorithm.
type Compactor struct {
	limits Limits
}

// New creates a compactor with the given limits. Zero-valued fields fall
// back to the defaults.
func New(limits Limits) *Compactor {
	def := DefaultLimits()
	if limits.HardLimit <= 0 {
		limits.HardLimit = def.HardLimit
	}
	if limits.SafetyMargin <= 0 {
		limits.SafetyMargin = def.SafetyMargin
	}
	if limits.ImagesKeptInTail <= 0 {
		limits.ImagesKeptInTail = def.ImagesKeptInTail
	}
	if limits.SoftFloor <= 0 {
		limits.SoftFloor = def.SoftFloor
	}
	if limits.EmergencyFloor <= 0 {
		limits.EmergencyFloor = def.EmergencyFloor
	}
	return &Compactor{limits: limits}
}

// Limits returns the effective limits of the compactor.
func (c *Compactor) Limits() Limits {
	return c.limits
}

// Compact shrinks the candidate payload until it fits the effective
// limit or every phase is exhausted. It always returns, never errors,
// and works on a deep copy of messages.
func (c *Compactor) Compact(systemPrompt string, messages []protocol.ChatMessage) Report {
	limit := c.limits.EffectiveLimit()
	size := EstimateTotalSize(systemPrompt, messages)

	if size <= limit {
		return Report{
			Messages:  protocol.CloneMessages(messages),
			FinalSize: size,
		}
	}

	working := protocol.CloneMessages(messages)
	report := Report{WasCompacted: false}

	// Phase 1: strip images from everything before the protected tail.
	// Size is recomputed once after the full pass.
	report.DroppedImages = c.stripImages(working)
	if report.DroppedImages > 0 {
		report.WasCompacted = true
	}
	size = EstimateTotalSize(systemPrompt, working)

	// Phase 2: drop oldest messages down to the soft floor.
	for size > limit && len(working) > c.limits.SoftFloor {
		working = working[1:]
		report.DroppedMessages++
		report.WasCompacted = true
		size = EstimateTotalSize(systemPrompt, working)
	}

	// Phase 3: keep dropping down to the emergency floor.
	for size > limit && len(working) > c.limits.EmergencyFloor {
		working = working[1:]
		report.DroppedMessages++
		report.WasCompacted = true
		size = EstimateTotalSize(systemPrompt, working)
	}

	report.Messages = working
	report.FinalSize = size
	report.OverBudget = size > limit

	if report.OverBudget {
		logrus.Warnf("payload still over budget after compaction: %d > %d (floor %d messages)",
			size, limit, c.limits.EmergencyFloor)
	}

	return report
}

// stripImages removes image blocks from every message outside the
// protected tail, replacing them with a text placeholder. Returns the
// number of images removed.
func (c *Compactor) stripImages(messages []protocol.ChatMessage) int {
	cutoff := len(messages) - c.limits.ImagesKeptInTail
	dropped := 0

	for i := 0; i < cutoff; i++ {
		if !messages[i].HasImages() {
			continue
		}

		var texts []string
		removed := 0
		for _, block := range messages[i].Blocks {
			switch block.Type {
			case protocol.BlockTypeText:
				texts = append(texts, block.Text)
			case protocol.BlockTypeImage:
				removed++
			}
		}

		placeholder := imagePlaceholder(removed)
		if len(texts) > 0 {
			messages[i].Content = placeholder + "\n" + strings.Join(texts, "\n")
		} else {
			messages[i].Content = placeholder
		}
		messages[i].Blocks = nil
		dropped += removed
	}

	return dropped
}

func imagePlaceholder(count int) string {
	if count == 1 {
		return "[1 image removed to reduce request size]"
	}
	return fmt.Sprintf("[%d images removed to reduce request size]", count)
}
