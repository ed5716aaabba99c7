// Package engine is the generation and token-metering core: prompt
// composition, streaming sessions, surface routing, balance deduction,
// and conversation titling.
package engine

import (
	"strings"
)

const truncationMarker = "… [truncated]"

// PromptContext is the raw material for one system prompt.
type PromptContext struct {
	Base       string   // instruction for the surface kind; never shrunk
	Memories   []string // newest-first
	Attachment string   // optional document body
}

// Compose assembles the system prompt within the rune budget. The base is
// sacrosanct; the attachment is truncated to attachmentCap before any
// memory is dropped, and memories are then dropped oldest-first. If even
// the truncated attachment does not fit alongside the base, it goes too.
func Compose(pc PromptContext, budget, attachmentCap int) string {
	attachment := pc.Attachment
	memories := pc.Memories

	out := renderPrompt(pc.Base, memories, attachment)
	if runeLen(out) <= budget {
		return out
	}

	if runeLen(attachment) > attachmentCap {
		attachment = string([]rune(attachment)[:attachmentCap]) + truncationMarker
		out = renderPrompt(pc.Base, memories, attachment)
		if runeLen(out) <= budget {
			return out
		}
	}

	// Memories are newest-first, so the oldest is at the tail.
	for len(memories) > 0 {
		memories = memories[:len(memories)-1]
		out = renderPrompt(pc.Base, memories, attachment)
		if runeLen(out) <= budget {
			return out
		}
	}

	if attachment != "" {
		out = renderPrompt(pc.Base, nil, "")
	}
	return out
}

func renderPrompt(base string, memories []string, attachment string) string {
	var sb strings.Builder
	sb.WriteString(base)
	if len(memories) > 0 {
		sb.WriteString("\n\nMemories:\n")
		sb.WriteString(strings.Join(memories, "\n"))
	}
	if attachment != "" {
		sb.WriteString("\n\nAttached document:\n")
		sb.WriteString(attachment)
	}
	return sb.String()
}

func runeLen(s string) int {
	return len([]rune(s))
}
