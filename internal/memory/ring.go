// Package memory implements the per-identity conversational memory ring:
// a bounded FIFO of turns with tier-determined capacity, plus the
// character-capped context window injected into system prompts.
package memory

import (
	"strings"
	"time"

	gateway "github.com/altshift/agentgate/internal"
)

const (
	// DefaultWindowChars caps the context window by character count.
	DefaultWindowChars = 2000
	// windowEntries is how many trailing entries feed the context window.
	windowEntries = 10
)

// Append pushes a turn onto the ring's tail, truncating content to the
// storage limit, and evicts from the head while over the tier capacity.
// Enterprise (capacity 0) never evicts.
func Append(id *gateway.Identity, role, content string, now time.Time) {
	id.Memory = append(id.Memory, gateway.MemoryEntry{
		Role:      role,
		Content:   Truncate(content, gateway.MaxMemoryEntryChars),
		Timestamp: now.UnixMilli(),
	})
	limit := id.Tier.MemoryCapacity()
	if limit <= 0 {
		return
	}
	if over := len(id.Memory) - limit; over > 0 {
		id.Memory = append(id.Memory[:0], id.Memory[over:]...)
	}
}

// Recent returns the last n entries in insertion order, oldest first.
// The returned slice is a copy.
func Recent(id *gateway.Identity, n int) []gateway.MemoryEntry {
	if n <= 0 || len(id.Memory) == 0 {
		return nil
	}
	if n > len(id.Memory) {
		n = len(id.Memory)
	}
	out := make([]gateway.MemoryEntry, n)
	copy(out, id.Memory[len(id.Memory)-n:])
	return out
}

// ContextWindow concatenates the last ten entries as "[role]: content"
// lines and returns the last maxChars characters of the result. The tail
// truncation is by character count, not whole lines, so the head line may
// be cut mid-sentence.
func ContextWindow(id *gateway.Identity, maxChars int) string {
	entries := Recent(id, windowEntries)
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteByte('[')
		b.WriteString(e.Role)
		b.WriteString("]: ")
		b.WriteString(e.Content)
		b.WriteByte('\n')
	}
	return tail(b.String(), maxChars)
}

// Truncate returns at most n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// tail returns the last n characters (runes) of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
