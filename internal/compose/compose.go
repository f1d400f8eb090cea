// Package compose stages the local user's in-progress message and typing
// status before commit. The buffer owns the one-shot typing transition: a
// keystroke while already marked typing reports no new transition.
package compose

import "strings"

// Buffer accumulates uncommitted input text and the local typing flag.
// The zero value is ready to use.
type Buffer struct {
	text   string
	typing bool
}

// SetText mirrors the surface's current input text into the buffer.
func (b *Buffer) SetText(text string) {
	b.text = text
}

// Text returns the staged text.
func (b *Buffer) Text() string {
	return b.text
}

// Typing reports whether the local user is currently marked typing.
func (b *Buffer) Typing() bool {
	return b.typing
}

// Keystroke records a non-committing keypress. It returns true only on the
// false-to-true typing transition; the caller emits one typing event per
// true result and nothing otherwise.
func (b *Buffer) Keystroke() bool {
	if b.typing {
		return false
	}
	b.typing = true
	return true
}

// Commit takes the staged text and resets the buffer. Whitespace-only
// content is a no-op: ok is false and nothing is cleared.
func (b *Buffer) Commit() (text string, ok bool) {
	if strings.TrimSpace(b.text) == "" {
		return "", false
	}
	text = b.text
	b.text = ""
	b.typing = false
	return text, true
}

// Blur records loss of input focus, which always ends the typing state.
// It returns true when typing was set, so the caller knows to emit the
// clearing transition.
func (b *Buffer) Blur() bool {
	if !b.typing {
		return false
	}
	b.typing = false
	return true
}
