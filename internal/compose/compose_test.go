package compose

import "testing"

func TestKeystroke_OneShot(t *testing.T) {
	var b Buffer

	if !b.Keystroke() {
		t.Error("Expected first keystroke to transition to typing")
	}
	if b.Keystroke() {
		t.Error("Expected no transition while already typing")
	}
	if b.Keystroke() {
		t.Error("Expected no transition while already typing")
	}
	if !b.Typing() {
		t.Error("Expected buffer marked typing")
	}
}

func TestCommit(t *testing.T) {
	var b Buffer
	b.Keystroke()
	b.SetText("hi")

	text, ok := b.Commit()
	if !ok {
		t.Fatal("Expected commit to succeed")
	}
	if text != "hi" {
		t.Errorf("Expected text 'hi', got '%s'", text)
	}
	if b.Text() != "" {
		t.Errorf("Expected buffer cleared, got '%s'", b.Text())
	}
	if b.Typing() {
		t.Error("Expected typing cleared after commit")
	}
}

func TestCommit_WhitespaceOnly(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{"Empty", ""},
		{"Spaces", "   "},
		{"Tabs", "\t\t"},
		{"Mixed", " \t \n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var b Buffer
			b.Keystroke()
			b.SetText(tc.text)

			if _, ok := b.Commit(); ok {
				t.Error("Expected whitespace-only commit to be a no-op")
			}
			// Nothing is cleared on a no-op commit.
			if b.Text() != tc.text {
				t.Errorf("Expected text preserved, got '%s'", b.Text())
			}
			if !b.Typing() {
				t.Error("Expected typing state preserved on no-op commit")
			}
		})
	}
}

func TestCommit_PreservesInteriorWhitespace(t *testing.T) {
	var b Buffer
	b.SetText("  hi there  ")

	text, ok := b.Commit()
	if !ok {
		t.Fatal("Expected commit to succeed")
	}
	if text != "  hi there  " {
		t.Errorf("Expected text sent verbatim, got '%s'", text)
	}
}

func TestBlur(t *testing.T) {
	var b Buffer

	if b.Blur() {
		t.Error("Expected no transition when not typing")
	}

	b.Keystroke()
	if !b.Blur() {
		t.Error("Expected blur to report the clearing transition")
	}
	if b.Typing() {
		t.Error("Expected typing cleared after blur")
	}
	if b.Blur() {
		t.Error("Expected repeated blur to report nothing")
	}
}

func TestBlur_KeepsText(t *testing.T) {
	var b Buffer
	b.SetText("draft")
	b.Keystroke()

	b.Blur()

	if b.Text() != "draft" {
		t.Errorf("Expected staged text to survive blur, got '%s'", b.Text())
	}
}
