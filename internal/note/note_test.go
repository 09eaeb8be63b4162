package note

import (
	"strings"
	"testing"

	"misskeyrelay/internal/domain"
)

func noteEvent(typ, userID string, urls ...string) domain.ChannelEvent {
	n := &domain.Note{ID: "abc123", UserID: userID}
	for _, u := range urls {
		n.Files = append(n.Files, domain.File{URL: u})
	}
	return domain.ChannelEvent{ChannelID: "X", Type: typ, Note: n}
}

func TestQualifies_NoAttachments(t *testing.T) {
	f := NewFilter("U1")
	if f.Qualifies(noteEvent("note", "U1")) {
		t.Error("note without attachments should not qualify")
	}
}

func TestQualifies_WrongAuthor(t *testing.T) {
	f := NewFilter("U1")
	if f.Qualifies(noteEvent("note", "U2", "http://a/1.png")) {
		t.Error("note from another author should not qualify")
	}
}

func TestQualifies_WrongType(t *testing.T) {
	f := NewFilter("U1")
	if f.Qualifies(noteEvent("renote", "U1", "http://a/1.png")) {
		t.Error("non-note event should not qualify")
	}
	if f.Qualifies(domain.ChannelEvent{ChannelID: "X", Type: "note"}) {
		t.Error("note event without payload should not qualify")
	}
}

func TestQualifies_Match(t *testing.T) {
	f := NewFilter("U1")
	if !f.Qualifies(noteEvent("note", "U1", "http://a/1.png", "http://a/2.png")) {
		t.Error("expected note to qualify")
	}
}

func TestFormat_Scenario(t *testing.T) {
	f := NewFormatter(FormatterConfig{Host: "misskey.io"})
	ev := noteEvent("note", "U1", "http://a/1.png", "http://a/2.png")

	got := f.Format(ev.Note)
	want := "[note](https://misskey.io/notes/abc123)\n[1枚目](http://a/1.png)\n[2枚目](http://a/2.png)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormat_LineCountAndOrder(t *testing.T) {
	f := NewFormatter(FormatterConfig{Host: "example.com", AttachmentLabel: "file %d"})
	urls := []string{"u1", "u2", "u3", "u4", "u5"}
	ev := noteEvent("note", "U1", urls...)

	lines := strings.Split(f.Format(ev.Note), "\n")
	if len(lines) != len(urls)+1 {
		t.Fatalf("expected %d lines, got %d", len(urls)+1, len(lines))
	}
	if lines[0] != "[note](https://example.com/notes/abc123)" {
		t.Errorf("unexpected permalink line: %s", lines[0])
	}
	for i, u := range urls {
		want := "[file " + string(rune('1'+i)) + "](" + u + ")"
		if lines[i+1] != want {
			t.Errorf("line %d: got %q, want %q", i+1, lines[i+1], want)
		}
	}
}

func TestFormat_Idempotent(t *testing.T) {
	f := NewFormatter(FormatterConfig{Host: "misskey.io"})
	ev := noteEvent("note", "U1", "http://a/1.png")
	if f.Format(ev.Note) != f.Format(ev.Note) {
		t.Error("formatting the same note twice should be identical")
	}
}
