package note

import (
	"fmt"
	"strings"

	"misskeyrelay/internal/domain"
	"misskeyrelay/internal/misskey"
)

const (
	DefaultNoteLabel       = "note"
	DefaultAttachmentLabel = "%d枚目"
)

// FormatterConfig configures the delivery text.
type FormatterConfig struct {
	Host            string // misskey host used for permalinks
	NoteLabel       string
	AttachmentLabel string // fmt verb receives the 1-based attachment index
}

// Formatter renders a note as a markdown permalink followed by one link per
// attachment.
type Formatter struct {
	host            string
	noteLabel       string
	attachmentLabel string
}

func NewFormatter(cfg FormatterConfig) *Formatter {
	if cfg.NoteLabel == "" {
		cfg.NoteLabel = DefaultNoteLabel
	}
	if cfg.AttachmentLabel == "" {
		cfg.AttachmentLabel = DefaultAttachmentLabel
	}
	return &Formatter{
		host:            cfg.Host,
		noteLabel:       cfg.NoteLabel,
		attachmentLabel: cfg.AttachmentLabel,
	}
}

// Format returns "[note](permalink)" and "[N枚目](url)" lines joined by "\n".
func (f *Formatter) Format(n *domain.Note) string {
	lines := make([]string, 0, len(n.Files)+1)
	lines = append(lines, link(f.noteLabel, misskey.NoteURL(f.host, n.ID)))
	for i, file := range n.Files {
		lines = append(lines, link(fmt.Sprintf(f.attachmentLabel, i+1), file.URL))
	}
	return strings.Join(lines, "\n")
}

func link(label, url string) string {
	return "[" + label + "](" + url + ")"
}
