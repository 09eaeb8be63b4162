// Package note decides which notes are relayed and renders them into the
// text delivered to the webhook.
package note

import "misskeyrelay/internal/domain"

// Filter matches notes with attachments posted by a single author.
type Filter struct {
	targetUserID string
}

// NewFilter creates a filter for notes authored by targetUserID.
func NewFilter(targetUserID string) *Filter {
	return &Filter{targetUserID: targetUserID}
}

// Qualifies reports whether ev is a note with at least one attachment from
// the target author. Channel correlation is the caller's job.
func (f *Filter) Qualifies(ev domain.ChannelEvent) bool {
	if ev.Type != domain.NoteType || ev.Note == nil {
		return false
	}
	if len(ev.Note.Files) == 0 {
		return false
	}
	return ev.Note.UserID == f.targetUserID
}
