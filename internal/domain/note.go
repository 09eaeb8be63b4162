package domain

// NoteType is the inner channel event type that carries a note.
const NoteType = "note"

// File is a drive file attached to a note.
type File struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"` // MIME type
	URL  string `json:"url"`
}

// Note is a single post received over the stream.
type Note struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	URI    string `json:"uri,omitempty"` // set for notes federated from a remote server
	Text   string `json:"text,omitempty"`
	Files  []File `json:"files"`
}

// ChannelEvent is a decoded stream frame addressed to a channel subscription.
// Note is non-nil only when Type is NoteType.
type ChannelEvent struct {
	ChannelID string
	Type      string
	Note      *Note
}
