package misskey

import (
	"encoding/json"
	"errors"
	"fmt"

	"misskeyrelay/internal/domain"
)

// ErrMalformed marks a frame that does not have the expected shape.
var ErrMalformed = errors.New("malformed stream event")

// Decode converts a raw text frame into a ChannelEvent. Frames that are not
// channel events (e.g. "noteUpdated", "emojiAdded") decode to an event with
// an empty ChannelID so they never correlate with a subscription.
func Decode(data []byte) (domain.ChannelEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.ChannelEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type != "channel" {
		return domain.ChannelEvent{Type: env.Type}, nil
	}

	var body channelBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return domain.ChannelEvent{}, fmt.Errorf("%w: channel body: %v", ErrMalformed, err)
	}
	ev := domain.ChannelEvent{ChannelID: body.ID, Type: body.Type}
	if body.Type != domain.NoteType {
		return ev, nil
	}

	note, err := decodeNote(body.Body)
	if err != nil {
		return domain.ChannelEvent{}, err
	}
	ev.Note = note
	return ev, nil
}

func decodeNote(raw json.RawMessage) (*domain.Note, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: note body missing", ErrMalformed)
	}
	var n domain.Note
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: note: %v", ErrMalformed, err)
	}
	if n.ID == "" || n.UserID == "" {
		return nil, fmt.Errorf("%w: note missing id or userId", ErrMalformed)
	}
	for i, f := range n.Files {
		if f.URL == "" {
			return nil, fmt.Errorf("%w: note %s file %d has no url", ErrMalformed, n.ID, i)
		}
	}
	return &n, nil
}
