// Package misskey holds the Misskey streaming API wire format: endpoint and
// permalink construction, the channel connect message, and decoding of
// inbound frames into typed events.
package misskey

import (
	"encoding/json"
	"net/url"
)

// DefaultChannel is the timeline channel the relay subscribes to.
const DefaultChannel = "homeTimeline"

// StreamURL builds the streaming endpoint for host, authenticated with token.
func StreamURL(scheme, host, token string) string {
	if scheme == "" {
		scheme = "wss"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     "/streaming",
		RawQuery: url.Values{"i": {token}}.Encode(),
	}
	return u.String()
}

// NoteURL returns the web permalink of a note on host.
func NoteURL(host, noteID string) string {
	return "https://" + host + "/notes/" + noteID
}

// ConnectMessage subscribes to a channel under a client-chosen id.
type ConnectMessage struct {
	Type string      `json:"type"`
	Body ConnectBody `json:"body"`
}

type ConnectBody struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
}

// NewConnectMessage returns the "connect" control message for channel.
func NewConnectMessage(channel, id string) ConnectMessage {
	if channel == "" {
		channel = DefaultChannel
	}
	return ConnectMessage{
		Type: "connect",
		Body: ConnectBody{Channel: channel, ID: id},
	}
}

// envelope is the outer frame shape: {"type":"channel","body":{...}}.
type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// channelBody is the body of a "channel" frame.
type channelBody struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}
