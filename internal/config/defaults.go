package config

import "time"

func Defaults() *Config {
	return &Config{
		Misskey: MisskeyConfig{
			Channel:     "homeTimeline",
			DialTimeout: 15 * time.Second,
		},
		Webhook: WebhookConfig{
			Kind:    "webhook",
			Timeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			Interval:         time.Second,
			IdleWait:         5 * time.Second,
			ReconnectOnIdle:  false,
			ReconnectOnClose: true,
		},
		Format: FormatConfig{
			NoteLabel:       "note",
			AttachmentLabel: "%d枚目",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
