package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"misskeyrelay/internal/delivery"
	"misskeyrelay/internal/stream"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	var dial bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the relay configuration",
		Long: `Verifies that the required secrets are set, the Misskey host resolves,
and the webhook sink can be built. With --dial it also opens a streaming
connection and subscribes once. No webhook message is sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("misskeyrelay doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config loads and validates
			cfg, err := loadConfig()
			if err != nil {
				printFail("Config", err.Error())
				fmt.Printf("\n0 passed, 1 failed\n")
				return fmt.Errorf("config invalid")
			}
			printPass("Config", "valid")
			passed++

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()

			// 2. Host resolves
			if addrs, err := net.DefaultResolver.LookupHost(ctx, cfg.Misskey.Host); err != nil {
				printFail("Misskey host", err.Error())
				failed++
			} else {
				printPass("Misskey host", fmt.Sprintf("%s (%d addresses)", cfg.Misskey.Host, len(addrs)))
				passed++
			}

			// 3. Webhook sink
			sink, err := delivery.NewSink(delivery.SinkConfig{
				Kind:    cfg.Webhook.Kind,
				URL:     cfg.Webhook.URL,
				Timeout: cfg.Webhook.Timeout,
			})
			if err != nil {
				printFail("Webhook", err.Error())
				failed++
			} else {
				printPass("Webhook", sink.Name())
				passed++
			}

			// 4. Streaming handshake
			if dial {
				conn, err := stream.NewManager(stream.Config{
					Host:           cfg.Misskey.Host,
					Token:          cfg.Misskey.Token,
					Channel:        cfg.Misskey.Channel,
					SubscriptionID: cfg.Misskey.SubscriptionID,
					DialTimeout:    cfg.Misskey.DialTimeout,
					Logger:         logger,
				}).Connect(ctx)
				if err != nil {
					printFail("Streaming API", err.Error())
					failed++
				} else {
					conn.Close()
					printPass("Streaming API", "connected and subscribed to "+cfg.Misskey.Channel)
					passed++
				}
			} else {
				printWarn("Streaming API", "not dialed (use --dial)")
				warned++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dial, "dial", false, "open a streaming connection as part of the checks")
	return cmd
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
