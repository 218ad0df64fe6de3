package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/packhost/packhost/core/infra/bus"
	"github.com/packhost/packhost/core/packs"
)

var (
	natsURL string
	timeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "packhostctl",
		Short:         "Operate a running packhost",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&natsURL, "nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(reloadCmd(), statusCmd(), digestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload [tenant]",
		Short: "Reload packs from the index, for all tenants or one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			payload := map[string]string{}
			if len(args) == 1 {
				payload["tenant"] = args[0]
			}
			return request(bus.SubjectReload, payload)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-tenant reconcile status",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return request(bus.SubjectStatus, struct{}{})
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <file>",
		Short: "Print the digest of a pack artifact, for index entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(packs.ComputeDigest(data))
			return nil
		},
	}
}

func request(subject string, payload any) error {
	b, err := bus.NewNatsBus(natsURL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", natsURL, err)
	}
	defer b.Close()

	reply, err := b.Request(subject, payload, timeout)
	if err != nil {
		return err
	}
	var pretty any
	if err := json.Unmarshal(reply, &pretty); err != nil {
		fmt.Println(string(reply))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
