package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/atila/internal/notify"
)

func newDigestCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
		topN       int
		send       bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print or send a project's worklist digest",
		Long: `Builds a digest of the first open tickets of a project. With --send the
digest is posted to every configured Slack and Discord webhook.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, configPath, projectID, topN, send)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().UintVar(&projectID, "project", 0, "project id (required)")
	cmd.Flags().IntVarP(&topN, "top", "n", 0, "number of tickets (default notify.top_n)")
	cmd.Flags().BoolVar(&send, "send", false, "post to configured webhooks")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runDigest(cmd *cobra.Command, configPath string, projectID uint, topN int, send bool) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.log.Sync()
	if topN <= 0 {
		topN = a.cfg.Notify.TopN
	}

	ctx := context.Background()
	msg, err := notify.ProjectDigest(ctx, a.svc, projectID, topN)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, msg.Title)
	fmt.Fprintln(out, msg.Body)
	if !send {
		return nil
	}

	senders, err := notify.FromConfig(a.cfg.Notify)
	if err != nil {
		return err
	}
	if len(senders) == 0 {
		return fmt.Errorf("no webhooks configured (notify.slack_webhook, notify.discord_webhook)")
	}
	if err := notify.Broadcast(ctx, senders, msg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent to %d destinations\n", len(senders))
	return nil
}
