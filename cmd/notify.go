package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukman83/pricewatch/internal/notify"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a test message through every configured notifier",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	n, ok := buildNotifier().(notify.Tester)
	if !ok {
		return fmt.Errorf("notifier cannot send test messages")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := n.SendTest(ctx); err != nil {
		return fmt.Errorf("test notification failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent.")
	return nil
}
