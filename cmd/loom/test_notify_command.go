package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
	"loom/internal/notifications"
)

type notifyTestResult struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Long: "Send a test notification to the configured ntfy topic. Goes through\n" +
			"the daemon when it is running and sends directly otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runNotificationTest(cmd, ctx)
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, result)
			}

			stdout := cmd.OutOrStdout()
			if result.Sent {
				fmt.Fprintln(stdout, "Test notification sent")
				return nil
			}
			message := result.Message
			if message == "" {
				message = "unknown reason"
			}
			fmt.Fprintf(stdout, "Notification not sent: %s\n", message)
			return nil
		},
	}
}

func runNotificationTest(cmd *cobra.Command, ctx *commandContext) (notifyTestResult, error) {
	client, err := ipc.Dial(ctx.socketPath())
	if err == nil {
		defer client.Close()
		resp, callErr := client.TestNotification()
		if callErr != nil {
			return notifyTestResult{}, callErr
		}
		return notifyTestResult{Sent: resp.Sent, Message: resp.Message}, nil
	}

	cfg, cfgErr := ctx.ensureConfig()
	if cfgErr != nil {
		return notifyTestResult{}, cfgErr
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return notifyTestResult{Message: "ntfy topic not configured"}, nil
	}
	if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
		return notifyTestResult{}, err
	}
	return notifyTestResult{Sent: true, Message: "test notification sent"}, nil
}
