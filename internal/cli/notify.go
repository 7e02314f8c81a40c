package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a test message through every enabled alert channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getApp().NotifyTest(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "test notification sent")
		return nil
	},
}
