package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the collection pipeline on the configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run the pipeline exactly once",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := getApp().Once(cmd.Context())
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Fprintln(cmd.OutOrStdout(), "run skipped: lock held by another process")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: price %s, change %s, spike %t\n",
			res.RunID, res.Observation.Price().String(), res.Alert.ChangePct(), res.Alert.Triggered)
		return nil
	},
}
