package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var (
	importCSVPath string
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Append rows of a price,timestamp CSV file to the history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importCSVPath == "" {
			return fmt.Errorf("--csv must be provided")
		}

		res, err := getApp().Import(cmd.Context(), app.ImportOptions{
			CSVPath: importCSVPath,
			DryRun:  importDryRun,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "read %d, imported %d, rejected %d\n", res.Read, res.Imported, res.Rejected)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "CSV file with price,timestamp rows")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate rows without writing to storage")
}
