package cli

import (
	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var (
	exportPNGPath     string
	exportCSVPath     string
	exportHTMLPath    string
	exportParquetPath string
	exportMaxPoints   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the price history with its moving average",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath:     exportCSVPath,
			PNGPath:     exportPNGPath,
			HTMLPath:    exportHTMLPath,
			ParquetPath: exportParquetPath,
			MaxPoints:   exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportHTMLPath, "html", "", "Path to write interactive HTML chart")
	exportCmd.Flags().StringVar(&exportParquetPath, "parquet", "", "Path to write Parquet data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
