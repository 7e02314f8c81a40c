package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateValues string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Analyse a synthetic price history and dispatch any alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseValues(simulateValues)
		if err != nil {
			return err
		}

		res, err := getApp().SimulateAlert(cmd.Context(), values)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "change %s, spike %t\n", res.Alert.ChangePct(), res.Alert.Triggered)
		return nil
	},
}

func parseValues(raw string) ([]decimal.Decimal, error) {
	var values []decimal.Decimal
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("invalid --values entry %q: %w", part, err)
		}
		values = append(values, d)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("--values must list at least one price")
	}
	return values, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simulateValues, "values", "100,100,112", "Comma-separated prices, oldest first; the last is treated as the fetched quote")
}
