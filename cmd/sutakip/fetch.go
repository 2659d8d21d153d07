package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sutakip/sutakip/internal/domain"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh cycle and print a per-city summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.refresher.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		printSummary(cmd.OutOrStdout(), records, a.store.Path())
		return nil
	},
}

// printSummary writes the record count of every known city, then the total.
// Records of unknown cities only contribute to the total.
func printSummary(w io.Writer, records []domain.Record, path string) {
	counts := make(map[string]int, len(domain.Cities))
	for _, r := range records {
		counts[r.City]++
	}
	for _, city := range domain.Cities {
		fmt.Fprintf(w, "  %-10s %4d\n", city, counts[city])
	}
	fmt.Fprintf(w, "  %-10s %4d\n", "Toplam", len(records))
	fmt.Fprintf(w, "\nSnapshot written to %s\n", path)
}
