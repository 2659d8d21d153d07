// Command sutakip collects water-interruption announcements for İzmir, Ankara
// and İstanbul and serves them as a single JSON snapshot.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sutakip",
	Short: "Water interruption tracker",
	Long: `sutakip scrapes the water utilities of İzmir, Ankara and İstanbul,
normalizes their announcements into one record format and serves the latest
snapshot over HTTP.

Configuration is read from environment variables (see README).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, agentCmd, fetchCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
