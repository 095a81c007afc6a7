package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagSTUN   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "streeem",
	Short: "Watch together over direct peer connections",
	Long: `Streeem coordinates real-time watch parties: clients discover each
other inside a named room, negotiate direct peer media connections, and keep
a shared playback clock in sync.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "signaling server base URL")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(watchCmd)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
