package client

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pingCmd)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the complaint API is up",
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.ServerURL == "" {
			fmt.Println("Server URL not set in config")
			return
		}

		msg, latency, err := apiClient().Ping(commandContext(cmd))
		if err != nil {
			fmt.Printf("%s is unreachable: %v\n", cfg.ServerURL, err)
			return
		}
		fmt.Printf("%s: %s (%v)\n", cfg.ServerURL, msg, latency.Round(time.Millisecond))
	},
}
