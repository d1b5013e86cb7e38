package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(setServerCmd)

	configInitCmd.Flags().String("server", "", "API base URL")
	configInitCmd.Flags().Int("viewport", 0, "Viewport width used for attachment display names")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if width, _ := cmd.Flags().GetInt("viewport"); width > 0 {
			cfg.ViewportWidth = width
		}

		if err := SaveConfigGlobal(); err != nil {
			fmt.Println("Error saving config:", err)
			return
		}
		fmt.Printf("Server URL: %s\n", cfg.ServerURL)
		fmt.Printf("Viewport width: %d\n", cfg.ViewportWidth)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration and form state paths",
	Run: func(cmd *cobra.Command, args []string) {
		path, err := configPath()
		if err != nil {
			fmt.Println("Error getting config path:", err)
			return
		}
		fmt.Println("Config:", path)
		fmt.Println("State: ", cfg.StatePath(path))
	},
}

var setServerCmd = &cobra.Command{
	Use:   "set-server <url>",
	Short: "Set the API base URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg.ServerURL = args[0]
		if err := SaveConfigGlobal(); err != nil {
			fmt.Println("Error saving config:", err)
			return
		}
		fmt.Printf("Server URL set to %s\n", cfg.ServerURL)
	},
}
