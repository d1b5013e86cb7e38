package client

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *Config
)

var rootCmd = &cobra.Command{
	Use:   "complaint",
	Short: "Fill in and submit a public complaint step by step",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/complaint-portal/config.json)")
}

func initConfig() {
	var err error
	path := cfgFile
	if path == "" {
		path, err = GetConfigPath()
		if err != nil {
			fmt.Println("Error getting config path:", err)
			os.Exit(1)
		}
	}

	cfg, err = LoadConfig(path)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func GetConfig() *Config {
	return cfg
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return GetConfigPath()
}

func SaveConfigGlobal() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return SaveConfig(path, cfg)
}

func statePath() (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	return cfg.StatePath(path), nil
}

// loadStateGlobal reads the form state that belongs to the active config.
func loadStateGlobal() (*FormState, error) {
	path, err := statePath()
	if err != nil {
		return nil, err
	}
	return LoadState(path)
}

func saveStateGlobal(st *FormState) error {
	path, err := statePath()
	if err != nil {
		return err
	}
	return SaveState(path, st)
}

func apiClient() *APIClient {
	return NewAPIClient(cfg.ServerURL)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
