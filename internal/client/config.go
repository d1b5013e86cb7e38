package client

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/VinMeld/complaint-portal/internal/transport"
)

const stateFileName = "state.json"

type Config struct {
	ServerURL     string `json:"server_url"`
	ViewportWidth int    `json:"viewport_width"`
	StateFile     string `json:"state_file,omitempty"` // Defaults to state.json next to the config
	CaptchaImage  string `json:"captcha_image,omitempty"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				ServerURL:     transport.DefaultServerURL,
				ViewportWidth: DefaultViewportWidth,
			}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = transport.DefaultServerURL
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = DefaultViewportWidth
	}
	return &cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "complaint-portal", "config.json"), nil
}

// StatePath returns where the form state for configPath is kept.
func (c *Config) StatePath(configPath string) string {
	if c.StateFile != "" {
		return c.StateFile
	}
	return filepath.Join(filepath.Dir(configPath), stateFileName)
}
