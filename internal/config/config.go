// Package config loads the server settings section selected by ServerIdentity.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Settings is one named section of the configuration file.
type Settings struct {
	SaveFileFolder            string   `toml:"SaveFileFolder"`
	LocalSQL                  string   `toml:"LocalSQL"`
	SurveySQLConnectionString string   `toml:"SurveySQLConnectionString"`
	EmailList                 []string `toml:"EmailList"`

	ListenAddr string `toml:"ListenAddr"`
	UIOrigin   string `toml:"UIOrigin"`

	LogDir    string `toml:"LogDir"`
	LogLevel  string `toml:"LogLevel"`
	LogFormat string `toml:"LogFormat"`

	CaptchaStore string `toml:"CaptchaStore"` // memory | badger
	CaptchaDir   string `toml:"CaptchaDir"`

	SMTPHost     string `toml:"SMTPHost"`
	SMTPPort     int    `toml:"SMTPPort"`
	SMTPUsername string `toml:"SMTPUsername"`
	SMTPPassword string `toml:"SMTPPassword"`
	SMTPFrom     string `toml:"SMTPFrom"`

	ArchiveBucket string `toml:"ArchiveBucket"`
	ArchiveRegion string `toml:"ArchiveRegion"`

	MaxFiles int `toml:"MaxFiles"`
}

// Config is the resolved configuration plus any fallbacks that were applied.
type Config struct {
	Identity string
	Settings
	Warnings []string
}

// Load reads .env (optional), picks the section named by $ServerIdentity from
// the TOML file at path and fills anything missing with defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		path = defaultConfigFile
	}

	cfg := &Config{Identity: os.Getenv("ServerIdentity")}

	sections, err := readSections(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg.warn("config file %s not found", path)
	case err != nil:
		return nil, err
	default:
		if s, ok := sections[cfg.Identity]; ok {
			cfg.Settings = s
		} else {
			cfg.warn("config section %q not found in %s", cfg.Identity, path)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readSections(path string) (map[string]Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sections := make(map[string]Settings)
	if err := toml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return sections, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTPPassword = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTPUsername = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("MAX_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxFiles = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.SaveFileFolder == "" {
		wd, _ := os.Getwd()
		c.SaveFileFolder = filepath.Join(wd, "Uploads")
		c.warn("SaveFileFolder not configured. Using default: %s", c.SaveFileFolder)
	}
	if c.LocalSQL == "" {
		c.LocalSQL = defaultLocalSQL
		c.warn("LocalSQL not configured. Using default connection string.")
	}
	if c.SurveySQLConnectionString == "" {
		c.SurveySQLConnectionString = defaultSurveySQL
		c.warn("SurveySQLConnectionString not configured. Using default connection string.")
	}
	if len(c.EmailList) == 0 {
		c.warn("EmailList not configured. /send-email will fail.")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.UIOrigin == "" {
		c.UIOrigin = defaultUIOrigin
	}
	if c.LogDir == "" {
		c.LogDir = defaultLogDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if c.CaptchaStore == "" {
		c.CaptchaStore = defaultCaptchaStore
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = defaultSMTPPort
	}
	if c.SMTPFrom == "" {
		c.SMTPFrom = defaultSMTPFrom
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = defaultMaxFiles
	}
}

// Validate rejects settings that cannot be served.
func (c *Config) Validate() error {
	switch c.CaptchaStore {
	case "memory":
	case "badger":
		if c.CaptchaDir == "" {
			return errors.New("CaptchaDir is required when CaptchaStore is badger")
		}
	default:
		return fmt.Errorf("CaptchaStore: unsupported value %q", c.CaptchaStore)
	}
	return nil
}

func (c *Config) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
