package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `
[Production]
SaveFileFolder = "/srv/complaints/uploads"
LocalSQL = "file:/srv/complaints/main.db"
SurveySQLConnectionString = "file:/srv/complaints/survey.db"
EmailList = ["ops@court.example", "security@court.example"]
UIOrigin = "https://complaints.court.example"
CaptchaStore = "badger"
CaptchaDir = "/srv/complaints/captcha"
MaxFiles = 5

[Staging]
SaveFileFolder = "/tmp/uploads"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "appsettings.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSelectsSection(t *testing.T) {
	t.Setenv("ServerIdentity", "Production")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SaveFileFolder != "/srv/complaints/uploads" {
		t.Errorf("SaveFileFolder = %q", cfg.SaveFileFolder)
	}
	if len(cfg.EmailList) != 2 {
		t.Errorf("EmailList = %v", cfg.EmailList)
	}
	if cfg.MaxFiles != 5 || cfg.CaptchaStore != "badger" {
		t.Errorf("unexpected settings: %+v", cfg.Settings)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", cfg.Warnings)
	}
}

func TestLoadFallsBackWithWarnings(t *testing.T) {
	t.Setenv("ServerIdentity", "Staging")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SaveFileFolder != "/tmp/uploads" {
		t.Errorf("SaveFileFolder = %q", cfg.SaveFileFolder)
	}
	if cfg.LocalSQL != defaultLocalSQL || cfg.MaxFiles != defaultMaxFiles {
		t.Errorf("defaults not applied: %+v", cfg.Settings)
	}
	joined := strings.Join(cfg.Warnings, "\n")
	if !strings.Contains(joined, "LocalSQL not configured") {
		t.Errorf("missing LocalSQL warning in %v", cfg.Warnings)
	}
}

func TestLoadMissingFileAndSection(t *testing.T) {
	t.Setenv("ServerIdentity", "Nowhere")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.HasSuffix(cfg.SaveFileFolder, "Uploads") {
		t.Errorf("SaveFileFolder default = %q", cfg.SaveFileFolder)
	}
	if !strings.Contains(cfg.Warnings[0], "not found") {
		t.Errorf("expected not-found warning first, got %v", cfg.Warnings)
	}

	cfg, err = Load(writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cfg.Warnings[0], `section "Nowhere"`) {
		t.Errorf("expected section warning, got %v", cfg.Warnings)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ServerIdentity", "Production")
	t.Setenv("SMTP_PASSWORD", "from-env")
	t.Setenv("PORT", "8088")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SMTPPassword != "from-env" {
		t.Errorf("SMTPPassword = %q", cfg.SMTPPassword)
	}
	if cfg.ListenAddr != ":8088" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ServerIdentity", "Bad")
	_, err := Load(writeConfig(t, "[Bad]\nCaptchaStore = \"redis\"\n"))
	if err == nil {
		t.Fatal("expected error for unsupported captcha store")
	}
	_, err = Load(writeConfig(t, "[Bad]\nCaptchaStore = \"badger\"\n"))
	if err == nil {
		t.Fatal("expected error for badger without dir")
	}
}
