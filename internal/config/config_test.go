package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.URL != "" || cfg.Username != "" {
		t.Errorf("unexpected remote settings in defaults: %+v", cfg)
	}
	if cfg.TagAliases == nil {
		t.Error("TagAliases not initialized")
	}
	if cfg.LogLevel == "" {
		t.Error("LogLevel not defaulted")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	cfg.URL = "https://cal.example.com"
	cfg.Username = "alice"
	cfg.HideCompleted = true
	cfg.DefaultCalendar = "remote/work/"
	cfg.HiddenCalendars = []string{"remote/spam/"}
	cfg.TagAliases = map[string][]string{"er": {"errand", "urgent"}}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.URL != cfg.URL || loaded.Username != cfg.Username {
		t.Errorf("remote settings lost: %+v", loaded)
	}
	if !loaded.HideCompleted || loaded.DefaultCalendar != "remote/work/" {
		t.Errorf("view settings lost: %+v", loaded)
	}
	if !loaded.CalendarHidden("remote/spam/") {
		t.Error("hidden calendars lost")
	}
	if len(loaded.TagAliases["er"]) != 2 {
		t.Errorf("aliases lost: %v", loaded.TagAliases)
	}
}

func TestConfigFilePermissions(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := LoadFrom(dir)
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config.yaml mode = %o, want 0600", perm)
	}
}

func TestSetCalendarHidden(t *testing.T) {
	cfg := &Config{}

	cfg.SetCalendarHidden("a", true)
	cfg.SetCalendarHidden("a", true) // no duplicates
	cfg.SetCalendarHidden("b", true)
	if len(cfg.HiddenCalendars) != 2 {
		t.Fatalf("HiddenCalendars = %v", cfg.HiddenCalendars)
	}

	cfg.SetCalendarHidden("a", false)
	if cfg.CalendarHidden("a") || !cfg.CalendarHidden("b") {
		t.Errorf("HiddenCalendars = %v after unhide", cfg.HiddenCalendars)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := LoadFrom(dir)

	if cfg.HasPassword() {
		t.Error("HasPassword true before setting one")
	}
	if err := cfg.SetPassword("s3cret"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if !cfg.HasPassword() {
		t.Error("HasPassword false after setting one")
	}

	got, err := cfg.Password()
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Password = %q, want %q", got, "s3cret")
	}
}

func TestPasswordNeverStoredPlaintext(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := LoadFrom(dir)

	const secret = "hunter2-plaintext"
	if err := cfg.SetPassword(secret); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.Contains(string(data), secret) {
		t.Error("plaintext password found in config file")
	}

	// The sealed credential survives a reload against the same machine key.
	loaded, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got, err := loaded.Password()
	if err != nil {
		t.Fatalf("Password after reload failed: %v", err)
	}
	if got != secret {
		t.Errorf("Password = %q after reload, want %q", got, secret)
	}
}

func TestClearPassword(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := LoadFrom(dir)

	if err := cfg.SetPassword("something"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := cfg.SetPassword(""); err != nil {
		t.Fatalf("clearing password failed: %v", err)
	}
	if cfg.HasPassword() {
		t.Error("HasPassword true after clearing")
	}
	got, err := cfg.Password()
	if err != nil || got != "" {
		t.Errorf("Password = %q, %v after clearing", got, err)
	}
}

func TestPasswordWrongMachineKeyFails(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := LoadFrom(dir)
	if err := cfg.SetPassword("s3cret"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Losing the machine key makes the sealed credential unreadable
	// rather than silently wrong.
	if err := os.Remove(filepath.Join(dir, "credentials.key")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	loaded, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, err := loaded.Password(); err == nil {
		t.Error("Password succeeded with a regenerated machine key")
	}
}
