package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dutycal/internal/duty"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshCron != defaultRefresh || cfg.ArchiveAfter != defaultArchiveAfter {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoadReadsFileAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `input_calendar_url: https://roster.example.com/ics?token=abc
timezone: Europe/Berlin
archive_after: 48h
reminders:
  flight: [2h, 30m]
  standby: []
publish:
  s3:
    bucket: calendars
    key: duty.ics
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" || cfg.ArchiveAfter != 48*time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CalendarName != "Duty Plan" {
		t.Errorf("calendar name = %q", cfg.CalendarName)
	}
	if cfg.Publish.S3 == nil || cfg.Publish.S3.Bucket != "calendars" {
		t.Errorf("publish = %+v", cfg.Publish)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	policy, err := cfg.ReminderPolicy()
	if err != nil {
		t.Fatalf("ReminderPolicy: %v", err)
	}
	got := policy.RemindersFor(duty.Flight{})
	if len(got) != 2 || got[0].Offset != 2*time.Hour || got[1].Offset != 30*time.Minute {
		t.Errorf("flight reminders = %+v", got)
	}
	if got := policy.RemindersFor(duty.Standby{}); len(got) != 0 {
		t.Errorf("standby reminders = %+v, want none", got)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("input_calendar_url: https://file.example.com/a.ics\nlisten: 127.0.0.1:8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvInputURL, "https://env.example.com/b.ics")
	t.Setenv(EnvOutputPath, "/srv/duty.ics")
	t.Setenv(EnvWorkers, "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InputCalendarURL != "https://env.example.com/b.ics" {
		t.Errorf("input url = %q", cfg.InputCalendarURL)
	}
	if cfg.OutputCalendarPath != "/srv/duty.ics" || cfg.Workers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Listen != "127.0.0.1:8080" {
		t.Errorf("listen = %q", cfg.Listen)
	}
}

func TestEnvWorkersInvalid(t *testing.T) {
	t.Setenv(EnvWorkers, "many")
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"missing url", func(c *Config) { c.InputCalendarURL = "" }, "input_calendar_url"},
		{"bad cron", func(c *Config) { c.RefreshCron = "every minute" }, "refresh"},
		{"bad airports cron", func(c *Config) { c.Airports.RefreshCron = "* *" }, "airports.refresh"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"unknown reminder kind", func(c *Config) {
			c.Reminders = map[string][]time.Duration{"lunch": {time.Hour}}
		}, "reminders"},
		{"negative reminder", func(c *Config) {
			c.Reminders = map[string][]time.Duration{"flight": {-time.Hour}}
		}, "reminders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.InputCalendarURL = "https://roster.example.com/a.ics"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.InputCalendarURL = "https://roster.example.com/a.ics"
	cfg.Reminders = map[string][]time.Duration{"pickup": {45 * time.Minute}}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.InputCalendarURL != cfg.InputCalendarURL {
		t.Errorf("input url = %q", loaded.InputCalendarURL)
	}
	if got := loaded.Reminders["pickup"]; len(got) != 1 || got[0] != 45*time.Minute {
		t.Errorf("pickup reminders = %v", got)
	}
}
