package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
source:
  url: https://polls.example.com/api/polls/42
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval.Duration())
	}
	if cfg.Source.Timeout.Duration() != 10*time.Second {
		t.Errorf("Source.Timeout = %v, want 10s", cfg.Source.Timeout.Duration())
	}
	if cfg.History.Capacity != 2000 {
		t.Errorf("History.Capacity = %d, want 2000", cfg.History.Capacity)
	}
	if cfg.Archive.Path != "votes.csv" {
		t.Errorf("Archive.Path = %q, want votes.csv", cfg.Archive.Path)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
	if len(cfg.Slate) != 0 {
		t.Errorf("Slate = %v, want empty (default slate)", cfg.Slate)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
port: 9090
title: Élection 2025
poll_interval: 15s
source:
  url: https://polls.example.com/api/polls/42
  timeout: 5s
  headers:
    Authorization: Bearer token123
history:
  capacity: 500
archive:
  path: /data/votes.csv
  sync: true
slate:
  - Lise Arena
  - Pr Gauci
log:
  level: debug
  format: text
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Title != "Élection 2025" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.PollInterval.Duration() != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval.Duration())
	}
	if cfg.Source.Timeout.Duration() != 5*time.Second {
		t.Errorf("Source.Timeout = %v, want 5s", cfg.Source.Timeout.Duration())
	}
	if cfg.Source.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Authorization header = %q", cfg.Source.Headers["Authorization"])
	}
	if cfg.History.Capacity != 500 {
		t.Errorf("History.Capacity = %d, want 500", cfg.History.Capacity)
	}
	if cfg.Archive.Path != "/data/votes.csv" || !cfg.Archive.Sync {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if strings.Join(cfg.Slate, ",") != "Lise Arena,Pr Gauci" {
		t.Errorf("Slate = %v", cfg.Slate)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("POLL_ID", "42")
	t.Setenv("POLL_TOKEN", "secret")
	t.Setenv("DATA_DIR", "/var/lib/votewatch")

	yaml := `
source:
  url: https://polls.example.com/api/polls/${POLL_ID}
  headers:
    Authorization: Bearer ${POLL_TOKEN}
archive:
  path: ${DATA_DIR}/votes.csv
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Source.URL != "https://polls.example.com/api/polls/42" {
		t.Errorf("Source.URL = %q", cfg.Source.URL)
	}
	if cfg.Source.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization = %q", cfg.Source.Headers["Authorization"])
	}
	if cfg.Archive.Path != "/var/lib/votewatch/votes.csv" {
		t.Errorf("Archive.Path = %q", cfg.Archive.Path)
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
source:
  url: ${VOTEWATCH_TEST_UNSET_URL:-http://localhost:8081/poll}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Source.URL != "http://localhost:8081/poll" {
		t.Errorf("Source.URL = %q, want default", cfg.Source.URL)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
source:
  url: https://polls.example.com/${VOTEWATCH_TEST_MISSING}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "VOTEWATCH_TEST_MISSING") {
		t.Errorf("error = %v, want mention of missing variable", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing source",
			yaml:    `port: 3000`,
			wantErr: "source.url is required",
		},
		{
			name: "url without scheme",
			yaml: `
source:
  url: polls.example.com/42`,
			wantErr: "must have a scheme",
		},
		{
			name: "url with ftp scheme",
			yaml: `
source:
  url: ftp://polls.example.com/42`,
			wantErr: "scheme must be http or https",
		},
		{
			name: "url without host",
			yaml: `
source:
  url: http:///poll`,
			wantErr: "must include a host",
		},
		{
			name: "port out of range",
			yaml: `
port: 70000
source:
  url: https://example.com`,
			wantErr: "port must be between",
		},
		{
			name: "poll interval too short",
			yaml: `
poll_interval: 500ms
source:
  url: https://example.com`,
			wantErr: "poll_interval must be at least",
		},
		{
			name: "timeout too short",
			yaml: `
source:
  url: https://example.com
  timeout: 100ms`,
			wantErr: "source.timeout must be at least 1s",
		},
		{
			name: "negative timeout",
			yaml: `
source:
  url: https://example.com
  timeout: -5s`,
			wantErr: "cannot be negative",
		},
		{
			name: "negative capacity",
			yaml: `
source:
  url: https://example.com
history:
  capacity: -1`,
			wantErr: "history.capacity must be positive",
		},
		{
			name: "duplicate slate",
			yaml: `
source:
  url: https://example.com
slate: [A, B, A]`,
			wantErr: "duplicate candidate",
		},
		{
			name: "blank slate name",
			yaml: `
source:
  url: https://example.com
slate: ["A", " "]`,
			wantErr: "candidate name is required",
		},
		{
			name: "bad log level",
			yaml: `
source:
  url: https://example.com
log:
  level: loud`,
			wantErr: "log.level",
		},
		{
			name: "bad log format",
			yaml: `
source:
  url: https://example.com
log:
  format: xml`,
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("source: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v", err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
poll_interval: soon
source:
  url: https://example.com
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Parse() error = %v, want invalid duration", err)
	}
}

func TestLoadFS(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "source:\n  url: https://example.com/poll\nport: 4000\n"
	if err := afero.WriteFile(fs, "/etc/votewatch.yaml", []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadFS(fs, "/etc/votewatch.yaml")
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d, want 4000", cfg.Port)
	}
}

func TestLoadFS_MissingFile(t *testing.T) {
	_, err := LoadFS(afero.NewMemMapFs(), "nope.yaml")
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("LoadFS() error = %v, want read error", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != 3000 || cfg.Archive.Path != "votes.csv" {
		t.Errorf("Default() = %+v", cfg)
	}
	// a default config lacks a source until one is supplied
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() on Default() should require a source")
	}
}

func TestLoadEnvAndApply(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("VOTEWATCH_SOURCE_URL", "http://localhost:8081/poll")
	t.Setenv("VOTEWATCH_LOG_LEVEL", "debug")

	o, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	cfg := Default()
	if err := cfg.ApplyEnv(o); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Port != 8088 {
		t.Errorf("Port = %d, want 8088", cfg.Port)
	}
	if cfg.Source.URL != "http://localhost:8081/poll" {
		t.Errorf("Source.URL = %q", cfg.Source.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want untouched json", cfg.Log.Format)
	}
}

func TestLoadEnv_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	if _, err := LoadEnv(); err == nil {
		t.Error("LoadEnv() expected error for non-numeric PORT")
	}
}

func TestApplyEnv_EmptyOverridesKeepFileValues(t *testing.T) {
	cfg, err := Parse([]byte("port: 4000\nsource:\n  url: https://example.com\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := cfg.ApplyEnv(EnvOverrides{}); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Port != 4000 || cfg.Source.URL != "https://example.com" {
		t.Errorf("config changed by empty overrides: %+v", cfg)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"poll_interval: 1s", time.Second, false},
		{"poll_interval: 1m30s", 90 * time.Second, false},
		{"poll_interval: 2h", 2 * time.Hour, false},
		{"poll_interval: 10", 0, true},
		{"poll_interval: fast", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse([]byte(tt.input + "\nsource:\n  url: https://example.com\n"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_FileWithoutSourceUsesEnv(t *testing.T) {
	t.Setenv("VOTEWATCH_SOURCE_URL", "http://localhost:8081/poll")

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "votewatch.yaml", []byte("port: 4000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Resolve(fs, "votewatch.yaml")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d, want 4000 from file", cfg.Port)
	}
	if cfg.Source.URL != "http://localhost:8081/poll" {
		t.Errorf("Source.URL = %q, want value from environment", cfg.Source.URL)
	}
}

func TestResolve_NoFile(t *testing.T) {
	t.Setenv("VOTEWATCH_SOURCE_URL", "https://polls.example.com/api/polls/42")
	t.Setenv("PORT", "3100")

	cfg, err := Resolve(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Port != 3100 {
		t.Errorf("Port = %d, want 3100", cfg.Port)
	}
}

func TestResolve_NoSourceAnywhere(t *testing.T) {
	t.Setenv("VOTEWATCH_SOURCE_URL", "")

	_, err := Resolve(afero.NewMemMapFs(), "")
	if err == nil || !strings.Contains(err.Error(), "source.url is required") {
		t.Errorf("Resolve() error = %v, want missing source", err)
	}
}

func TestResolve_MissingFile(t *testing.T) {
	_, err := Resolve(afero.NewMemMapFs(), "missing.yaml")
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Resolve() error = %v, want read error", err)
	}
}
