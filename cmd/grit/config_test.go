package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeTestFile(t, path, `
[user]
name = "A U Thor"
email = "author@example.com"

[http]
timeout = "30s"
max_attempts = 4

[log]
level = "debug"
`, 0o644)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.User.Name != "A U Thor" || cfg.User.Email != "author@example.com" {
		t.Fatalf("user = %+v", cfg.User)
	}
	if cfg.HTTP.Timeout.Duration != 30*time.Second || cfg.HTTP.MaxAttempts != 4 {
		t.Fatalf("http = %+v", cfg.HTTP)
	}
	level, err := cfg.logLevel()
	if err != nil || level != slog.LevelDebug {
		t.Fatalf("logLevel = (%v, %v)", level, err)
	}

	opts := cfg.httpOptions(nil)
	if opts.Timeout != 30*time.Second || opts.MaxAttempts != 4 {
		t.Fatalf("httpOptions = %+v", opts)
	}
}

func TestLoadConfigDefaultsWhenAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTP.Timeout.Duration != 5*time.Second || cfg.HTTP.MaxAttempts != 1 {
		t.Fatalf("defaults = %+v", cfg.HTTP)
	}
}

func TestLoadConfigDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	writeTestFile(t, filepath.Join(home, "grit", "config.toml"), "[user]\nname = \"X\"\n", 0o644)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.User.Name != "X" {
		t.Fatalf("user.name = %q, want X", cfg.User.Name)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[user]\nnmae = \"typo\"\n", "unknown keys user.nmae"},
		{"bad duration", "[http]\ntimeout = \"soon\"\n", "soon"},
		{"negative duration", "[http]\ntimeout = \"-1s\"\n", "negative"},
		{"syntax", "[user\n", "load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".toml")
			writeTestFile(t, path, tt.content, 0o644)
			_, err := loadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("explicit missing config should fail")
	}
}

func TestIdentity(t *testing.T) {
	t.Setenv("GIT_AUTHOR_NAME", "")
	t.Setenv("GIT_AUTHOR_EMAIL", "")
	when := time.Unix(1700000000, 0)

	cfg := Config{User: UserConfig{Name: "A", Email: "a@example.com"}}
	sig, err := cfg.identity(when)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if sig.Name != "A" || sig.Email != "a@example.com" || !sig.When.Equal(when) {
		t.Fatalf("identity = %+v", sig)
	}

	t.Setenv("GIT_AUTHOR_NAME", "Override")
	if sig, _ := cfg.identity(when); sig.Name != "Override" {
		t.Fatalf("env override ignored: %+v", sig)
	}

	t.Setenv("GIT_AUTHOR_NAME", "")
	if _, err := (Config{}).identity(when); err == nil {
		t.Fatal("missing identity should fail")
	}
	bad := Config{User: UserConfig{Name: "Evil <x>", Email: "e@example.com"}}
	if _, err := bad.identity(when); err == nil {
		t.Fatal("identity with angle brackets should fail")
	}
}
