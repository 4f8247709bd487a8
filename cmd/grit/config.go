package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/remote"
)

// Config is the user-level configuration read from config.toml.
//
//	[user]
//	name = "A U Thor"
//	email = "author@example.com"
//
//	[http]
//	timeout = "5s"
//	max_attempts = 3
//
//	[log]
//	level = "info"
type Config struct {
	User UserConfig `toml:"user"`
	HTTP HTTPConfig `toml:"http"`
	Log  LogConfig  `toml:"log"`
}

type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type HTTPConfig struct {
	Timeout     duration `toml:"timeout"`
	MaxAttempts int      `toml:"max_attempts"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// duration decodes TOML strings such as "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	d.Duration = v
	return nil
}

func defaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{Timeout: duration{5 * time.Second}, MaxAttempts: 1},
		Log:  LogConfig{Level: "warn"},
	}
}

// defaultConfigPath returns $XDG_CONFIG_HOME/grit/config.toml, falling
// back to the platform user config directory.
func defaultConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return ""
		}
		base = dir
	}
	return filepath.Join(base, "grit", "config.toml")
}

// loadConfig reads path over the defaults. An empty path means the default
// location, which may be absent; an explicit path must exist. Unknown keys
// are rejected so typos do not pass silently.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return defaultConfig(), nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if cfg.HTTP.MaxAttempts < 1 {
		cfg.HTTP.MaxAttempts = 1
	}
	return cfg, nil
}

// identity returns the signature used for new commits. GIT_AUTHOR_NAME and
// GIT_AUTHOR_EMAIL override the config file.
func (c Config) identity(when time.Time) (object.Signature, error) {
	sig := object.Signature{Name: c.User.Name, Email: c.User.Email, When: when}
	if v := os.Getenv("GIT_AUTHOR_NAME"); v != "" {
		sig.Name = v
	}
	if v := os.Getenv("GIT_AUTHOR_EMAIL"); v != "" {
		sig.Email = v
	}
	if strings.TrimSpace(sig.Name) == "" || strings.TrimSpace(sig.Email) == "" {
		return object.Signature{}, fmt.Errorf("author identity unknown: set user.name and user.email in %s", defaultConfigPath())
	}
	if strings.ContainsAny(sig.Name+sig.Email, "<>\n") {
		return object.Signature{}, fmt.Errorf("invalid author identity %q <%s>", sig.Name, sig.Email)
	}
	return sig, nil
}

func (c Config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

func (c Config) httpOptions(logger *slog.Logger) remote.HTTPOptions {
	return remote.HTTPOptions{
		Timeout:     c.HTTP.Timeout.Duration,
		MaxAttempts: c.HTTP.MaxAttempts,
		UserAgent:   "git/grit-" + version,
		Logger:      logger,
	}
}
