package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrConfigKeyNotFound is returned by ConfigGet for an unset key.
var ErrConfigKeyNotFound = errors.New("config key not found")

func (r *Repo) configPath() string {
	return filepath.Join(r.GitDir, "config")
}

// ReadConfig loads .git/config. A missing file yields an empty config.
func (r *Repo) ReadConfig() (*ini.File, error) {
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ini.Empty(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// WriteConfig atomically writes .git/config.
func (r *Repo) WriteConfig(cfg *ini.File) error {
	tmp, err := os.CreateTemp(r.GitDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := cfg.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

func (r *Repo) writeDefaultConfig() error {
	cfg := ini.Empty()
	core := cfg.Section("core")
	core.Key("repositoryformatversion").SetValue("0")
	core.Key("filemode").SetValue("true")
	core.Key("bare").SetValue("false")
	return r.WriteConfig(cfg)
}

// splitConfigKey maps a dotted key to an ini section and key name:
// "user.name" is key name in [user]; "remote.origin.url" is key url in
// [remote "origin"].
func splitConfigKey(key string) (section, name string, err error) {
	first, rest, ok := strings.Cut(key, ".")
	if !ok || first == "" || rest == "" {
		return "", "", fmt.Errorf("invalid config key: %s", key)
	}
	dot := strings.LastIndexByte(rest, '.')
	if dot < 0 {
		return first, rest, nil
	}
	sub, name := rest[:dot], rest[dot+1:]
	if sub == "" || name == "" {
		return "", "", fmt.Errorf("invalid config key: %s", key)
	}
	return fmt.Sprintf("%s %q", first, sub), name, nil
}

// ConfigGet returns the value of a dotted key such as "user.name".
func (r *Repo) ConfigGet(key string) (string, error) {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return "", err
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	sec, err := cfg.GetSection(section)
	if err != nil || !sec.HasKey(name) {
		return "", fmt.Errorf("%w: %s", ErrConfigKeyNotFound, key)
	}
	return sec.Key(name).String(), nil
}

// ConfigSet stores value under a dotted key, creating the section as
// needed.
func (r *Repo) ConfigSet(key, value string) error {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return err
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Section(section).Key(name).SetValue(value)
	return r.WriteConfig(cfg)
}

// SetRemote stores/updates a named remote URL and its default fetch
// refspec.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set remote: remote name is required")
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("set remote: remote URL is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	sec := cfg.Section(fmt.Sprintf("remote %q", name))
	sec.Key("url").SetValue(remoteURL)
	sec.Key("fetch").SetValue(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name))
	return r.WriteConfig(cfg)
}

// RemoteURL returns the configured URL for the given remote name.
func (r *Repo) RemoteURL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("remote name is required")
	}
	url, err := r.ConfigGet("remote." + name + ".url")
	if err != nil || strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("remote %q is not configured", name)
	}
	return url, nil
}

// SetBranchUpstream records that branch tracks the same-named branch of
// remote.
func (r *Repo) SetBranchUpstream(branch, remote string) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	sec := cfg.Section(fmt.Sprintf("branch %q", branch))
	sec.Key("remote").SetValue(remote)
	sec.Key("merge").SetValue("refs/heads/" + branch)
	return r.WriteConfig(cfg)
}
