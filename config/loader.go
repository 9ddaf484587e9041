package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ProjectConfigFile is the per-repo config file, searched upward from the
// working directory.
const ProjectConfigFile = "ruleforge.yaml"

// userConfigRelPath is the user config location relative to the home dir.
const userConfigRelPath = ".config/ruleforge/config.yaml"

// EnvExtractorAPIKey overrides the extraction backend API key. Secrets stay
// out of config files.
const EnvExtractorAPIKey = "RULEFORGE_EXTRACTOR_API_KEY"

// Loader assembles the effective configuration. Precedence, lowest first:
// built-in defaults, user config, project config, environment.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load resolves the layered configuration and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.mergeFile(cfg, UserConfigPath(), "user")
	if p := findProjectConfig(); p != "" {
		l.mergeFile(cfg, p, "project")
	}

	if key := os.Getenv(EnvExtractorAPIKey); key != "" {
		cfg.Extractor.APIKey = key
	}

	if cfg.Repo.Path == "" {
		cfg.Repo.Path = detectRepoRoot()
		l.logger.Debug("Resolved repo root", slog.String("path", cfg.Repo.Path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile merges one config layer into cfg. A missing file is not an
// error; an unreadable or malformed one is logged and skipped.
func (l *Loader) mergeFile(cfg *Config, path, layer string) {
	if path == "" {
		return
	}
	overlay, err := LoadFromFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Skipping unreadable config layer",
				slog.String("layer", layer), slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}
	cfg.Merge(overlay)
	l.logger.Debug("Merged config layer", slog.String("layer", layer), slog.String("path", path))
}

// EnsureUserConfig writes a default user config if none exists yet.
func (l *Loader) EnsureUserConfig() error {
	path := UserConfigPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	l.logger.Info("Created default user config", slog.String("path", path))
	return nil
}

// UserConfigPath returns the user-level config file path, or "" when the
// home directory cannot be determined.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, filepath.FromSlash(userConfigRelPath))
}

// findProjectConfig walks from the working directory to the filesystem root
// looking for ProjectConfigFile.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		p := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// detectRepoRoot prefers the enclosing git worktree, falling back to the
// working directory.
func detectRepoRoot() string {
	if out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output(); err == nil {
		if root := strings.TrimSpace(string(out)); root != "" {
			return root
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}
