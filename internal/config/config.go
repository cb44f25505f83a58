package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the name of both the global (~/.lifegrid) and repo-local (.lifegrid) config directories.
const DirName = ".lifegrid"

// Config holds application configuration.
type Config struct {
	// StorageKey is the namespaced key the document is stored under.
	StorageKey string `json:"storage_key,omitempty"`

	// DefaultLifeExpectancy is used for fresh profiles before setup completes.
	DefaultLifeExpectancy int `json:"default_life_expectancy,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export files.
	// Paths outside ~/.lifegrid/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// MaxSnapshots is how many snapshots are kept per storage key. 0 means the default; negative keeps all.
	MaxSnapshots int `json:"max_snapshots,omitempty"`

	// MaxImportBytes bounds the size of an import file. 0 means the default.
	MaxImportBytes int64 `json:"max_import_bytes,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogMode selects the logger configuration: "dev" (console) or "prod" (JSON).
	LogMode string `json:"log_mode,omitempty"`

	// WebBind and WebPort are the default listen address for `lifegrid serve`.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StorageKey:            "life-squares-data",
		DefaultLifeExpectancy: 80,
		MaxImportBytes:        10 * 1024 * 1024,
		MaxSnapshots:          20,
		LogMode:               "dev",
		WebBind:               "127.0.0.1",
		WebPort:               8765,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lifegrid.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global directory and the nearest
// repo-local .lifegrid/config.json found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	// The global directory is itself named .lifegrid; don't read it twice.
	if repoConfigPath == filepath.Join(globalDir, "config.json") {
		repoConfigPath = ""
	}
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .lifegrid/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		StorageKey:            firstString(overlay.StorageKey, base.StorageKey),
		DefaultLifeExpectancy: firstInt(overlay.DefaultLifeExpectancy, base.DefaultLifeExpectancy),
		MaxSnapshots:          firstInt(overlay.MaxSnapshots, base.MaxSnapshots),
		DBMaxOpenConns:        firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:        firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		LogMode:               firstString(overlay.LogMode, base.LogMode),
		WebBind:               firstString(overlay.WebBind, base.WebBind),
		WebPort:               firstInt(overlay.WebPort, base.WebPort),
	}

	result.MaxImportBytes = overlay.MaxImportBytes
	if result.MaxImportBytes == 0 {
		result.MaxImportBytes = base.MaxImportBytes
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
