package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "audiows"
	configFile = "config.yaml"

	// currentVersion is the only file format version this build understands.
	currentVersion = 1
)

// ErrUnsupportedVersion is returned when the config file has an unknown version.
var ErrUnsupportedVersion = errors.New("unsupported config version")

// Serializes file writes within the process.
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/audiows or $HOME/.config/audiows
//   - macOS: $HOME/.config/audiows (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\audiows
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: Use LOCALAPPDATA
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			// Fallback to USERPROFILE\AppData\Local if LOCALAPPDATA not set
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		// macOS: Use $HOME/.config/audiows (following modern XDG convention)
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		// Linux and other Unix-like systems: Use XDG_CONFIG_HOME or $HOME/.config
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// LoadRegistry loads the registry from the default config path.
// If the file doesn't exist, returns a new default registry bound to that path.
func LoadRegistry() (*Registry, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadRegistryFrom(configPath)
}

// LoadRegistryFrom loads the registry from an explicit path.
// A missing file yields the defaults; Save later creates it.
func LoadRegistryFrom(configPath string) (*Registry, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		r := NewRegistry()
		r.path = configPath
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys absent from the file keep these defaults; keys present keep
	// their value, even an empty host or a zero read limit.
	registry := Registry{
		Server:      DefaultServerSettings(),
		Servers:     make(map[string]*KnownServer),
		Preferences: DefaultPreferences(),
	}
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if registry.Version != currentVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, registry.Version, currentVersion)
	}

	registry.applyDefaults()
	if err := registry.Server.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	registry.path = configPath

	return &registry, nil
}

// Path returns the file the registry was loaded from and saves to.
func (r *Registry) Path() string {
	return r.path
}

// Save writes the registry back to its path.
// Performs an atomic write to prevent corruption on crash.
func (r *Registry) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	configPath := r.path
	if configPath == "" {
		p, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# audiows configuration file
# server:      defaults for audiows-server (flags override)
# servers:     control servers found by 'audiows-ctl scan'
# preferences: defaults for audiows-ctl
#
# Location: ` + configPath + `

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	r.path = configPath
	return nil
}

// CreateDefaultConfig writes a default configuration file to path, refusing
// to overwrite an existing one.
func CreateDefaultConfig(configPath string) (*Registry, error) {
	if _, err := os.Stat(configPath); err == nil {
		return nil, fmt.Errorf("config file already exists: %s", configPath)
	}

	r := NewRegistry()
	r.path = configPath
	if err := r.Save(); err != nil {
		return nil, err
	}
	return r, nil
}
