package services

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// ConfigService implements configuration management with XDG compliance
type ConfigService struct {
	logger     *lib.Logger
	configPath string // Override for testing
	readFile   func(string) ([]byte, error)
}

// NewConfigService creates a new ConfigService instance
func NewConfigService() *ConfigService {
	return &ConfigService{
		logger:   lib.NewLogger("config-service"),
		readFile: os.ReadFile,
	}
}

// Load reads configuration from XDG-compliant storage
// Returns default config (and writes it) if the file doesn't exist
// Returns error for permission/system issues, corrupted files, or invalid configurations
func (cs *ConfigService) Load() (*models.Config, error) {
	configPath := cs.GetConfigPath()

	data, err := cs.readFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		defaults := models.ConfigDefaults()
		if saveErr := cs.Save(defaults); saveErr != nil {
			cs.logger.Warn("Failed to create default config file", map[string]interface{}{
				"path":  configPath,
				"error": saveErr.Error(),
			})
		}
		return defaults, nil
	}
	if err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeConfig, "failed to read config file").
			WithContext("path", configPath)
	}

	// Fields absent from the file keep their defaults.
	config := models.ConfigDefaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeConfig, "failed to parse config yaml").
			WithContext("path", configPath)
	}

	if err := cs.Validate(config); err != nil {
		return nil, err
	}

	cs.logger.Debug("Configuration loaded", map[string]interface{}{
		"path":             configPath,
		"interval_minutes": config.IntervalMinutes,
		"data_dir":         config.DataDir,
	})

	return config, nil
}

// Save persists configuration to XDG-compliant storage
// Creates directories if they don't exist
// Returns error for validation failures or write issues
func (cs *ConfigService) Save(config *models.Config) error {
	if err := cs.Validate(config); err != nil {
		return err
	}

	configPath := cs.GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return lib.WrapError(err, lib.ErrCodeConfig, "failed to create config directory").
			WithContext("path", configPath)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeConfig, "failed to encode config yaml")
	}

	// Write file with user-only permissions for privacy
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return lib.WrapError(err, lib.ErrCodeConfig, "failed to write config file").
			WithContext("path", configPath)
	}
	return nil
}

// Validate checks configuration values for correctness
// Returns a validation error listing every invalid field
func (cs *ConfigService) Validate(config *models.Config) error {
	return config.Validate()
}

// GetConfigPath returns the full path to the config file
// Useful for debugging and user information
func (cs *ConfigService) GetConfigPath() string {
	if cs.configPath != "" {
		return cs.configPath
	}
	return filepath.Join(xdg.ConfigHome, "rei-os", "config.yaml")
}

// SetConfigPath sets a custom config path
func (cs *ConfigService) SetConfigPath(path string) {
	cs.configPath = path
}

// SetReadFile replaces the file reader used by Load. nil restores os.ReadFile.
func (cs *ConfigService) SetReadFile(reader func(string) ([]byte, error)) {
	if reader == nil {
		reader = os.ReadFile
	}
	cs.readFile = reader
}
