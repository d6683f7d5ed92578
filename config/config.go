package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/pkg/paths"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// projectConfigNames are searched from the start directory up to the root.
var projectConfigNames = []string{
	"stratus.yml",
	"stratus.yaml",
	"stratus.toml",
	".stratus.yml",
	".stratus.yaml",
}

// LegacyConfigName is the JSON (with comments) file written by older
// installs. Only its port is honoured.
const LegacyConfigName = ".stratus.json"

// Loaded is a merged configuration together with the files it came from.
type Loaded struct {
	*Config
	// Sources lists the files that contributed, in order of application.
	Sources []string
}

// Load reads and parses a single configuration file.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration validation failed").
			WithDetail("path", path)
	}
	return cfg, nil
}

// LoadDefault loads the layered configuration starting from the current directory.
func LoadDefault() (*Loaded, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory.
func LoadFrom(startDir string) (*Loaded, error) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return LoadFromWithLogger(startDir, logger)
}

// LoadFromWithLogger loads configuration with hierarchical merging:
//  1. defaults
//  2. global config (~/.config/stratus/stratus.yml or .toml)
//  3. project config (stratus.yml / stratus.toml, searched upwards)
//  4. legacy .stratus.json next to the project config (port only)
//  5. STRATUS_HOST / STRATUS_PORT environment variables
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Loaded, error) {
	result := &Loaded{Config: &Config{}}

	// 1. Global config (optional)
	if globalPath := FindGlobalConfigFile(); globalPath != "" {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		globalConfig, err := loadFile(globalPath)
		if err != nil {
			logger.WithError(err).Warn("Failed to load global configuration, continuing without it")
		} else {
			result.Config = mergeConfigs(result.Config, globalConfig)
			result.Sources = append(result.Sources, globalPath)
		}
	}

	// 2. Project config (optional, but a broken one is an error)
	projectDir := startDir
	if projectPath, err := FindConfigFile(startDir); err == nil {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		projectConfig, err := loadFile(projectPath)
		if err != nil {
			return nil, err
		}
		result.Config = mergeConfigs(result.Config, projectConfig)
		result.Sources = append(result.Sources, projectPath)
		projectDir = filepath.Dir(projectPath)
	}

	// 3. Legacy JSON
	legacyPath := filepath.Join(projectDir, LegacyConfigName)
	if port, err := readLegacyPort(legacyPath); err == nil && port != 0 {
		logger.WithField("path", legacyPath).Debug("Applying legacy port")
		result.Server.Port = port
		result.Sources = append(result.Sources, legacyPath)
	} else if err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("Failed to read legacy configuration, ignoring it")
	}

	// 4. Environment
	if err := applyEnv(result.Config); err != nil {
		return nil, err
	}

	result.SetDefaults()
	if err := result.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration validation failed")
	}

	logger.WithField("sources", result.Sources).Debug("Configuration loaded")
	return result, nil
}

// FindConfigFile searches for a stratus configuration file from startDir up to
// the filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range projectConfigNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.ConfigNotFound(startDir)
}

// FindGlobalConfigFile returns the global config file path, or "" if none exists.
func FindGlobalConfigFile() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"stratus.yml", "stratus.yaml", "stratus.toml"} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadFile parses a YAML or TOML file without applying defaults.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	cfg, err := parse(path, []byte(expandEnvVars(string(data))))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}
	return cfg, nil
}

// parse decodes configuration bytes, choosing the format by file extension.
func parse(path string, data []byte) (*Config, error) {
	var cfg Config
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		// go-toml has no inline maps; collect unknown top-level keys by hand
		var raw map[string]interface{}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		for key, value := range raw {
			if key == "server" || key == "stream" || key == "hooks" {
				continue
			}
			if cfg.Extensions == nil {
				cfg.Extensions = make(map[string]interface{})
			}
			cfg.Extensions[key] = value
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readLegacyPort reads the port from a JSON-with-comments file.
func readLegacyPort(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var legacy struct {
		Port int `json:"port"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &legacy); err != nil {
		return 0, err
	}
	return legacy.Port, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("STRATUS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("STRATUS_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return errors.ConfigInvalid("STRATUS_PORT must be a number").WithDetail("value", portStr)
		}
		cfg.Server.Port = port
	}
	return nil
}

// expandEnvVars replaces ${VAR} references with environment values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
