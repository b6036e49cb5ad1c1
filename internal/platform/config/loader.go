package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "filament-recognition-go/internal/platform/errors"
)

// DefaultConfigPath is the file the loader looks for when no override is set.
const DefaultConfigPath = "config.yaml"

// Loader reads the server configuration from a yaml file layered over the
// compiled defaults, with environment variables taking final precedence.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader reading from the default config file.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      DefaultConfigPath,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads, merges and validates the configuration.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, relying on system environment")
		}
	}

	cfg := DefaultConfig()
	path := l.path
	if envPath := os.Getenv("FILAMENT_CONFIG_PATH"); envPath != "" {
		path = envPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "failed to parse config file", err)
		}
	case os.IsNotExist(err):
		path = "defaults"
	default:
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "failed to read config file", err)
	}

	applyEnvOverrides(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

// applyEnvOverrides lets deployment environments inject secrets and ports
// without touching the config file.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		for name, provider := range cfg.VLLLM {
			if provider.Type == "openai" && provider.APIKey == "" {
				provider.APIKey = key
				cfg.VLLLM[name] = provider
			}
		}
	}
	if port := os.Getenv("FILAMENT_SERVER_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if model := os.Getenv("FILAMENT_MODEL_NAME"); model != "" {
		if provider, ok := cfg.VLLLM[cfg.Selected.VLLLM]; ok {
			provider.ModelName = model
			cfg.VLLLM[cfg.Selected.VLLLM] = provider
		}
	}
	if level := os.Getenv("FILAMENT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if dir := os.Getenv("FILAMENT_LOG_DIR"); dir != "" {
		cfg.Log.Dir = dir
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("invalid server port: %d", cfg.Server.Port))
	}
	if cfg.Upload.MaxSizeMB <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("invalid upload size limit: %dMB", cfg.Upload.MaxSizeMB))
	}
	selected := cfg.Selected.VLLLM
	if selected == "" {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			"no VLLLM provider selected")
	}
	provider, ok := cfg.VLLLM[selected]
	if !ok {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("selected VLLLM provider %q is not configured", selected))
	}
	if provider.Type == "openai" && provider.APIKey == "" {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("provider %q requires an api_key (set DASHSCOPE_API_KEY)", selected))
	}
	return nil
}
