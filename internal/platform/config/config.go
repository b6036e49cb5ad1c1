package config

// Config is the root configuration for the recognition server.
type Config struct {
	Server   ServerConfig           `yaml:"server"`
	Log      LogConfig              `yaml:"log"`
	Web      WebConfig              `yaml:"web"`
	Upload   UploadConfig           `yaml:"upload"`
	Selected SelectedConfig         `yaml:"selected_module"`
	VLLLM    map[string]VLLLMConfig `yaml:"VLLLM"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StaticDir string `yaml:"static_dir"`
}

// UploadConfig bounds what the recognize endpoint accepts before the
// image pipeline runs.
type UploadConfig struct {
	MaxSizeMB         int      `yaml:"max_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type SelectedConfig struct {
	VLLLM string `yaml:"VLLLM"`
}

// VLLLMConfig describes one vision-language model provider entry.
type VLLLMConfig struct {
	Type        string         `yaml:"type"`
	ModelName   string         `yaml:"model_name"`
	BaseURL     string         `yaml:"url"`
	APIKey      string         `yaml:"api_key"`
	Temperature float64        `yaml:"temperature"`
	MaxTokens   int            `yaml:"max_tokens"`
	TopP        float64        `yaml:"top_p"`
	Security    SecurityConfig `yaml:"security"`
}

type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxPixels      int64    `yaml:"max_pixels"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats"`
	EnableDeepScan bool     `yaml:"enable_deep_scan"`
}

// MaxUploadBytes converts the configured megabyte limit to bytes.
func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxSizeMB) * 1024 * 1024
}
