package config

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "./web",
		},
		Upload: UploadConfig{
			MaxSizeMB:         10,
			AllowedExtensions: []string{"jpeg", "jpg", "png"},
		},
		Selected: SelectedConfig{
			VLLLM: "DashScopeVLLM",
		},
		VLLLM: VLLMDefaultsMap(),
	}
}

// VLLMDefaultsMap returns the built-in provider entries.
func VLLMDefaultsMap() map[string]VLLLMConfig {
	return map[string]VLLLMConfig{
		"DashScopeVLLM": {
			Type:        "openai",
			ModelName:   "qwen-vl-plus",
			BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Temperature: 0.1,
			MaxTokens:   2000,
			TopP:        0.9,
			Security:    DefaultSecurityConfig(),
		},
		"OllamaVLLM": {
			Type:        "ollama",
			ModelName:   "qwen2.5vl:7b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.1,
			MaxTokens:   2000,
			TopP:        0.9,
			Security:    DefaultSecurityConfig(),
		},
	}
}

// DefaultSecurityConfig mirrors the limits enforced by the image pipeline.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxFileSize:    10 * 1024 * 1024,
		MaxPixels:      16777216, // 16M pixels
		MaxWidth:       4096,
		MaxHeight:      4096,
		AllowedFormats: []string{"jpeg", "jpg", "png", "webp", "gif", "bmp"},
		EnableDeepScan: true,
	}
}
