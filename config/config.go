package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/textgrab"
	APIKeyPathEnvVar  = "TEXTGRAB_API_KEY_FILE"
	EnvFileEnvVar     = "TEXTGRAB_ENV"

	DefaultListenAddr  = "127.0.0.1:8573"
	DefaultEngine      = "openrouter"
	DefaultLanguage    = "eng"
	DefaultUploadMB    = 10
	DefaultDeadlineSec = 20
)

type LoadOptions struct {
	APIKeyPathOverride string
}

type Config struct {
	APIKey               string
	APIKeyPath           string
	Engine               string
	Model                string
	BaseURL              string
	Language             string
	Providers            []string
	ListenAddr           string
	MaxUploadBytes       int64
	RecognizeDeadlineSec int
	PoolSize             int
	EnableFileLogging    bool
	Debug                bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// A .env beside the executable wins; TEXTGRAB_ENV names a fallback file.
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// PROVIDERS is a comma-separated preference list.
	var providers []string
	if providersStr := os.Getenv("PROVIDERS"); providersStr != "" {
		for _, provider := range strings.Split(providersStr, ",") {
			if trimmed := strings.TrimSpace(provider); trimmed != "" {
				providers = append(providers, trimmed)
			}
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:               resolveAPIKey(apiKeyPath),
		APIKeyPath:           apiKeyPath,
		Engine:               getEnvWithDefault("ENGINE", DefaultEngine),
		Model:                os.Getenv("MODEL"),
		BaseURL:              os.Getenv("BASE_URL"),
		Language:             getEnvWithDefault("LANGUAGE", DefaultLanguage),
		Providers:            providers,
		ListenAddr:           getEnvWithDefault("LISTEN_ADDR", DefaultListenAddr),
		MaxUploadBytes:       int64(envInt("MAX_UPLOAD_MB", DefaultUploadMB)) << 20,
		RecognizeDeadlineSec: envInt("RECOGNIZE_DEADLINE_SEC", DefaultDeadlineSec),
		PoolSize:             envInt("POOL_SIZE", 0),
		EnableFileLogging:    strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		Debug:                strings.ToLower(os.Getenv("DEBUG")) == "true",
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		return key
	}

	return os.Getenv("OPENAI_API_KEY")
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
