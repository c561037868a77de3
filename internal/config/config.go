package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default YAML config location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML, with selected
// fields overridable from the environment.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"baseURL"`
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model"`

	SummarySystemPrompt string  `yaml:"summarySystemPrompt"`
	MinTokens           int     `yaml:"minTokens"`
	MaxTokens           int     `yaml:"maxTokens"`
	DefaultTokens       int     `yaml:"defaultTokens"`
	MaxInputChars       int     `yaml:"maxInputChars"`
	Temperature         float64 `yaml:"temperature"`
	TopP                float64 `yaml:"topP"`
	RepetitionPenalty   float64 `yaml:"repetitionPenalty"`
	GenerationTimeoutS  int     `yaml:"generationTimeoutSeconds"`
	BatchConcurrency    int     `yaml:"batchConcurrency"`

	DatabaseURL string `yaml:"databaseURL"`
	RedisAddr   string `yaml:"redisAddr"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	ExportWorkers      int  `yaml:"exportWorkers"`
	PresignExpiryHours int  `yaml:"presignExpiryHours"`
	TrustForwarded     bool `yaml:"trustForwarded"`
	MetricsEnabled     bool `yaml:"metricsEnabled"`
}

// Load reads config from path (defaults to config.yaml). A .env file in
// the working directory is loaded first so local development picks up
// secrets without exporting them.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("BRIEFLY_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("BRIEFLY_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("BRIEFLY_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("BRIEFLY_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("BRIEFLY_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		cfg.MinioUseSSL, _ = strconv.ParseBool(v)
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Provider == "" {
		cfg.Provider = "ollama"
	}
	if cfg.MinTokens == 0 {
		cfg.MinTokens = 64
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	if cfg.DefaultTokens == 0 {
		cfg.DefaultTokens = 256
	}
	if cfg.MaxInputChars == 0 {
		cfg.MaxInputChars = 24000
	}
	if cfg.GenerationTimeoutS == 0 {
		cfg.GenerationTimeoutS = 120
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.ExportWorkers == 0 {
		cfg.ExportWorkers = 2
	}
	if cfg.PresignExpiryHours == 0 {
		cfg.PresignExpiryHours = 24
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or BRIEFLY_PORT)")
	}
	switch cfg.Provider {
	case "ollama", "openai", "openai-compat", "gemini":
	default:
		return fmt.Errorf("config: unknown provider %q (want ollama, openai, openai-compat, or gemini)", cfg.Provider)
	}
	if cfg.Provider == "gemini" && cfg.APIKey == "" {
		return errors.New("config: apiKey is required for the gemini provider (set in config.yaml or BRIEFLY_API_KEY)")
	}
	if cfg.Model == "" {
		return errors.New("config: model is required (set in config.yaml or BRIEFLY_MODEL)")
	}
	if cfg.MinTokens <= 0 || cfg.MaxTokens < cfg.MinTokens {
		return fmt.Errorf("config: invalid token bounds [%d, %d]", cfg.MinTokens, cfg.MaxTokens)
	}
	if cfg.DefaultTokens < cfg.MinTokens || cfg.DefaultTokens > cfg.MaxTokens {
		return fmt.Errorf("config: defaultTokens %d outside [%d, %d]", cfg.DefaultTokens, cfg.MinTokens, cfg.MaxTokens)
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	return nil
}
