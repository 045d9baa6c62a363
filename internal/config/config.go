package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	CORSOrigins string

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	JWTSecret      string

	AIProvider      string
	AIModel         string
	AITimeout       time.Duration
	AIMaxAttempts   int
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	GeminiAPIKey    string

	DashboardCacheTTL    time.Duration
	PipelineHistoryLimit int
	DefaultDue           time.Duration
	NotificationChannel  string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	TracingEndpoint    string
	TracingInsecure    bool
	TracingStdout      bool
	TracingSampleRatio float64

	SandboxEnabled   bool
	DockerHost       string
	ExecutionTimeout time.Duration
	CodeRunMemoryMB  int
	CodeRunCPUShares int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ALGOGENIUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "AlgoGenius API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.timeout", "45s")
	v.SetDefault("ai.max_attempts", 2)
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("pipeline.history_limit", 5)
	v.SetDefault("assignment.default_due", "168h")
	v.SetDefault("notification.channel", "algogenius:notifications")
	v.SetDefault("cloudinary.folder", "algogenius/submissions")
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("sandbox.enabled", false)
	v.SetDefault("execution_timeout_ms", 5000)
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)

	ttl, err := duration(v, "dashboard.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	aiTimeout, err := duration(v, "ai.timeout")
	if err != nil {
		return Config{}, err
	}
	defaultDue, err := duration(v, "assignment.default_due")
	if err != nil {
		return Config{}, err
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSOrigins:            v.GetString("cors.origins"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		AIModel:                v.GetString("ai.model"),
		AITimeout:              aiTimeout,
		AIMaxAttempts:          v.GetInt("ai.max_attempts"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIBaseURL:          v.GetString("openai_base_url"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
		GeminiAPIKey:           v.GetString("gemini_api_key"),
		DashboardCacheTTL:      ttl,
		PipelineHistoryLimit:   v.GetInt("pipeline.history_limit"),
		DefaultDue:             defaultDue,
		NotificationChannel:    v.GetString("notification.channel"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		TracingEndpoint:        v.GetString("tracing.endpoint"),
		TracingInsecure:        v.GetBool("tracing.insecure"),
		TracingStdout:          v.GetBool("tracing.stdout"),
		TracingSampleRatio:     v.GetFloat64("tracing.sample_ratio"),
		SandboxEnabled:         v.GetBool("sandbox.enabled"),
		DockerHost:             v.GetString("docker_host"),
		ExecutionTimeout:       time.Duration(timeoutMs) * time.Millisecond,
		CodeRunMemoryMB:        v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:       v.GetInt("code_run_cpu_shares"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AIMaxAttempts <= 0 {
		cfg.AIMaxAttempts = 2
	}

	if cfg.PipelineHistoryLimit <= 0 {
		cfg.PipelineHistoryLimit = 5
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
