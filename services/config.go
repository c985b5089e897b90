package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	AWS       AWSConfig
	Interview InterviewConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL  string
	Seed bool
}

type AIConfig struct {
	GeminiAPIKey    string
	OpenAIAPIKey    string
	TimeoutSec      int
	MaxRetries      int
	RateLimitPerMin int
}

type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
}

type InterviewConfig struct {
	TotalQuestionLimit int
	SessionIdleTTLSec  int
	TempGazeDir        string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LLMTimeout returns the per-call LLM budget as a duration.
func (c *AIConfig) LLMTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SessionIdleTTL returns the idle eviction window as a duration.
func (c *InterviewConfig) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSec) * time.Second
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("llm.timeout_sec", "60")
	viper.SetDefault("llm.max_retries", "5")
	viper.SetDefault("llm.rate_limit_per_min", "20")
	viper.SetDefault("aws.access_key_id", "")
	viper.SetDefault("aws.secret_access_key", "")
	viper.SetDefault("aws.region", "ap-northeast-2")
	viper.SetDefault("aws.bucket_name", "")
	viper.SetDefault("interview.total_question_limit", "15")
	viper.SetDefault("interview.session_idle_ttl_sec", "3600")
	viper.SetDefault("interview.temp_gaze_dir", "temp_gaze")
	viper.SetDefault("websocket.allowed_origins", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY", "LLM_API_KEY")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("llm.timeout_sec", "LLM_TIMEOUT_SEC")
	viper.BindEnv("llm.max_retries", "LLM_MAX_RETRIES")
	viper.BindEnv("llm.rate_limit_per_min", "LLM_RATE_LIMIT_PER_MIN")
	viper.BindEnv("aws.access_key_id", "AWS_ACCESS_KEY_ID")
	viper.BindEnv("aws.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	viper.BindEnv("aws.region", "AWS_REGION")
	viper.BindEnv("aws.bucket_name", "BUCKET_NAME")
	viper.BindEnv("interview.total_question_limit", "TOTAL_QUESTION_LIMIT")
	viper.BindEnv("interview.session_idle_ttl_sec", "SESSION_IDLE_TTL_SEC")
	viper.BindEnv("interview.temp_gaze_dir", "TEMP_GAZE_DIR")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:  viper.GetString("database.url"),
			Seed: viper.GetBool("database.seed"),
		},
		AI: AIConfig{
			GeminiAPIKey:    viper.GetString("gemini.api_key"),
			OpenAIAPIKey:    viper.GetString("openai.api_key"),
			TimeoutSec:      viper.GetInt("llm.timeout_sec"),
			MaxRetries:      viper.GetInt("llm.max_retries"),
			RateLimitPerMin: viper.GetInt("llm.rate_limit_per_min"),
		},
		AWS: AWSConfig{
			AccessKeyID:     viper.GetString("aws.access_key_id"),
			SecretAccessKey: viper.GetString("aws.secret_access_key"),
			Region:          viper.GetString("aws.region"),
			BucketName:      viper.GetString("aws.bucket_name"),
		},
		Interview: InterviewConfig{
			TotalQuestionLimit: viper.GetInt("interview.total_question_limit"),
			SessionIdleTTLSec:  viper.GetInt("interview.session_idle_ttl_sec"),
			TempGazeDir:        viper.GetString("interview.temp_gaze_dir"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
