package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every setting both processes read from the environment.
type Config struct {
	HTTPAddr string
	APIToken string

	PostgresDSN string

	RedisAddr        string
	RedisQueuePrefix string

	Workers      int
	TaskTimeout  time.Duration
	RetryBackoff time.Duration
	ReapInterval time.Duration

	ArtifactsRoot string
	PublicBaseURL string

	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMTopP        float64

	TTSServerURL string
	TTSVoice     string
	TTSSpeed     float64
	EspeakBin    string

	DiffusionURL string
	FFmpegBin    string

	EnableResearch      bool
	ResearchAPIKey      string
	ResearchSearchLimit int
	ContextCharLimit    int

	EnableImageGeneration bool

	PrometheusPushgateway string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads the environment once. Missing required values are fatal.
func Load() *Config {
	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		APIToken: getEnv("API_TOKEN", ""),

		PostgresDSN: mustEnv("POSTGRES_DSN"),

		RedisAddr:        mustEnv("REDIS_ADDR"),
		RedisQueuePrefix: getEnv("REDIS_QUEUE_PREFIX", "tasks"),

		Workers:      getEnvAsInt("WORKERS", 4),
		TaskTimeout:  getEnvAsDuration("TASK_TIMEOUT", 30*time.Minute),
		RetryBackoff: getEnvAsDuration("RETRY_BACKOFF", 30*time.Second),
		ReapInterval: getEnvAsDuration("REAP_INTERVAL", 30*time.Second),

		ArtifactsRoot: getEnv("ARTIFACTS_ROOT", "data/jobs"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		LLMBaseURL:     getEnv("LLM_BASE_URL", "http://localhost:1234/v1"),
		LLMAPIKey:      getEnv("LLM_API_KEY", "not-needed"),
		LLMModel:       getEnv("LLM_MODEL_NAME", "openai/gpt-oss-20b"),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		LLMTopP:        getEnvAsFloat("LLM_TOP_P", 0.9),

		TTSServerURL: getEnv("TTS_SERVER_URL", ""),
		TTSVoice:     getEnv("TTS_VOICE", "Nova"),
		TTSSpeed:     getEnvAsFloat("TTS_SPEED", 1.0),
		EspeakBin:    getEnv("ESPEAK_BIN", "espeak-ng"),

		DiffusionURL: getEnv("DIFFUSION_URL", ""),
		FFmpegBin:    getEnv("FFMPEG_BIN", "ffmpeg"),

		EnableResearch:      getEnvAsBool("ENABLE_RESEARCH", false),
		ResearchAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		ResearchSearchLimit: getEnvAsInt("RESEARCH_SEARCH_LIMIT", 5),
		ContextCharLimit:    getEnvAsInt("CONTEXT_CHAR_LIMIT", 4000),

		EnableImageGeneration: getEnvAsBool("ENABLE_IMAGE_GENERATION", true),

		PrometheusPushgateway: getEnv("PROMETHEUS_PUSHGATEWAY", ""),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "videos"),
		MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
	}

	validate(cfg)
	return cfg
}

func validate(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ContextCharLimit <= 0 {
		cfg.ContextCharLimit = 4000
	}
	if cfg.ResearchSearchLimit <= 0 {
		cfg.ResearchSearchLimit = 5
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing env: %s", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsFloat(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvAsBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
