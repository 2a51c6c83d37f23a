package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	OpenRouter  OpenRouterConfig  `mapstructure:"openrouter"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Image       ImageConfig       `mapstructure:"image"`
	Scraper     ScraperConfig     `mapstructure:"scraper"`
	Segment     SegmentConfig     `mapstructure:"segment"`
	Structuring StructuringConfig `mapstructure:"structuring"`
	DedupWindow time.Duration     `mapstructure:"dedup_window"`
	LogLevel    string            `mapstructure:"log_level"`
}

// AppConfig holds application metadata.
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// OpenRouterConfig holds model API settings.
type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RedisConfig holds the connection settings for the job queue backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig holds import queue settings.
type QueueConfig struct {
	Workers int           `mapstructure:"workers"`
	JobTTL  time.Duration `mapstructure:"job_ttl"`
}

// CacheConfig holds AI response cache settings.
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig holds API rate limit settings.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// StorageConfig holds database and media storage settings.
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	MediaDir     string `mapstructure:"media_dir"`
}

// ImageConfig holds image pipeline settings.
type ImageConfig struct {
	MaxSizeBytes   int64 `mapstructure:"max_size_bytes"`
	MaxSide        int   `mapstructure:"max_side"`
	WhiteThreshold int   `mapstructure:"white_threshold"`
	AlphaThreshold int   `mapstructure:"alpha_threshold"`
	CropMargin     int   `mapstructure:"crop_margin"`
}

// ScraperConfig holds webpage fetch settings.
type ScraperConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SegmentConfig holds background segmentation model settings.
type SegmentConfig struct {
	ModelPath   string `mapstructure:"model_path"`
	LibraryPath string `mapstructure:"library_path"`
}

// StructuringConfig holds structuring stage settings.
type StructuringConfig struct {
	TargetLanguage string `mapstructure:"target_language"`
	PDFMaxPages    int    `mapstructure:"pdf_max_pages"`
	MaxDocImages   int    `mapstructure:"max_doc_images"`
}

// LoadConfig loads the configuration.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !strings.Contains(err.Error(), "no such file") {
		return nil, err
	}

	setDefaults()

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	viper.BindEnv("openrouter.vision_model", "OPENROUTER_VISION_MODEL")
	viper.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.database_path", "DATABASE_PATH")
	viper.BindEnv("storage.media_dir", "MEDIA_DIR")
	viper.BindEnv("segment.model_path", "SEGMENT_MODEL_PATH")
	viper.BindEnv("segment.library_path", "ONNXRUNTIME_LIB_PATH")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Logger is not initialized yet, so plain stdout here.
	fmt.Println("Loading configuration", "openrouter_api_key:", maskAPIKey(viper.GetString("openrouter.api_key")), "openrouter_model:", viper.GetString("openrouter.model"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// maskAPIKey hides all but the first and last 4 characters of a key.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "recipe-importer")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("openrouter.model", "openai/gpt-4-turbo")
	viper.SetDefault("openrouter.vision_model", "openai/gpt-4o")
	viper.SetDefault("openrouter.max_tokens", 4096)
	viper.SetDefault("openrouter.timeout", "60s")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("queue.workers", 5)
	viper.SetDefault("queue.job_ttl", "24h")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.cleanup_interval", "10m")

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	viper.SetDefault("storage.database_path", "data/recipes.db")
	viper.SetDefault("storage.media_dir", "media/recipe_images")

	viper.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	viper.SetDefault("image.max_side", 1024)
	viper.SetDefault("image.white_threshold", 245)
	viper.SetDefault("image.alpha_threshold", 10)
	viper.SetDefault("image.crop_margin", 12)

	viper.SetDefault("scraper.timeout", "20s")
	viper.SetDefault("scraper.user_agent", "recipe-importer/1.0")

	viper.SetDefault("structuring.target_language", "german")
	viper.SetDefault("structuring.pdf_max_pages", 8)
	viper.SetDefault("structuring.max_doc_images", 6)

	viper.SetDefault("dedup_window", "1s")
}

func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	if config.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.JobTTL <= 0 {
		return fmt.Errorf("invalid queue job ttl")
	}

	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	if config.Image.MaxSide <= 0 {
		return fmt.Errorf("invalid image max side")
	}

	return nil
}
