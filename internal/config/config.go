package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Env      string
	Port     string
	LogLevel string

	// EnvFileLoaded is false when no .env file was found.
	EnvFileLoaded bool

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	JWTSecret            string
	TokenTTL             time.Duration
	IdentitySharedSecret string
	AllowedOrigins       []string

	Resolver ResolverConfig
	Limits   LimitsConfig
}

type DatabaseConfig struct {
	Driver      string // mysql, postgres or sqlite
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	PostgresDSN string
	SQLitePath  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type ResolverConfig struct {
	YoutubeAPIKey       string
	YoutubeAPIURL       string
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyAPIURL       string
	SpotifyTokenURL     string
	Timeout             time.Duration
}

type LimitsConfig struct {
	MaxSpacesPerUser int
	QueueCapacity    int
	SubmitWindow     time.Duration
	SelfAddQuota     int
	OtherAddQuota    int
	DuplicateWindow  time.Duration
	AdvanceLockTTL   time.Duration
	// AdvanceLocker is "redis" for multi-instance deployments or "local" for
	// a single process.
	AdvanceLocker string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	envErr := godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "mysql"),
			Host:        getEnv("MYSQL_HOST", "localhost"),
			Port:        getEnv("MYSQL_PORT", "3306"),
			User:        os.Getenv("MYSQL_USER"),
			Password:    os.Getenv("MYSQL_PASSWORD"),
			Name:        getEnv("MYSQL_DATABASE", "music_spaces"),
			PostgresDSN: strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
			SQLitePath:  getEnv("SQLITE_PATH", "music-spaces.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "music-space-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "music-space-eventlog"),
		},
		JWTSecret:            getEnv("JWT_SECRET", defaultJWTSecret),
		IdentitySharedSecret: os.Getenv("IDENTITY_SHARED_SECRET"),
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		Resolver: ResolverConfig{
			YoutubeAPIKey:       os.Getenv("YOUTUBE_API_KEY"),
			YoutubeAPIURL:       getEnv("YOUTUBE_API_URL", "https://youtube.googleapis.com/"),
			SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
			SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
			SpotifyAPIURL:       getEnv("SPOTIFY_API_URL", "https://api.spotify.com/v1/"),
			SpotifyTokenURL:     getEnv("SPOTIFY_TOKEN_URL", "https://accounts.spotify.com/api/token"),
		},
	}

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Resolver.Timeout, err = getDuration("RESOLVER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Limits, err = loadLimits(); err != nil {
		return nil, err
	}

	cfg.EnvFileLoaded = envErr == nil

	return cfg, nil
}

func loadLimits() (LimitsConfig, error) {
	var (
		l   LimitsConfig
		err error
	)
	if l.MaxSpacesPerUser, err = getInt("MAX_SPACES_PER_USER", 5); err != nil {
		return l, err
	}
	if l.QueueCapacity, err = getInt("QUEUE_CAPACITY", 20); err != nil {
		return l, err
	}
	if l.SubmitWindow, err = getDuration("SUBMIT_WINDOW", 2*time.Minute); err != nil {
		return l, err
	}
	if l.SelfAddQuota, err = getInt("SELF_ADD_QUOTA", 5); err != nil {
		return l, err
	}
	if l.OtherAddQuota, err = getInt("OTHER_ADD_QUOTA", 2); err != nil {
		return l, err
	}
	if l.DuplicateWindow, err = getDuration("DUPLICATE_WINDOW", 2*time.Minute); err != nil {
		return l, err
	}
	if l.AdvanceLockTTL, err = getDuration("ADVANCE_LOCK_TTL", 10*time.Second); err != nil {
		return l, err
	}
	l.AdvanceLocker = getEnv("ADVANCE_LOCKER", "redis")
	return l, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}
	if c.Limits.QueueCapacity <= 0 || c.Limits.MaxSpacesPerUser <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY and MAX_SPACES_PER_USER must be positive")
	}
	if c.Limits.SelfAddQuota <= 0 || c.Limits.OtherAddQuota <= 0 {
		return fmt.Errorf("SELF_ADD_QUOTA and OTHER_ADD_QUOTA must be positive")
	}
	if c.Limits.AdvanceLocker != "redis" && c.Limits.AdvanceLocker != "local" {
		return fmt.Errorf("unknown ADVANCE_LOCKER %q", c.Limits.AdvanceLocker)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
