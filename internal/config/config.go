package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	JWT         JWTConfig
	S3          S3Config
	Log         LogConfig
	Vision      VisionConfig
	CORS        CORSConfig
	Ledger      LedgerConfig
	Extraction  ExtractionConfig
	Retention   RetentionConfig
	RateLimit   RateLimitConfig
	Auth        AuthConfig
	Experiments ExperimentsConfig
}

// LedgerConfig holds per-account mailbox settings.
type LedgerConfig struct {
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RefundAttempts int           `mapstructure:"refund_attempts"`
}

// ExtractionConfig holds extraction cost and artifact lifetime settings.
type ExtractionConfig struct {
	Cost          int64         `mapstructure:"cost"`
	ArtifactTTL   time.Duration `mapstructure:"artifact_ttl"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	VisionTimeout time.Duration `mapstructure:"vision_timeout"`
}

// RetentionConfig holds expired-artifact sweeper settings.
type RetentionConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// RateLimitConfig holds per-client request limits for the sensitive endpoints.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// AuthConfig holds login lockout and administration settings.
type AuthConfig struct {
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
	AdminSecret      string        `mapstructure:"admin_secret"`
	InitialBalance   int64         `mapstructure:"initial_balance"`
}

// ExperimentsConfig points at an optional directory of experiment definitions.
type ExperimentsConfig struct {
	Dir string `mapstructure:"dir"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// VisionProviderConfig holds settings for a single vision model provider.
type VisionProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	Endpoint     string `mapstructure:"endpoint"`
}

// VisionConfig holds the primary and optional secondary vision providers.
type VisionConfig struct {
	Primary   VisionProviderConfig `mapstructure:"primary"`
	Secondary VisionProviderConfig `mapstructure:"secondary"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (v *VisionConfig) SecondaryConfig() *VisionProviderConfig {
	if v.Secondary.Provider != "" {
		return &v.Secondary
	}
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds JWT signing and expiry settings.
type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	AccessTokenExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer            string        `mapstructure:"issuer"`
}

// S3Config holds object storage settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the LABTABLE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LABTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "labtable")
	v.SetDefault("db.password", "labtable_secret")
	v.SetDefault("db.name", "labtable_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "168h")
	v.SetDefault("jwt.issuer", "labtable")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "labtable-images")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 900)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:5173,http://127.0.0.1:5173")

	// Vision defaults
	v.SetDefault("vision.primary.provider", "gemini")
	v.SetDefault("vision.primary.api_key", "")
	v.SetDefault("vision.primary.default_model", "gemini-2.0-flash")
	v.SetDefault("vision.primary.endpoint", "")
	v.SetDefault("vision.secondary.provider", "")
	v.SetDefault("vision.secondary.api_key", "")
	v.SetDefault("vision.secondary.default_model", "")
	v.SetDefault("vision.secondary.endpoint", "")

	// Ledger defaults
	v.SetDefault("ledger.idle_timeout", "2m")
	v.SetDefault("ledger.refund_attempts", 3)

	// Extraction defaults
	v.SetDefault("extraction.cost", 1)
	v.SetDefault("extraction.artifact_ttl", "72h")
	v.SetDefault("extraction.max_image_bytes", 5*1024*1024)
	v.SetDefault("extraction.vision_timeout", "60s")

	// Retention defaults
	v.SetDefault("retention.poll_interval", "1h")
	v.SetDefault("retention.batch_size", 100)

	// Rate limit defaults
	v.SetDefault("rate_limit.per_minute", 5)
	v.SetDefault("rate_limit.burst", 5)

	// Auth defaults
	v.SetDefault("auth.lockout_threshold", 5)
	v.SetDefault("auth.lockout_duration", "10m")
	v.SetDefault("auth.admin_secret", "")
	v.SetDefault("auth.initial_balance", 0)

	v.SetDefault("experiments.dir", "")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "LABTABLE_SERVER_PORT",
		"server.read_timeout":            "LABTABLE_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "LABTABLE_SERVER_WRITE_TIMEOUT",
		"server.environment":             "LABTABLE_SERVER_ENVIRONMENT",
		"db.host":                        "LABTABLE_DB_HOST",
		"db.port":                        "LABTABLE_DB_PORT",
		"db.user":                        "LABTABLE_DB_USER",
		"db.password":                    "LABTABLE_DB_PASSWORD",
		"db.name":                        "LABTABLE_DB_NAME",
		"db.sslmode":                     "LABTABLE_DB_SSLMODE",
		"db.max_open":                    "LABTABLE_DB_MAX_OPEN",
		"db.max_idle":                    "LABTABLE_DB_MAX_IDLE",
		"jwt.secret":                     "LABTABLE_JWT_SECRET",
		"jwt.access_expiry":              "LABTABLE_JWT_ACCESS_EXPIRY",
		"jwt.issuer":                     "LABTABLE_JWT_ISSUER",
		"s3.region":                      "LABTABLE_S3_REGION",
		"s3.bucket":                      "LABTABLE_S3_BUCKET",
		"s3.endpoint":                    "LABTABLE_S3_ENDPOINT",
		"s3.access_key":                  "LABTABLE_S3_ACCESS_KEY",
		"s3.secret_key":                  "LABTABLE_S3_SECRET_KEY",
		"s3.presign_expiry":              "LABTABLE_S3_PRESIGN_EXPIRY",
		"log.level":                      "LABTABLE_LOG_LEVEL",
		"log.format":                     "LABTABLE_LOG_FORMAT",
		"cors.allowed_origins":           "LABTABLE_CORS_ALLOWED_ORIGINS",
		"vision.primary.provider":        "LABTABLE_VISION_PRIMARY_PROVIDER",
		"vision.primary.api_key":         "LABTABLE_VISION_PRIMARY_API_KEY",
		"vision.primary.default_model":   "LABTABLE_VISION_PRIMARY_DEFAULT_MODEL",
		"vision.primary.endpoint":        "LABTABLE_VISION_PRIMARY_ENDPOINT",
		"vision.secondary.provider":      "LABTABLE_VISION_SECONDARY_PROVIDER",
		"vision.secondary.api_key":       "LABTABLE_VISION_SECONDARY_API_KEY",
		"vision.secondary.default_model": "LABTABLE_VISION_SECONDARY_DEFAULT_MODEL",
		"vision.secondary.endpoint":      "LABTABLE_VISION_SECONDARY_ENDPOINT",
		"ledger.idle_timeout":            "LABTABLE_LEDGER_IDLE_TIMEOUT",
		"ledger.refund_attempts":         "LABTABLE_LEDGER_REFUND_ATTEMPTS",
		"extraction.cost":                "LABTABLE_EXTRACTION_COST",
		"extraction.artifact_ttl":        "LABTABLE_EXTRACTION_ARTIFACT_TTL",
		"extraction.max_image_bytes":     "LABTABLE_EXTRACTION_MAX_IMAGE_BYTES",
		"extraction.vision_timeout":      "LABTABLE_EXTRACTION_VISION_TIMEOUT",
		"retention.poll_interval":        "LABTABLE_RETENTION_POLL_INTERVAL",
		"retention.batch_size":           "LABTABLE_RETENTION_BATCH_SIZE",
		"rate_limit.per_minute":          "LABTABLE_RATE_LIMIT_PER_MINUTE",
		"rate_limit.burst":               "LABTABLE_RATE_LIMIT_BURST",
		"auth.lockout_threshold":         "LABTABLE_AUTH_LOCKOUT_THRESHOLD",
		"auth.lockout_duration":          "LABTABLE_AUTH_LOCKOUT_DURATION",
		"auth.admin_secret":              "LABTABLE_AUTH_ADMIN_SECRET",
		"auth.initial_balance":           "LABTABLE_AUTH_INITIAL_BALANCE",
		"experiments.dir":                "LABTABLE_EXPERIMENTS_DIR",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Render set a PORT env var. Use it if LABTABLE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("LABTABLE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:            v.GetString("jwt.secret"),
		AccessTokenExpiry: v.GetDuration("jwt.access_expiry"),
		Issuer:            v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}
	cfg.Vision = VisionConfig{
		Primary: VisionProviderConfig{
			Provider:     v.GetString("vision.primary.provider"),
			APIKey:       v.GetString("vision.primary.api_key"),
			DefaultModel: v.GetString("vision.primary.default_model"),
			Endpoint:     v.GetString("vision.primary.endpoint"),
		},
		Secondary: VisionProviderConfig{
			Provider:     v.GetString("vision.secondary.provider"),
			APIKey:       v.GetString("vision.secondary.api_key"),
			DefaultModel: v.GetString("vision.secondary.default_model"),
			Endpoint:     v.GetString("vision.secondary.endpoint"),
		},
	}
	cfg.Ledger = LedgerConfig{
		IdleTimeout:    v.GetDuration("ledger.idle_timeout"),
		RefundAttempts: v.GetInt("ledger.refund_attempts"),
	}
	cfg.Extraction = ExtractionConfig{
		Cost:          v.GetInt64("extraction.cost"),
		ArtifactTTL:   v.GetDuration("extraction.artifact_ttl"),
		MaxImageBytes: v.GetInt64("extraction.max_image_bytes"),
		VisionTimeout: v.GetDuration("extraction.vision_timeout"),
	}
	cfg.Retention = RetentionConfig{
		PollInterval: v.GetDuration("retention.poll_interval"),
		BatchSize:    v.GetInt("retention.batch_size"),
	}
	cfg.RateLimit = RateLimitConfig{
		PerMinute: v.GetInt("rate_limit.per_minute"),
		Burst:     v.GetInt("rate_limit.burst"),
	}
	cfg.Auth = AuthConfig{
		LockoutThreshold: v.GetInt("auth.lockout_threshold"),
		LockoutDuration:  v.GetDuration("auth.lockout_duration"),
		AdminSecret:      v.GetString("auth.admin_secret"),
		InitialBalance:   v.GetInt64("auth.initial_balance"),
	}
	cfg.Experiments = ExperimentsConfig{
		Dir: v.GetString("experiments.dir"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Extraction.Cost < 1 || c.Extraction.Cost > 100 {
		return fmt.Errorf("config: extraction.cost must be in 1..100, got %d", c.Extraction.Cost)
	}
	if c.Ledger.RefundAttempts < 1 {
		return fmt.Errorf("config: ledger.refund_attempts must be positive")
	}
	if c.Extraction.ArtifactTTL <= 0 {
		return fmt.Errorf("config: extraction.artifact_ttl must be positive")
	}
	if c.Retention.BatchSize < 1 {
		return fmt.Errorf("config: retention.batch_size must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// InitLogger builds the global zap logger from cfg. "console" selects the
// human-readable development encoder; anything else logs JSON.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("config: parse log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("config: build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}
