package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Import    ImportConfig    `yaml:"import"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

type LogConfig struct {
	Dir    string `yaml:"dir"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// RateLimitRule is a single named limit, e.g. {limit: 10, window: "5m"}
type RateLimitRule struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

type RateLimitConfig struct {
	Enabled bool                     `yaml:"enabled"`
	Policy  string                   `yaml:"policy"` // fail_open or fail_closed
	Rules   map[string]RateLimitRule `yaml:"rules"`
}

type ImportConfig struct {
	Delimiter       string `yaml:"delimiter"`
	MaxFileMB       int    `yaml:"max_file_mb"`
	SkipInvalidRows bool   `yaml:"skip_invalid_rows"`
	Source          string `yaml:"source"`
}

type StorageConfig struct {
	Dir           string        `yaml:"dir"`
	MaxUploadMB   int           `yaml:"max_upload_mb"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Rate limit rule names used by the router
const (
	RuleAuth   = "auth"
	RuleWrite  = "write"
	RuleImport = "import"
	RuleUpload = "upload"
)

// Load loads configuration from file, .env and environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg.loadFromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "debug"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "tradejournal",
			SSLMode: "disable",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		JWT:   JWTConfig{ExpireHours: 24},
		Log:   LogConfig{Dir: "logs", Level: "info", Format: "text"},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Policy:  "fail_open",
			Rules: map[string]RateLimitRule{
				RuleAuth:   {Limit: 10, Window: "5m"},
				RuleWrite:  {Limit: 60, Window: "1m"},
				RuleImport: {Limit: 5, Window: "15m"},
				RuleUpload: {Limit: 20, Window: "5m"},
			},
		},
		Import: ImportConfig{Delimiter: ",", MaxFileMB: 5, Source: "csv_import"},
		Storage: StorageConfig{
			Dir:           "data/media",
			MaxUploadMB:   10,
			SweepInterval: 10 * time.Minute,
		},
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.Mode == "" {
		c.Server.Mode = d.Server.Mode
	}
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = d.JWT.ExpireHours
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.RateLimit.Policy == "" {
		c.RateLimit.Policy = d.RateLimit.Policy
	}
	if c.RateLimit.Rules == nil {
		c.RateLimit.Rules = map[string]RateLimitRule{}
	}
	for name, rule := range d.RateLimit.Rules {
		if _, ok := c.RateLimit.Rules[name]; !ok {
			c.RateLimit.Rules[name] = rule
		}
	}
	if c.Import.Delimiter == "" {
		c.Import.Delimiter = d.Import.Delimiter
	}
	if c.Import.MaxFileMB <= 0 {
		c.Import.MaxFileMB = d.Import.MaxFileMB
	}
	if c.Import.Source == "" {
		c.Import.Source = d.Import.Source
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = d.Storage.Dir
	}
	if c.Storage.MaxUploadMB <= 0 {
		c.Storage.MaxUploadMB = d.Storage.MaxUploadMB
	}
	if c.Storage.SweepInterval <= 0 {
		c.Storage.SweepInterval = d.Storage.SweepInterval
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.RateLimit.Policy {
	case "fail_open", "fail_closed":
	default:
		return fmt.Errorf("rate_limit.policy: unknown policy %q", c.RateLimit.Policy)
	}
	for name, rule := range c.RateLimit.Rules {
		if rule.Limit <= 0 {
			return fmt.Errorf("rate_limit.rules.%s: limit must be positive", name)
		}
	}
	if c.Import.Delimiter != "tab" {
		if utf8.RuneCountInString(c.Import.Delimiter) != 1 {
			return fmt.Errorf("import.delimiter: must be a single character, got %q", c.Import.Delimiter)
		}
		switch r, _ := utf8.DecodeRuneInString(c.Import.Delimiter); r {
		case '"', '\r', '\n', utf8.RuneError:
			return fmt.Errorf("import.delimiter: %q cannot separate fields", c.Import.Delimiter)
		}
	}
	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}

	// Database
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.Database.SSLMode = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	// JWT
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("JWT_EXPIRE_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.JWT.ExpireHours = hours
		}
	}

	// Log
	if v := os.Getenv("LOG_DIR"); v != "" {
		c.Log.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	// Rate limit
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.RateLimit.Enabled = enabled
		}
	}
	if v := os.Getenv("RATE_LIMIT_POLICY"); v != "" {
		c.RateLimit.Policy = strings.ToLower(v)
	}

	// Import
	if v := os.Getenv("IMPORT_DELIMITER"); v != "" {
		c.Import.Delimiter = v
	}
	if v := os.Getenv("IMPORT_SKIP_INVALID_ROWS"); v != "" {
		if skip, err := strconv.ParseBool(v); err == nil {
			c.Import.SkipInvalidRows = skip
		}
	}

	// Storage
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("STORAGE_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Storage.SweepInterval = d
		}
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr returns the Redis address in host:port form
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DelimiterRune returns the import delimiter as a rune ("tab" means '\t')
func (c *ImportConfig) DelimiterRune() rune {
	if c.Delimiter == "tab" {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}
