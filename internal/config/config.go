package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `json:"app"`
	Backend   BackendConfig   `json:"backend"`
	Storage   StorageConfig   `json:"storage"`
	Cache     CacheConfig     `json:"cache"`
	Tracing   TracingConfig   `json:"tracing"`
	Shell     ServerConfig    `json:"shell"`
	Stub      StubConfig      `json:"stub"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Features  FeaturesConfig  `json:"features"`
	Native    NativeConfig    `json:"native"`
}

// AppConfig holds the operator details shown on the legal pages.
type AppConfig struct {
	DisplayName          string `json:"display_name"`
	SupportEmail         string `json:"support_email"`
	SupportHours         string `json:"support_hours"`
	CompanyName          string `json:"company_name"`
	PrivacyEffectiveDate string `json:"privacy_effective_date"`
}

// BackendConfig points the client at the habit refund backend.
type BackendConfig struct {
	BaseURL string `json:"base_url"`
}

// StorageConfig holds the local session store location.
type StorageConfig struct {
	TokenDBPath string `json:"token_db_path"`
}

// CacheConfig configures the challenge catalog cache. An empty RedisAddr
// selects the in-memory cache.
type CacheConfig struct {
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	TTLSeconds    int    `json:"ttl_seconds"`
}

// TTL returns the catalog cache lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Environment string `json:"environment"`
}

// ServerConfig holds the local presentation shell listener.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// StubConfig holds the demo backend settings.
type StubConfig struct {
	Port        string `json:"port"`
	Host        string `json:"host"`
	PaymentMode string `json:"payment_mode"`
}

// Addr returns host:port.
func (s StubConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes, sized for a photo upload plus form overhead
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// Origins splits AllowedOrigins.
func (s SecurityConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// FeaturesConfig holds the initial feature flag values.
type FeaturesConfig struct {
	NativeLogin         bool `json:"native_login"`
	ChallengeOverride   bool `json:"challenge_override"`
	EventHooks          bool `json:"event_hooks"`
	AutoApproveCheckout bool `json:"auto_approve_checkout"`
}

// NativeConfig supplies what the host app would hand over on login.
type NativeConfig struct {
	AuthorizationCode string `json:"authorization_code"`
	Referrer          string `json:"referrer"`
}

// LoadDotEnv loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			DisplayName:          getEnv("APP_DISPLAY_NAME", "습관환급"),
			SupportEmail:         getEnv("SUPPORT_EMAIL", "support@habitrefund.example"),
			SupportHours:         getEnv("SUPPORT_HOURS", "평일 10:00~18:00 (KST)"),
			CompanyName:          getEnv("COMPANY_NAME", "운영사"),
			PrivacyEffectiveDate: getEnv("PRIVACY_EFFECTIVE_DATE", "2025-12-21"),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		},
		Storage: StorageConfig{
			TokenDBPath: getEnv("TOKEN_DB_PATH", "./habitrefund.db"),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTLSeconds:    getEnvInt("CATALOG_CACHE_TTL", 300),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),
			Environment: getEnv("TRACING_ENVIRONMENT", "development"),
		},
		Shell: ServerConfig{
			Port: getEnv("SHELL_PORT", "3000"),
			Host: getEnv("SHELL_HOST", ""),
		},
		Stub: StubConfig{
			Port:        getEnv("STUB_PORT", "8080"),
			Host:        getEnv("STUB_HOST", ""),
			PaymentMode: getEnv("STUB_PAYMENT_MODE", "mock"),
		},
		Security: SecurityConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 16<<20),
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Features: FeaturesConfig{
			NativeLogin:         getEnvBool("FEATURE_NATIVE_LOGIN", true),
			ChallengeOverride:   getEnvBool("FEATURE_CHALLENGE_OVERRIDE", true),
			EventHooks:          getEnvBool("FEATURE_EVENT_HOOKS", true),
			AutoApproveCheckout: getEnvBool("FEATURE_AUTO_APPROVE_CHECKOUT", false),
		},
		Native: NativeConfig{
			AuthorizationCode: getEnv("TOSS_AUTHORIZATION_CODE", ""),
			Referrer:          getEnv("TOSS_REFERRER", "DEFAULT"),
		},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	stringVars := map[string]*string{
		"APP_DISPLAY_NAME":        &cfg.App.DisplayName,
		"SUPPORT_EMAIL":           &cfg.App.SupportEmail,
		"SUPPORT_HOURS":           &cfg.App.SupportHours,
		"COMPANY_NAME":            &cfg.App.CompanyName,
		"PRIVACY_EFFECTIVE_DATE":  &cfg.App.PrivacyEffectiveDate,
		"API_BASE_URL":            &cfg.Backend.BaseURL,
		"TOKEN_DB_PATH":           &cfg.Storage.TokenDBPath,
		"REDIS_ADDR":              &cfg.Cache.RedisAddr,
		"REDIS_PASSWORD":          &cfg.Cache.RedisPassword,
		"TRACING_ENDPOINT":        &cfg.Tracing.Endpoint,
		"TRACING_ENVIRONMENT":     &cfg.Tracing.Environment,
		"SHELL_PORT":              &cfg.Shell.Port,
		"SHELL_HOST":              &cfg.Shell.Host,
		"STUB_PORT":               &cfg.Stub.Port,
		"STUB_HOST":               &cfg.Stub.Host,
		"STUB_PAYMENT_MODE":       &cfg.Stub.PaymentMode,
		"ALLOWED_ORIGINS":         &cfg.Security.AllowedOrigins,
		"TOSS_AUTHORIZATION_CODE": &cfg.Native.AuthorizationCode,
		"TOSS_REFERRER":           &cfg.Native.Referrer,
	}
	for key, dst := range stringVars {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"REDIS_DB":          &cfg.Cache.RedisDB,
		"CATALOG_CACHE_TTL": &cfg.Cache.TTLSeconds,
		"RATE_LIMIT_RATE":   &cfg.RateLimit.Rate,
		"RATE_LIMIT_WINDOW": &cfg.RateLimit.Window,
	}
	for key, dst := range intVars {
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}

	boolVars := map[string]*bool{
		"TRACING_ENABLED":               &cfg.Tracing.Enabled,
		"RATE_LIMIT_ENABLED":            &cfg.RateLimit.Enabled,
		"FEATURE_NATIVE_LOGIN":          &cfg.Features.NativeLogin,
		"FEATURE_CHALLENGE_OVERRIDE":    &cfg.Features.ChallengeOverride,
		"FEATURE_EVENT_HOOKS":           &cfg.Features.EventHooks,
		"FEATURE_AUTO_APPROVE_CHECKOUT": &cfg.Features.AutoApproveCheckout,
	}
	for key, dst := range boolVars {
		if v := os.Getenv(key); v != "" {
			*dst = parseBool(v)
		}
	}

	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value)
	}
	return defaultValue
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base url must be an absolute http(s) url, got %q", c.Backend.BaseURL)
	}
	if c.Storage.TokenDBPath == "" {
		return fmt.Errorf("token database path is required")
	}
	if c.Shell.Port == "" {
		return fmt.Errorf("shell port is required")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("catalog cache ttl must not be negative")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	switch c.Stub.PaymentMode {
	case "mock", "live":
	default:
		return fmt.Errorf("stub payment mode must be mock or live, got %q", c.Stub.PaymentMode)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	return nil
}
