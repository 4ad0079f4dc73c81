package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/auth"
)

type Config struct {
	APIPort  string
	LogLevel string

	BackendURL            string
	BackendTimeout        time.Duration
	BackendContractStrict bool
	BackendRetryAttempts  int
	BackendBreakerEnabled bool

	AuthPublishableKey string
	AuthToken          string
	AuthTokenFile      string

	PollInterval       time.Duration
	UploadSettleDelay  time.Duration
	UploadErrorDismiss time.Duration

	DisplayLocale   string
	DisplayTimezone string

	PostgresDSN string
	SnapshotKey string

	NATSURL     string
	NATSSubject string

	StoragePath string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIMaxConnections int
}

// LoadEnvironment fills unset variables from .env files and the YAML file named
// by CONFIG_FILE. Variables already present in the process environment win.
func LoadEnvironment(dotenvFiles ...string) error {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, path := range dotenvFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return domain.WrapError(domain.ErrConfig, "load dotenv", err)
		}
	}

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.WrapError(domain.ErrConfig, "read config file", err)
	}
	return applyOverlay(raw)
}

// applyOverlay reads a flat YAML mapping of variable names to scalar values.
func applyOverlay(raw []byte) error {
	var values map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return domain.WrapError(domain.ErrConfig, "parse config file", err)
	}
	for key, node := range values {
		if node.Kind != yaml.ScalarNode {
			return domain.WrapError(domain.ErrConfig, "parse config file", fmt.Errorf("%s must be a scalar", key))
		}
		name := strings.ToUpper(strings.TrimSpace(key))
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, node.Value); err != nil {
			return domain.WrapError(domain.ErrConfig, "apply config file", err)
		}
	}
	return nil
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8081"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		BackendURL:            strings.TrimRight(mustEnv("BACKEND_URL", ""), "/"),
		BackendTimeout:        mustEnvDuration("BACKEND_TIMEOUT", 30*time.Second),
		BackendContractStrict: mustEnvBool("BACKEND_CONTRACT_STRICT", false),
		BackendRetryAttempts:  mustEnvInt("BACKEND_RETRY_ATTEMPTS", 2),
		BackendBreakerEnabled: mustEnvBool("BACKEND_BREAKER_ENABLED", true),

		AuthPublishableKey: mustEnv("AUTH_PUBLISHABLE_KEY", ""),
		AuthToken:          mustEnv("AUTH_TOKEN", ""),
		AuthTokenFile:      mustEnv("AUTH_TOKEN_FILE", ""),

		PollInterval:       mustEnvDuration("POLL_INTERVAL", 5*time.Second),
		UploadSettleDelay:  mustEnvDuration("UPLOAD_SETTLE_DELAY", 2*time.Second),
		UploadErrorDismiss: mustEnvDuration("UPLOAD_ERROR_DISMISS", 0),

		DisplayLocale:   mustEnv("DISPLAY_LOCALE", "en-US"),
		DisplayTimezone: mustEnv("DISPLAY_TIMEZONE", "Local"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),
		SnapshotKey: mustEnv("SNAPSHOT_KEY", "default"),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "documents.status"),

		StoragePath: mustEnv("STORAGE_PATH", "."),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIMaxConnections: mustEnvInt("API_MAX_CONNECTIONS", 256),
	}
}

// Validate reports every missing or malformed value at once, wrapped in ErrConfig.
func (c Config) Validate() error {
	var errs []error

	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BACKEND_URL %q must be an absolute http(s) URL", c.BackendURL))
	}

	if strings.TrimSpace(c.AuthPublishableKey) == "" {
		errs = append(errs, errors.New("AUTH_PUBLISHABLE_KEY is required"))
	} else if _, err := auth.ParsePublishableKey(c.AuthPublishableKey); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_PUBLISHABLE_KEY: %w", err))
	}

	if strings.TrimSpace(c.AuthToken) == "" && strings.TrimSpace(c.AuthTokenFile) == "" {
		errs = append(errs, errors.New("AUTH_TOKEN or AUTH_TOKEN_FILE is required"))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.UploadSettleDelay < 0 || c.UploadErrorDismiss < 0 {
		errs = append(errs, errors.New("upload delays must not be negative"))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("BACKEND_TIMEOUT must be positive"))
	}
	if c.APIRateLimitRPS < 0 || c.APIRateLimitBurst < 0 || c.APIMaxInFlight < 0 || c.APIMaxConnections < 0 {
		errs = append(errs, errors.New("API traffic limits must not be negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrConfig, "validate config", errors.Join(errs...))
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("5s") and bare seconds ("5").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
