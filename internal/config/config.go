package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Voice    VoiceConfig
	LLM      LLMConfig
	Calendar CalendarConfig
	Registry RegistryConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// VoiceConfig configures the outbound voice-call provider.
type VoiceConfig struct {
	APIKey  string
	BaseURL string

	// DefaultVoice is the voice id used when a call does not specify one.
	DefaultVoice string

	// WebhookBaseURL, when set, is registered with each placed call so the
	// provider reports status changes back to /api/call-webhook.
	WebhookBaseURL string

	// WebhookSecret, when set, enables signed webhook tokens. Deliveries
	// without a valid token are rejected.
	WebhookSecret   string
	WebhookTokenTTL time.Duration
}

type LLMConfig struct {
	APIKey string

	// Model serves transcript extraction; AgentModel drives the
	// tool-calling availability agent. AgentModel defaults to Model.
	Model      string
	AgentModel string
}

// CalendarConfig configures the Google Calendar backend for the
// availability agent's free-slot tool. Optional: without credentials the
// agent runs without calendar tools and availability degrades to empty.
type CalendarConfig struct {
	CredentialsFile string
	CalendarID      string
}

type RegistryBackend string

const (
	RegistryBackendMemory   RegistryBackend = "memory"
	RegistryBackendRedis    RegistryBackend = "redis"
	RegistryBackendPostgres RegistryBackend = "postgres"
)

type RegistryConfig struct {
	Backend RegistryBackend

	RedisHost string
	RedisPort int

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Voice.APIKey = os.Getenv("BLAND_API_KEY")
	c.Voice.BaseURL = strings.TrimSpace(os.Getenv("BLAND_BASE_URL"))
	c.Voice.DefaultVoice = strings.TrimSpace(os.Getenv("VOICE_ID"))
	c.Voice.WebhookBaseURL = strings.TrimSpace(os.Getenv("WEBHOOK_BASE_URL"))
	c.Voice.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	c.Voice.WebhookTokenTTL = optDuration("WEBHOOK_TOKEN_TTL")

	c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	c.LLM.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	c.LLM.AgentModel = strings.TrimSpace(os.Getenv("AGENT_MODEL"))

	c.Calendar.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_FILE"))
	c.Calendar.CalendarID = strings.TrimSpace(os.Getenv("CALENDAR_ID"))

	c.Registry.Backend = RegistryBackend(strings.TrimSpace(os.Getenv("REGISTRY_BACKEND")))
	c.Registry.RedisHost = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if v := strings.TrimSpace(os.Getenv("REDIS_PORT")); v != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Registry.RedisPort = n
	}
	c.Registry.DBHost = strings.TrimSpace(os.Getenv("DB_HOST"))
	if v := strings.TrimSpace(os.Getenv("DB_PORT")); v != "" {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Registry.DBPort = n
	}
	c.Registry.DBUser = strings.TrimSpace(os.Getenv("DB_USER"))
	c.Registry.DBPassword = os.Getenv("DB_PASSWORD")
	c.Registry.DBName = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.Registry.DBSSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Voice.BaseURL == "" {
		c.Voice.BaseURL = "https://api.bland.ai"
	}
	if c.Voice.DefaultVoice == "" {
		c.Voice.DefaultVoice = "josh"
	}
	if c.Voice.WebhookTokenTTL <= 0 {
		// Calls can complete long after placement; keep tokens valid for days.
		c.Voice.WebhookTokenTTL = 72 * time.Hour
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.AgentModel == "" {
		c.LLM.AgentModel = c.LLM.Model
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Registry.Backend == "" {
		c.Registry.Backend = RegistryBackendMemory
	}
	if c.Registry.DBSSLMode == "" && !c.IsProduction() {
		// Local-friendly default; production must be explicit.
		c.Registry.DBSSLMode = "disable"
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Voice.APIKey == "" {
		errs = append(errs, errors.New("BLAND_API_KEY is required"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}

	switch c.Registry.Backend {
	case RegistryBackendMemory:
	case RegistryBackendRedis:
		if c.Registry.RedisHost == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when REGISTRY_BACKEND=redis"))
		}
		if c.Registry.RedisPort <= 0 || c.Registry.RedisPort > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Registry.RedisPort))
		}
	case RegistryBackendPostgres:
		if c.Registry.DBHost == "" {
			errs = append(errs, errors.New("DB_HOST is required when REGISTRY_BACKEND=postgres"))
		}
		if c.Registry.DBPort <= 0 || c.Registry.DBPort > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.Registry.DBPort))
		}
		if c.Registry.DBUser == "" {
			errs = append(errs, errors.New("DB_USER is required when REGISTRY_BACKEND=postgres"))
		}
		if c.Registry.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required when REGISTRY_BACKEND=postgres"))
		}
		if c.Registry.DBSSLMode == "" {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else if !isValidSSLMode(c.Registry.DBSSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.Registry.DBSSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("REGISTRY_BACKEND must be one of memory, redis, postgres, got %q", c.Registry.Backend))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Registry.DBHost,
		c.Registry.DBPort,
		c.Registry.DBUser,
		c.Registry.DBPassword,
		c.Registry.DBName,
		c.Registry.DBSSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Registry.RedisHost, c.Registry.RedisPort)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
