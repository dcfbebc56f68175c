package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret is used when SESSION_SECRET is not configured.
const DefaultSessionSecret = "a_very_long_and_random_secret_string"

// Upload backends.
const (
	BackendFal       = "fal"
	BackendSupabase  = "supabase"
	BackendNodeImage = "nodeimage"
)

// APIKeys holds the API keys for various services.
type APIKeys struct {
	Fal       string `json:"FAL_KEY"`
	Gemini    string `json:"GEMINI_API_KEY"`
	NodeImage string `json:"NODEIMAGE_API_KEY"`
	// DreamSun guards the /v1 API.
	DreamSun string `json:"DREAMSUN_API_KEY"`
}

// SupabaseCredentials holds the credentials for Supabase Storage.
type SupabaseCredentials struct {
	URL        string `json:"SUPABASE_URL"`
	ServiceKey string `json:"SUPABASE_SERVICE_KEY"`
	Bucket     string `json:"SUPABASE_BUCKET"`
}

// RedisSettings holds the connection settings of the history store.
// An empty Addr keeps history in memory.
type RedisSettings struct {
	Addr     string `json:"REDIS_ADDR"`
	Username string `json:"REDIS_USERNAME"`
	Password string `json:"REDIS_PASSWORD"`
	UseTLS   bool   `json:"REDIS_USE_TLS"`
}

// Settings holds optional application settings.
type Settings struct {
	Port                 string   `json:"PORT"`
	UploadBackend        string   `json:"UPLOAD_BACKEND"`
	FalQueue             bool     `json:"FAL_QUEUE"`
	PollInterval         Duration `json:"POLL_INTERVAL"`
	RequestTimeout       Duration `json:"REQUEST_TIMEOUT"`
	MaxUploadBytes       int64    `json:"MAX_UPLOAD_BYTES"`
	MaxConcurrentUploads int      `json:"MAX_CONCURRENT_UPLOADS"`
	HistoryLimit         int      `json:"HISTORY_LIMIT"`
	WebPassword          string   `json:"WEB_PASSWORD"`
	SessionSecret        string   `json:"SESSION_SECRET"`
	StaticDir            string   `json:"STATIC_DIR"`
}

// Config holds the entire application configuration.
type Config struct {
	APIKeys  APIKeys             `json:"API_KEYS"`
	Supabase SupabaseCredentials `json:"SUPABASE"`
	Redis    RedisSettings       `json:"REDIS"`
	Settings Settings            `json:"SETTINGS"`
}

// Duration reads either a Go duration string ("1500ms") or whole seconds from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := parseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig is the global configuration instance.
var AppConfig *Config

// Default returns the configuration used before any file or environment is read.
func Default() *Config {
	return &Config{
		Supabase: SupabaseCredentials{Bucket: "uploads"},
		Settings: Settings{
			Port:                 "8080",
			UploadBackend:        BackendFal,
			FalQueue:             true,
			PollInterval:         Duration(time.Second),
			RequestTimeout:       Duration(5 * time.Minute),
			MaxUploadBytes:       10 << 20,
			MaxConcurrentUploads: 4,
			HistoryLimit:         50,
			SessionSecret:        DefaultSessionSecret,
			StaticDir:            "static",
		},
	}
}

// LoadConfig loads the configuration from defaults, conf.json, .env, and
// environment variables into AppConfig.
func LoadConfig() error {
	// .env never overrides variables already present in the process environment.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := Load("conf.json")
	if err != nil {
		return err
	}
	AppConfig = cfg
	log.Println("Configuration loaded successfully.")
	return nil
}

// Load builds a configuration from defaults, the JSON file at path (if it
// exists) and the process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err == nil {
			defer file.Close()
			if err := json.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("could not decode %s: %w", path, err)
			}
			log.Printf("Loaded configuration from %s", path)
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: Could not open %s: %v", path, err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv overrides existing values with environment variables.
func (c *Config) loadFromEnv() error {
	// API Keys
	if key := getEnv("FAL_KEY", os.Getenv("FAL_API_KEY")); key != "" {
		c.APIKeys.Fal = key
	}
	setString(&c.APIKeys.Gemini, "GEMINI_API_KEY")
	setString(&c.APIKeys.NodeImage, "NODEIMAGE_API_KEY")
	setString(&c.APIKeys.DreamSun, "DREAMSUN_API_KEY")

	// Supabase
	setString(&c.Supabase.URL, "SUPABASE_URL")
	setString(&c.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setString(&c.Supabase.Bucket, "SUPABASE_BUCKET")

	// Redis
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Username, "REDIS_USERNAME")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	// Settings
	setString(&c.Settings.Port, "PORT")
	setString(&c.Settings.UploadBackend, "UPLOAD_BACKEND")
	setString(&c.Settings.WebPassword, "WEB_PASSWORD")
	setString(&c.Settings.SessionSecret, "SESSION_SECRET")
	setString(&c.Settings.StaticDir, "STATIC_DIR")

	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	collect(setBool(&c.Redis.UseTLS, "REDIS_USE_TLS"))
	collect(setBool(&c.Settings.FalQueue, "FAL_QUEUE"))
	collect(setDuration(&c.Settings.PollInterval, "POLL_INTERVAL"))
	collect(setDuration(&c.Settings.RequestTimeout, "REQUEST_TIMEOUT"))
	collect(setInt64(&c.Settings.MaxUploadBytes, "MAX_UPLOAD_BYTES"))
	collect(setInt(&c.Settings.MaxConcurrentUploads, "MAX_CONCURRENT_UPLOADS"))
	collect(setInt(&c.Settings.HistoryLimit, "HISTORY_LIMIT"))
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks that the configuration can serve requests.
func (c *Config) Validate() error {
	if c.APIKeys.Fal == "" && c.APIKeys.Gemini == "" {
		return fmt.Errorf("FAL_KEY or GEMINI_API_KEY is required")
	}
	switch c.Settings.UploadBackend {
	case BackendFal:
		if c.APIKeys.Fal == "" {
			return fmt.Errorf("FAL_KEY is required for the %q upload backend", BackendFal)
		}
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" || c.Supabase.Bucket == "" {
			return fmt.Errorf("SUPABASE_URL, SUPABASE_SERVICE_KEY and SUPABASE_BUCKET are required for the %q upload backend", BackendSupabase)
		}
	case BackendNodeImage:
		if c.APIKeys.NodeImage == "" {
			return fmt.Errorf("NODEIMAGE_API_KEY is required for the %q upload backend", BackendNodeImage)
		}
	default:
		return fmt.Errorf("unknown UPLOAD_BACKEND %q", c.Settings.UploadBackend)
	}
	if c.Settings.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Settings.MaxConcurrentUploads <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_UPLOADS must be positive")
	}
	if c.Settings.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if c.Settings.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Settings.Port, ":") {
		return c.Settings.Port
	}
	return ":" + c.Settings.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setBool(dst *bool, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := parseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
