package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultPort         = "8080"
	DefaultPredictorURL = "http://127.0.0.1:5000"
	DefaultSessionTTL   = 2 * time.Hour
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"https://liverguardian-frontend.onrender.com",
}

type Config struct {
	Port             string
	PredictorURL     string
	PredictorTimeout time.Duration
	DiscardStale     bool
	RevealDelay      time.Duration
	SessionTTL       time.Duration
	CORSOrigins      []string
	DatabaseURL      string
	EnableDB         bool
	GinMode          string
	LogLevel         string
	LogFormat        string
}

// flag name -> viper key; the key upper-cased is the environment variable.
var flagKeys = map[string]string{
	"port":                    "port",
	"predictor-url":           "predictor_url",
	"predictor-timeout":       "predictor_timeout",
	"discard-stale-responses": "discard_stale_responses",
	"reveal-delay":            "reveal_delay",
	"session-ttl":             "session_ttl",
	"log-level":               "log_level",
	"log-format":              "log_format",
}

// RegisterFlags adds the server flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional config file (yaml, json or toml)")
	fs.String("port", DefaultPort, "HTTP listen port")
	fs.String("predictor-url", DefaultPredictorURL, "base URL of the prediction service")
	fs.Duration("predictor-timeout", 0, "per-request predictor timeout (0 = none)")
	fs.Bool("discard-stale-responses", false, "ignore responses to superseded submissions")
	fs.Duration("reveal-delay", 0, "delay before a successful stage is shown")
	fs.Duration("session-ttl", DefaultSessionTTL, "idle lifetime of a dashboard session")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "json", "log format (json, console)")
}

// Load reads .env, an optional config file, the environment and any flags
// in fs, in increasing order of precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("predictor_url", DefaultPredictorURL)
	v.SetDefault("predictor_timeout", time.Duration(0))
	v.SetDefault("discard_stale_responses", false)
	v.SetDefault("reveal_delay", time.Duration(0))
	v.SetDefault("session_ttl", DefaultSessionTTL)
	v.SetDefault("cors_allowed_origins", strings.Join(DefaultCORSOrigins, ","))
	v.SetDefault("enable_db", false)
	v.SetDefault("database_url", "")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Port:             v.GetString("port"),
		PredictorURL:     strings.TrimSpace(v.GetString("predictor_url")),
		PredictorTimeout: v.GetDuration("predictor_timeout"),
		DiscardStale:     v.GetBool("discard_stale_responses"),
		RevealDelay:      v.GetDuration("reveal_delay"),
		SessionTTL:       v.GetDuration("session_ttl"),
		CORSOrigins:      splitList(v.GetString("cors_allowed_origins")),
		DatabaseURL:      v.GetString("database_url"),
		EnableDB:         v.GetBool("enable_db"),
		GinMode:          v.GetString("gin_mode"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	u, err := url.Parse(c.PredictorURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PREDICTOR_URL must be an absolute http(s) URL, got %q", c.PredictorURL)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.PredictorTimeout < 0 || c.RevealDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
