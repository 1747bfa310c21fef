// internal/config/config.go
//
// Server and bot configuration.
// Sources, lowest precedence first:
//   - defaults below
//   - ./gridentify.yaml (optional)
//   - environment (PORT, LOG_LEVEL, JWT_SECRET, ...), usually from .env
//   - command-line flags bound by the caller
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/robalobadob/gridentify/internal/lucid"
)

// DevSecret is the JWT secret used when none is configured.
const DevSecret = "dev_secret_change_me"

type Config struct {
	Port            string        `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	ClientOrigin    string        `mapstructure:"client_origin"`
	DBPath          string        `mapstructure:"db_path"`
	Domain          string        `mapstructure:"domain"`
	CertCacheDir    string        `mapstructure:"cert_cache_dir"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	RateBurst       int           `mapstructure:"rate_burst"`
	SolverDepth     int           `mapstructure:"solver_depth"`
	MaxChain        int           `mapstructure:"max_chain"`
	HintTimeout     time.Duration `mapstructure:"hint_timeout"`
	MaxSolvers      int           `mapstructure:"max_solvers"`
	LeaderboardSize int           `mapstructure:"leaderboard_size"`
	DailySalt       string        `mapstructure:"daily_salt"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
}

var defaults = map[string]any{
	"port":             "5175",
	"log_level":        "info",
	"jwt_secret":       DevSecret,
	"client_origin":    "http://localhost:5173",
	"db_path":          "./data/gridentify.db",
	"domain":           "",
	"cert_cache_dir":   "./data/certs",
	"rate_per_second":  1.0,
	"rate_burst":       3,
	"solver_depth":     2, // ~2s per hint; 3 takes over a minute
	"max_chain":        lucid.DefaultMaxChain,
	"hint_timeout":     "5s",
	"max_solvers":      4,
	"leaderboard_size": 10,
	"daily_salt":       "local_dev_salt",
	"token_ttl":        "24h",
}

// New returns a viper instance with defaults registered and the environment
// bound. Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetConfigName("gridentify")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is empty"))
	}
	if c.SolverDepth < 0 || c.SolverDepth > lucid.MaxDepthLimit {
		errs = append(errs, fmt.Errorf("solver_depth %d outside [0, %d]", c.SolverDepth, lucid.MaxDepthLimit))
	}
	if c.MaxChain < 2 || c.MaxChain > lucid.MaxChainLimit {
		errs = append(errs, fmt.Errorf("max_chain %d outside [2, %d]", c.MaxChain, lucid.MaxChainLimit))
	}
	if c.RatePerSecond <= 0 || c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate limit %g/s burst %d must be positive", c.RatePerSecond, c.RateBurst))
	}
	if c.MaxSolvers < 1 {
		errs = append(errs, fmt.Errorf("max_solvers %d must be at least 1", c.MaxSolvers))
	}
	if c.HintTimeout <= 0 || c.TokenTTL <= 0 {
		errs = append(errs, errors.New("hint_timeout and token_ttl must be positive"))
	}
	if c.LeaderboardSize < 1 {
		errs = append(errs, fmt.Errorf("leaderboard_size %d must be at least 1", c.LeaderboardSize))
	}
	if c.JWTSecret == "" || (c.TLS() && c.JWTSecret == DevSecret) {
		errs = append(errs, errors.New("jwt_secret must be set when serving TLS"))
	}
	return errors.Join(errs...)
}

// TLS reports whether certificates should be obtained for Domain.
func (c Config) TLS() bool { return c.Domain != "" }
