// gridentify: the tile-merge game server and its solver.
//
//	gridentify serve            HTTP + WebSocket server
//	gridentify bot              offline autoplay with the Lucid solver
//	gridentify scores           print the leaderboard
//
// Configuration comes from flags, the environment (.env is loaded first),
// an optional gridentify.yaml and built-in defaults, in that order.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/gridentify/internal/config"
)

var (
	pretty bool

	rootCmd = &cobra.Command{
		Use:           "gridentify",
		Short:         "Gridentify game server and expected-score solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"log-level": "log_level",
	"db":        "db_path",
	"port":      "port",
	"domain":    "domain",
	"depth":     "solver_depth",
	"chain":     "max_chain",
	"limit":     "leaderboard_size",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&pretty, "pretty", false, "human-readable console logs")
	pf.String("log-level", "", "zerolog level (LOG_LEVEL)")
	pf.String("db", "", "SQLite database path (DB_PATH)")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("gridentify exited")
	}
}

// loadConfig binds the flags cmd defines and loads the configuration.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := config.New()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Config{}, err
			}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
