package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/gridentify/assets"
	"github.com/robalobadob/gridentify/internal/config"
	"github.com/robalobadob/gridentify/internal/httpserver"
	"github.com/robalobadob/gridentify/internal/leaderboard"
	"github.com/robalobadob/gridentify/internal/lucid"
	"github.com/robalobadob/gridentify/internal/store"
)

const (
	shutdownGrace  = 10 * time.Second
	janitorEvery   = time.Minute
	readHeaderWait = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket game server",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("port", "", "listen port without TLS (PORT)")
	f.String("domain", "", "serve HTTPS on :443 with Let's Encrypt certificates for this domain (DOMAIN)")
	f.Int("depth", 0, "hint solver depth (SOLVER_DEPTH)")
	f.Int("chain", 0, "longest chain the solver considers (MAX_CHAIN)")
	rootCmd.AddCommand(serveCmd)
}

// listener is one http.Server and how to start it.
type listener struct {
	srv   *http.Server
	serve func() error
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(db, assets.Migrations()); err != nil {
		return err
	}

	data := lucid.NewActionData(cfg.MaxChain)
	log.Info().Int("coverageSets", data.Len()).Int("maxChain", cfg.MaxChain).Msg("built action data")
	srv := httpserver.New(cfg, store.NewMemoryStore(), leaderboard.NewStore(db), lucid.NewSolver(data, cfg.SolverDepth))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	listeners := newListeners(cfg, srv.Handler())
	for _, l := range listeners {
		g.Go(func() error {
			log.Info().Str("addr", l.srv.Addr).Msg("starting gridentify")
			if err := l.serve(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error { return srv.RunJanitor(ctx, janitorEvery) })
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		var errs []error
		for _, l := range listeners {
			errs = append(errs, l.srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

// newListeners serves plain HTTP on the configured port, or HTTPS on :443
// plus the ACME challenge responder on :80 when a domain is configured.
func newListeners(cfg config.Config, h http.Handler) []listener {
	if !cfg.TLS() {
		plain := &http.Server{Addr: ":" + cfg.Port, Handler: h, ReadHeaderTimeout: readHeaderWait}
		return []listener{{srv: plain, serve: plain.ListenAndServe}}
	}

	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domain),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}
	secure := &http.Server{Addr: ":443", Handler: h, TLSConfig: m.TLSConfig(), ReadHeaderTimeout: readHeaderWait}
	challenge := &http.Server{Addr: ":80", Handler: m.HTTPHandler(nil), ReadHeaderTimeout: readHeaderWait}
	return []listener{
		{srv: secure, serve: func() error { return secure.ListenAndServeTLS("", "") }},
		{srv: challenge, serve: challenge.ListenAndServe},
	}
}
