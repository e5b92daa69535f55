package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bleue740/huggy-code-haven-sub000/internal/config"
	"github.com/bleue740/huggy-code-haven-sub000/internal/logging"
	"github.com/bleue740/huggy-code-haven-sub000/internal/routing"
	"github.com/bleue740/huggy-code-haven-sub000/internal/server"
)

func newServeCmd(rf *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve turns over HTTP (SSE) and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rf)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if len(cfg.Server.Tokens) == 0 {
				return exitError(exitInput, "server.tokens is empty; no client could authenticate")
			}

			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := newPipeline(ctx, cfg, log, pipelineOpts{})
			if err != nil {
				return err
			}
			defer p.close()

			if file := rf.v.ConfigFileUsed(); file != "" {
				w, err := config.NewWatcher(file, func() { reloadRouting(file, p.router, p.provider, log) })
				if err != nil {
					log.Warn("config watch disabled", "err", err)
				} else if err := w.Start(); err != nil {
					log.Warn("config watch disabled", "err", err)
				} else {
					defer w.Stop()
					log.Info("watching config", "file", file)
				}
			}

			srv := server.New(p.orch, server.StaticTokens(cfg.Server.Tokens), server.Options{
				Addr:           cfg.Server.Addr,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Ledger:         p.ledger,
				Logger:         log.Logger,
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.addr)")
	return cmd
}

// reloadRouting re-reads the config file and swaps the router's profile,
// keywords and model names. Other settings need a restart.
func reloadRouting(file string, r *routing.Router, provider string, log *logging.Logger) {
	v := viper.New()
	config.Setup(v, file, "")
	if err := v.ReadInConfig(); err != nil {
		log.Warn("config reload failed", "err", err)
		return
	}
	cfg, err := config.Load(v)
	if err != nil {
		log.Warn("config reload failed", "err", err)
		return
	}
	prof, err := routing.Resolve(cfg.Routing.Profile)
	if err != nil {
		log.Warn("config reload failed", "err", err)
		return
	}
	if err := r.Update(prof, routerOverride(cfg, provider)); err != nil {
		log.Warn("config reload failed", "err", err)
		return
	}
	log.Info("routing reloaded", "profile", prof.Name)
}
