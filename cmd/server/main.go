package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yyashhp/sim-exchange/internal/config"
	"github.com/yyashhp/sim-exchange/internal/fanout"
	"github.com/yyashhp/sim-exchange/internal/net"
	"github.com/yyashhp/sim-exchange/internal/session"
	"github.com/yyashhp/sim-exchange/internal/store"
)

var (
	configPath string
	listenAddr string
	dbPath     string
)

func main() {
	root := &cobra.Command{
		Use:   "grocer-server",
		Short: "Real-time multiplayer trading game exchange",
		RunE: func(*cobra.Command, []string) error {
			return run()
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to YAML config (defaults apply when empty)")
	root.Flags().StringVar(&listenAddr, "addr", "", "listen address override")
	root.Flags().StringVar(&dbPath, "db", "", "sqlite database path override")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if dbPath != "" {
		cfg.Server.DatabasePath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	st, err := store.Open(cfg.Server.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Wire the fan-out hub, the game session manager and the transport.
	hub := fanout.NewHub()
	mgr := session.New(cfg, hub, st)
	srv := net.New(cfg.Server.ListenAddr, mgr)

	return srv.Run(ctx)
}
