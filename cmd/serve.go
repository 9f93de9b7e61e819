package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/interviewd/internal/server"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve interview sessions over a JSON HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, config := setup(false)
	log.Info("starting the interviewd server", zap.String("version", version))

	c, err := build(ctx, config, log)
	if err != nil {
		log.Fatal("building components", zap.Error(err))
	}
	defer c.Close()

	srv, err := server.New(server.Options{
		Interviewer: c.orchestrator,
		Persist:     c.persist,
		Gauge:       c.metrics,
		Metrics:     c.metrics.Handler(),
		Logger:      log,
	})
	if err != nil {
		log.Fatal("creating the server", zap.Error(err))
	}

	addr := ":8080"
	if config.Server != nil && config.Server.Addr != "" {
		addr = config.Server.Addr
	}

	if err := srv.Run(ctx, addr); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}
