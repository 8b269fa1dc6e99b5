package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sourcer/api"
	"sourcer/scheduler"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the estimate HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != "" {
			cfg.Server.Port = servePort
		}

		p, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		srv := api.NewServer(cfg.Server, p.orchestrator, p.extractor.Name())

		if p.store != nil {
			srv.SetStats(p.store)

			sched := scheduler.New(cfg.Scheduler, p.store)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()
		}

		zap.L().Info("sourcer running", zap.String("port", cfg.Server.Port))
		if err := srv.Run(ctx); err != nil {
			return err
		}
		zap.L().Info("goodbye")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
}
