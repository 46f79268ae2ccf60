package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/studymesh/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves POST /ask, GET /graph, GET /healthz and, when enabled, GET /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := build(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		h := server.NewHandler(app.mesh, func(o *server.Options) {
			o.RequestTimeout = cfg.Server.RequestTimeout
			o.Logger = app.logger
			if app.metrics != nil {
				o.Metrics = app.metrics.Handler()
			}
		})

		srv := server.New(cfg.Server.Addr, h, func(o *server.ServerOptions) {
			o.ReadTimeout = cfg.Server.ReadTimeout
			o.WriteTimeout = cfg.Server.WriteTimeout
			o.ShutdownTimeout = cfg.Server.ShutdownTimeout
			o.Logger = app.logger
		})
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Override server.addr")
}
