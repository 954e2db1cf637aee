package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap"
	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/usecase/compliance"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the auto scan scheduler",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.Server.Addr
		}
		maxUpload, _ := cmd.Flags().GetInt64("max-upload-mb")

		runCtx, stop := context.WithCancel(ctx)
		defer stop()

		schedulerDone := make(chan error, 1)
		if app.Config.Scheduler.Enabled {
			scheduler := compliance.NewScheduler(svc)
			go func() {
				schedulerDone <- scheduler.Run(runCtx)
			}()
		} else {
			schedulerDone <- nil
			logging.Info(ctx, "scheduler disabled by config")
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           newAPIHandler(svc, apiOptions{MaxUploadBytes: maxUpload << 20}),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(_ net.Listener) context.Context {
				return runCtx
			},
		}

		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		logging.Info(ctx, "api server started", slog.String("addr", addr))
		err := server.ListenAndServe()
		stop()
		if schedErr := <-schedulerDone; schedErr != nil {
			logging.Error(ctx, "scheduler stopped with error", slog.Any("err", errs.Loggable(schedErr)))
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "api server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve api")
		}
		logging.Info(ctx, "api server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (defaults to server.addr)")
	serveCmd.Flags().Int64("max-upload-mb", 32, "Max multipart upload size for POST /scan, in MiB")
}
