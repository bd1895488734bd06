package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	deliveryhttp "github.com/akirachix/mlimizone-backend/internal/delivery/http"
	"github.com/akirachix/mlimizone-backend/internal/service"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the USSD and payment callback endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var callbacks deliveryhttp.CallbackHandler = a.payments
			if cfg.CallbackQueue {
				callbacks = service.NewCallbackQueue(a.callbacks)
				// Consumer: payments.callbacks → PaymentService.HandleCallback
				go a.payments.ConsumeCallbacks(ctx, a.callbacks, "mlimizone-callbacks")
				slog.Info("🔄 Payment callback consumer started")
			}

			if cfg.SweepInterval > 0 {
				go sweepLoop(ctx, a.payments, cfg.PaymentExpiry, cfg.SweepInterval)
			}

			httpServer := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           deliveryhttp.NewRouter(deliveryhttp.NewHandler(a.engine, callbacks)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				slog.Info("🚀 HTTP server starting", "addr", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("HTTP server error", "err", err)
					cancel()
				}
			}()

			<-ctx.Done()
			slog.Info("Shutting down...")
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}

// sweepLoop fails stale pending payments every interval until ctx is cancelled.
func sweepLoop(ctx context.Context, payments *service.PaymentService, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := payments.ExpireStale(ctx, maxAge); err != nil {
				slog.Error("Payment sweep failed", "err", err)
			}
		}
	}
}
