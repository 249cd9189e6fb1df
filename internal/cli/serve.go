package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/recognition"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(f *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recognition endpoint and metrics over HTTP",
		Long: "Listen for multipart audio uploads on POST / and answer with the\n" +
			"recognition result. Prometheus metrics are served on /metrics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.loadEnv(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = e.cfg.Serve.Addr
			}

			var id recognition.Identifier
			client, err := recognition.New(e.cfg.ACR, recognition.WithLogger(e.log))
			switch {
			case err == nil:
				id = client
			case errors.Is(err, recognition.ErrNotConfigured):
				e.log.Warn().Msg("ACR credentials missing; recognition requests will fail")
			default:
				return err
			}

			e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := &http.Server{
				Addr:              addr,
				Handler:           newServeMux(id, e.registry, e.log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return listen(ctx, srv, e.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :3001)")
	return cmd
}

// newServeMux mounts the recognition handler at / and metrics at /metrics.
func newServeMux(id recognition.Identifier, reg *prometheus.Registry, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Mount("/", recognition.NewHandler(id, log))
	return r
}

// listen serves until ctx is done, then shuts down gracefully.
func listen(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
