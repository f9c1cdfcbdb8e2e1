package cmd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/wayneeseguin/omnipipe/pkg/omni"
)

var (
	serveListen    string
	serveHeartbeat time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline with metrics and health endpoints",
	Long: `Runs a provider until interrupted, logging a heartbeat entry every
--heartbeat interval.

Endpoints:
  /metrics   Prometheus metrics
  /healthz   health evaluated at request time as JSON, 503 when unhealthy
  /readyz    200 when the pipeline is operational and not unhealthy`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":9464", "address for the HTTP endpoints")
	serveCmd.Flags().DurationVar(&serveHeartbeat, "heartbeat", 10*time.Second, "heartbeat log interval, 0 disables")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("load config", err)
		return err
	}
	provider, err := omni.NewWithConfig(cfg)
	if err != nil {
		printError("create provider", err)
		return err
	}
	defer provider.Close()

	logger, err := provider.CreateLogger("omnipipe.serve")
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", serveListen)
	if err != nil {
		printError("listen", err)
		return err
	}
	srv := &http.Server{Handler: newMux(provider), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, err, "HTTP server stopped")
			stop()
		}
	}()
	logger.Info(ctx, "Serving endpoints on {Address}", ln.Addr().String())

	heartbeat(ctx, logger, serveHeartbeat)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info(context.Background(), "Shutting down")
	return srv.Shutdown(shutdownCtx)
}

// heartbeat logs one entry per interval until ctx is done.
func heartbeat(ctx context.Context, logger *omni.Logger, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for beat := 1; ; beat++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug(ctx, "Heartbeat {Beat}", beat)
		}
	}
}

// newMux exposes provider metrics and health probes.
func newMux(provider *omni.Provider) *http.ServeMux {
	registry := prometheus.NewRegistry()
	registry.MustRegister(provider.PrometheusCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := provider.Evaluate()
		w.Header().Set("Content-Type", "application/json")
		if !report.IsReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !provider.IsOperational() || !provider.Evaluate().IsReady() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
