package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/lineservio/lineserv/pkg/config"
	"github.com/lineservio/lineserv/pkg/core"
	obsprom "github.com/lineservio/lineserv/pkg/observability/prometheus"
	"github.com/lineservio/lineserv/pkg/observability/tracing"
	"github.com/lineservio/lineserv/pkg/server"
)

func main() {
	var (
		configPath     = flag.String("config", "", "path to YAML config file")
		addr           = flag.String("addr", "", "listen address (overrides config)")
		workers        = flag.Int("workers", 0, "worker pool size (overrides config)")
		queueCap       = flag.Int("queue", 0, "task queue capacity (overrides config)")
		enqueueTimeout = flag.Duration("enqueue-timeout", 0, "enqueue timeout before server busy (overrides config)")
		maxInFlight    = flag.Int("max-in-flight", 0, "per-connection in-flight request cap (overrides config)")
		adminAddr      = flag.String("admin-addr", "", "admin endpoint address for /metrics (overrides config)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		if err := config.Load(*configPath, cfg); err != nil {
			log.Fatalf("config: %v", err)
		}
	} else if err := config.ApplyEnvOverrides("LINESERV", cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Flags win over file and environment.
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *queueCap > 0 {
		cfg.QueueCapacity = *queueCap
	}
	if *enqueueTimeout > 0 {
		cfg.EnqueueTimeout = *enqueueTimeout
	}
	if *maxInFlight > 0 {
		cfg.MaxInFlight = *maxInFlight
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := core.NewDefaultLogger()

	observers := []server.Observer{obsprom.NewServerObserver()}
	if cfg.Tracing {
		shutdown, err := tracing.Setup(context.Background(), "lineserv")
		if err != nil {
			log.Fatalf("tracing: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warnf("tracing shutdown: %v", err)
			}
		}()
		observers = append(observers, tracing.NewTaskObserver())
	}

	srv := server.New(cfg)
	srv.SetLogger(logger)
	srv.SetObserver(server.CombineObservers(observers...))

	var admin *fasthttp.Server
	if cfg.AdminAddr != "" {
		admin = newAdminServer(srv)
		go func() {
			logger.Infof("admin endpoint on %s", cfg.AdminAddr)
			if err := admin.ListenAndServe(cfg.AdminAddr); err != nil {
				logger.Errorf("admin endpoint: %v", err)
			}
		}()

		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				obsprom.UpdateServerMetrics(srv)
			}
		}()
	}

	startErr := make(chan error, 1)
	go func() {
		startErr <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
		if err := srv.Stop(); err != nil {
			logger.Errorf("stop: %v", err)
		}
		if err := <-startErr; err != nil {
			log.Fatalf("server: %v", err)
		}
	case err := <-startErr:
		// Bind failure or listener error before any signal.
		if err != nil {
			log.Fatalf("server: %v", err)
		}
	}

	if admin != nil {
		if err := admin.Shutdown(); err != nil {
			logger.Warnf("admin shutdown: %v", err)
		}
	}
}

// newAdminServer exposes /metrics, /live and /ready.
func newAdminServer(srv *server.Server) *fasthttp.Server {
	metricsHandler := obsprom.MetricsHandler()

	handler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/metrics":
			metricsHandler(ctx)
		case "/live":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString(`{"status":"up"}`)
		case "/ready":
			m := srv.Metrics()
			ready := m.State == "running" && m.QueueUtilization < 90
			if ready {
				ctx.SetStatusCode(fasthttp.StatusOK)
			} else {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			}
			ctx.SetBodyString(`{"ready":` + boolJSON(ready) + `}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	return &fasthttp.Server{
		Handler: handler,
		Name:    "lineserv-admin",
	}
}

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
