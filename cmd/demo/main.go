// Command demo runs a small HTTP service that wires the metrics core into a
// gorilla/mux router alongside the sibling security-headers middleware,
// proving the two coexist in one chain without the core importing the other.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"github.com/arlen-metrics/reqwatch/internal/secheaders"
	"github.com/arlen-metrics/reqwatch/pkg/logger"
	"github.com/arlen-metrics/reqwatch/pkg/metrics"
)

func main() {
	log := logger.NewLogger(logger.Config{Level: "info", Format: "json", Output: "stdout"})
	slog.SetDefault(log)

	cfg, err := loadConfig()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}
	cfg.Logger = logger.SlogAdapter{Logger: log}
	cfg.LogToConsole = true

	reg, err := metrics.Initialize(cfg)
	if err != nil {
		log.Error("metrics initialise failed", "error", err)
		os.Exit(1)
	}
	defer metrics.Terminate()

	secCfg := secheaders.DefaultConfig()
	secCfg.Logger = logger.SlogAdapter{Logger: log}

	router := mux.NewRouter()
	router.Use(secheaders.Headers(secCfg))
	router.Use(metrics.RequestIDMiddleware())

	err = metrics.Register(func(mw func(http.Handler) http.Handler) {
		router.Use(mw)
	}, metrics.InterceptorOptions{
		ExcludePaths: []string{"/healthz"},
		RouteLabel:   routeTemplate,
	})
	if err != nil {
		log.Error("metrics register failed", "error", err)
		os.Exit(1)
	}

	endpoint := metrics.NewEndpoint(metrics.DefaultEndpointConfig())
	router.HandleFunc("/metrics", endpoint.JSONHandler()).Methods(http.MethodGet)
	router.HandleFunc("/metrics/prometheus", endpoint.PrometheusHandler()).Methods(http.MethodGet)
	router.HandleFunc("/metrics/dashboard", endpoint.DashboardHandler()).Methods(http.MethodGet)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		stop, _ := reg.StartTimer("widget_lookup_duration") // demonstrates a custom timer alongside the automatic HTTP metrics
		defer stop()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := metrics.OnServerStart(); err != nil {
		log.Error("metrics OnServerStart failed", "error", err)
		os.Exit(1)
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	}()

	waitForShutdownSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := metrics.OnServerStop(); err != nil {
		log.Error("metrics OnServerStop failed", "error", err)
	}
}

// routeTemplate derives the low-cardinality route label from gorilla/mux's
// matched route template ("/api/widgets/{id}") instead of the raw path
// ("/api/widgets/42"), keeping byRoute cardinality bounded by the route
// table rather than by distinct ids seen.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tmpl
}

func loadConfig() (metrics.Config, error) {
	v := viper.New()
	v.SetConfigName("metrics")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("METRICS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return metrics.Config{}, err
		}
	}
	return metrics.LoadConfigFromViper(v)
}

func waitForShutdownSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
