// Package app wires configuration, logging, accelerator binding and the
// engine into a runnable server.
package app

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/proto"

	"github.com/searchktools/fast-runtime/config"
	"github.com/searchktools/fast-runtime/core"
	"github.com/searchktools/fast-runtime/core/binding"
	"github.com/searchktools/fast-runtime/core/dispatch"
	"github.com/searchktools/fast-runtime/core/logging"
)

const shutdownTimeout = 10 * time.Second

// App is the application instance
type App struct {
	cfg        *config.Config
	logger     log.Logger
	resolver   *binding.Resolver
	dispatcher *dispatch.Dispatcher
	engine     *core.Engine
	registry   *prometheus.Registry
}

// New creates an application instance
func New(cfg *config.Config) *App {
	logger := logging.New(cfg.Logging)
	resolver := binding.NewResolver(cfg.Binding, binding.WithLogger(logger))
	return NewWithResolver(cfg, logger, resolver)
}

// NewWithResolver creates an application around an existing resolver.
func NewWithResolver(cfg *config.Config, logger log.Logger, resolver *binding.Resolver) *App {
	d := dispatch.New(resolver,
		dispatch.WithLimits(cfg.Parser.Limits()),
		dispatch.WithLogger(logger),
	)
	engine := core.NewEngine(d,
		core.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		core.WithIdleTimeout(cfg.IdleTimeout),
		core.WithEngineLogger(logger),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := d.Register(reg); err != nil {
		level.Error(logger).Log("msg", "metrics registration failed", "err", err)
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		resolver:   resolver,
		dispatcher: d,
		engine:     engine,
		registry:   reg,
	}
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Logger returns the application logger.
func (a *App) Logger() log.Logger {
	return a.logger
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	level.Info(a.logger).Log("msg", "starting", "port", a.cfg.Port, "env", a.cfg.Env)

	var diag *stdhttp.Server
	if a.cfg.Diagnostics.Addr != "" {
		diag = &stdhttp.Server{
			Addr:              a.cfg.Diagnostics.Addr,
			Handler:           a.DiagnosticsHandler(),
			ReadHeaderTimeout: a.cfg.ReadTimeout,
		}
		go func() {
			level.Info(a.logger).Log("msg", "diagnostics listening", "addr", diag.Addr)
			if err := diag.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				level.Error(a.logger).Log("msg", "diagnostics server failed", "err", err)
			}
		}()
	}

	served := make(chan error, 1)
	go func() { served <- a.engine.Run(a.cfg.Addr()) }()

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		level.Info(a.logger).Log("msg", "shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := a.engine.Shutdown(sctx); serr != nil {
		level.Warn(a.logger).Log("msg", "forced shutdown", "err", serr)
	}
	if diag != nil {
		diag.Shutdown(sctx)
	}

	if errors.Is(err, core.ErrServerClosed) {
		return nil
	}
	return err
}

// DiagnosticsHandler serves the binding status, dispatcher statistics, the
// route table and Prometheus metrics.
func (a *App) DiagnosticsHandler() stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.HandleFunc("/status", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		writeJSON(w, a.resolver.Status())
	})
	mux.HandleFunc("/status.pb", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		st, err := a.resolver.Status().Proto()
		if err != nil {
			stdhttp.Error(w, err.Error(), stdhttp.StatusInternalServerError)
			return
		}
		data, err := proto.Marshal(st)
		if err != nil {
			stdhttp.Error(w, err.Error(), stdhttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(data)
	})
	mux.HandleFunc("/stats", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		writeJSON(w, struct {
			Dispatch dispatch.Stats `json:"dispatch"`
			Pools    core.PoolStats `json:"pools"`
			Requests uint64         `json:"requests"`
		}{a.dispatcher.Stats(), a.engine.GetPoolStats(), a.engine.Requests()})
	})
	mux.HandleFunc("/routes", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		writeJSON(w, a.engine.Routes())
	})
	mux.HandleFunc("/reload", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.Method != stdhttp.MethodPost {
			w.Header().Set("Allow", stdhttp.MethodPost)
			stdhttp.Error(w, "method not allowed", stdhttp.StatusMethodNotAllowed)
			return
		}
		// routes keep their router; new connections get the new parser
		a.resolver.ClearCache()
		a.dispatcher.Reselect()
		level.Info(a.logger).Log("msg", "accelerator binding reloaded")
		writeJSON(w, a.resolver.Status())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w stdhttp.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
