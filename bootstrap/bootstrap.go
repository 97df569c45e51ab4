package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fulldump/box"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fulldump/objectstore/api"
	"github.com/fulldump/objectstore/configuration"
	"github.com/fulldump/objectstore/store"
)

var VERSION = "dev"

func Bootstrap(c *configuration.Configuration) (start, stop func(), err error) {

	logger := NewLogger(os.Stdout, c.LogLevel)
	slog.SetDefault(logger)

	seed, err := LoadSeed(c.Seed)
	if err != nil {
		return nil, nil, err
	}

	backend, err := OpenStorage(c, logger)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := store.New(store.Options{
		Data:       seed,
		IDProperty: c.IDProperty,
		Storage:    backend,
		Logger:     logger,
		Metrics:    store.NewMetrics(registry),
	})

	b := api.Build(s, registry, VERSION)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(logger.With(slog.String("component", "access"))),
		api.RecoverFromPanic,
		api.PrettyErrorInterceptor,
	)

	server := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		s.Close()
		closeStorage(backend, logger)
		return nil, nil, err
	}
	logger.Info("listening", slog.String("addr", c.HttpAddr), slog.String("storage", c.Storage))

	stopOnce := sync.Once{}
	stop = func() {
		stopOnce.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := server.Shutdown(ctx)
			if err != nil {
				logger.Error("http shutdown", slog.String("error", err.Error()))
			}
			err = s.Close()
			if err != nil {
				logger.Error("store close", slog.String("error", err.Error()))
			}
			closeStorage(backend, logger)
		})
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signalChan
		logger.Info("signal received", slog.String("signal", sig.String()))
		stop()
	}()

	start = func() {
		err := server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http serve", slog.String("error", err.Error()))
		}
	}

	return start, stop, nil
}

func closeStorage(backend any, logger *slog.Logger) {
	closer, ok := backend.(io.Closer)
	if !ok {
		return
	}
	err := closer.Close()
	if err != nil {
		logger.Error("storage close", slog.String("error", err.Error()))
	}
}
