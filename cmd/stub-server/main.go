package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"jan-client/chat-core/internal/config"
	"jan-client/chat-core/internal/infrastructure/logger"
	"jan-client/chat-core/internal/interfaces/stubserver"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("load config")
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	server := stubserver.New(stubserver.Options{ChunkDelay: 25 * time.Millisecond})

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msg("stub backend listening")
		err := apiServer.ListenAndServe()
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		log.Info().Int("port", cfg.MetricsPort).Msg("metrics listening")
		err := metricsServer.ListenAndServe()
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = apiServer.Shutdown(shutdownCtx)
		_ = metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := eg.Wait(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("stub server exited")
	}
}
