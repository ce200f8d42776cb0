// auctiond is the BidCart auction API server: it owns the auction state
// machine, the bid ledger, the scheduler sweep, and the event publish path.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pallab20057477/bidcart-auction/internal/archive"
	"github.com/pallab20057477/bidcart-auction/internal/config"
	"github.com/pallab20057477/bidcart-auction/internal/engine"
	"github.com/pallab20057477/bidcart-auction/internal/httpapi"
	"github.com/pallab20057477/bidcart-auction/internal/notifier"
	"github.com/pallab20057477/bidcart-auction/internal/scheduler"
	"github.com/pallab20057477/bidcart-auction/internal/store"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "auctiond").Logger()
	cfg := config.LoadAPI()

	log.Info().Msg("connecting to Postgres")
	db, err := store.NewPostgresStore(cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("connecting to Redis")
	redisPub, err := notifier.NewRedisPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisPub.Close()

	log.Info().Str("url", cfg.NatsURL).Msg("connecting to NATS")
	archivePub, err := archive.NewPublisher(cfg.NatsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer archivePub.Close()

	eng := engine.New(db, log,
		engine.WithPublisher(redisPub),
		engine.WithPublisher(archivePub),
	)
	defer eng.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go scheduler.New(eng, db, cfg.SweepInterval, log).Run(sweepCtx)

	handler := httpapi.NewHandler(eng, log)
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("auction API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("stopped")
}
