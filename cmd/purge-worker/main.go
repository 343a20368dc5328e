package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrenia/entrenia-core/internal/application/accounts"
	"github.com/entrenia/entrenia-core/internal/infrastructure/postgres"
	"github.com/entrenia/entrenia-core/internal/monitoring"
	"github.com/entrenia/entrenia-core/pkg/config"
	"github.com/entrenia/entrenia-core/pkg/logger"
)

// Worker de purga GDPR: barre periódicamente los usuarios con la ventana de
// recuperación vencida y borra su grafo completo, un usuario por transacción.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: "purge-worker",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Dur("interval", cfg.Accounts.PurgeSweepInterval).
		Msg("iniciando worker de purga")

	monitoring.InitMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool)
	userRepo := postgres.NewUserRepository(pool)
	worker := accounts.NewPurgeWorker(txRunner, userRepo, log)

	// Métricas y health en un servidor HTTP aparte.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.HTTP.Addr(), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("servidor de métricas finalizado")
		}
	}()

	go worker.Start(ctx, cfg.Accounts.PurgeSweepInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, deteniendo worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor de métricas")
	}

	log.Info().Msg("worker detenido")
}
