package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"video-essay-service/internal/artifact"
	"video-essay-service/internal/config"
	"video-essay-service/internal/repository/postgresql"
	"video-essay-service/internal/service"
	httptransport "video-essay-service/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	repo := postgresql.NewJobRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("pg schema: %v", err)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	store, err := artifact.NewStore(cfg.ArtifactsRoot)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}

	queue := service.NewRedisTaskQueue(rdb, cfg.RedisQueuePrefix)
	jobSvc := service.NewJobService(repo, queue, store, cfg.EnableImageGeneration)
	handler := httptransport.NewHandler(jobSvc, store)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httptransport.Routes(handler, store.Root(), cfg.APIToken),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("server started: addr=%s artifacts_root=%s video_enabled=%t",
		cfg.HTTPAddr, store.Root(), cfg.EnableImageGeneration)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}

	log.Println("server stopped")
}
