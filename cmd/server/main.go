package main // Entry point package

import (
	"context"
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/orthoview/kneescan/internal/blobstore"
	"github.com/orthoview/kneescan/internal/config"
	"github.com/orthoview/kneescan/internal/database"
	"github.com/orthoview/kneescan/internal/handler"
	"github.com/orthoview/kneescan/internal/inference"
	"github.com/orthoview/kneescan/internal/pipeline"
	"github.com/orthoview/kneescan/internal/queue"
	"github.com/orthoview/kneescan/internal/repository"
	"github.com/orthoview/kneescan/internal/router"
	queue_publisher "github.com/orthoview/kneescan/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	blob, err := blobstore.New(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatalf("blobstore: %v", err)
	}

	// The model is loaded exactly once and shared read-only across all
	// requests; classification is a pure function of its input.
	engine, err := inference.Load(cfg.ModelPath)
	if err != nil {
		log.Fatalf("inference: %v", err)
	}

	store := repository.NewAnalysisStore(db)
	pipe := pipeline.New(store, blob, engine, queue_publisher.Publisher{})

	// Background recovery for results an adapter failure left pending.
	recon := pipeline.NewReconciler(store, blob, engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recon.Start(ctx)

	// Audit consumer mirrors analysis.completed events into logs/.
	go func() {
		if err := queue.StartAnalysisConsumer(); err != nil {
			log.Printf("analysis consumer stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, upload rate limiting disabled")
	}

	e := echo.New()
	router.RegisterRoutes(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, repository.NewUserRepo(db)),
		Upload:   handler.NewUploadHandler(cfg, pipe),
		Analysis: handler.NewAnalysisHandler(cfg, store.Patients, pipe),
		Results:  handler.NewResultHandler(cfg, store.Results, store.Patients),
		Patients: handler.NewPatientHandler(cfg, store.Patients),
	}, cfg, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
