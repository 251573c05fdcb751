package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"decen-ai-backend/api/rest/routes"
	"decen-ai-backend/config"
	"decen-ai-backend/core/auth"
	"decen-ai-backend/core/inference"
	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/ml"
	"decen-ai-backend/core/payment"
	"decen-ai-backend/core/publish"
	"decen-ai-backend/core/worker"
	"decen-ai-backend/providers/fvm"
	"decen-ai-backend/providers/lighthouse"
	"decen-ai-backend/providers/minio"
	"decen-ai-backend/storage"
)

func main() {
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Job store: Postgres when configured, in-memory otherwise.
	var store jobstore.Store
	if cfg.DatabaseURL != "" {
		pg, err := jobstore.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		store = pg
		log.Println("Using Postgres job store")
	} else {
		store = jobstore.NewMemoryStore()
		log.Println("Using in-memory job store; jobs are lost on restart")
	}

	ctx := context.Background()

	// Blob store
	var blobs storage.BlobStore
	switch cfg.BlobBackend {
	case "minio":
		mc, err := minio.NewBlobStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}
		blobs = mc
		log.Printf("Using MinIO blob store at %s", cfg.MinioEndpoint)
	case "lighthouse":
		blobs = lighthouse.NewClient(cfg.LighthouseAPIKey)
		log.Println("Using Lighthouse blob store")
	default:
		log.Fatalf("Unknown blob backend %q", cfg.BlobBackend)
	}

	// Nonce stores: Redis-backed when configured.
	var authNonces auth.NonceStore
	var paymentNonces payment.NonceRegistry
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		authNonces = auth.NewRedisNonceStore(rdb, cfg.NonceTTL)
		paymentNonces = payment.NewRedisNonceRegistry(rdb, cfg.PaymentNonceTTL)
		log.Printf("Using Redis nonce stores at %s", cfg.RedisAddr)
	} else {
		authNonces = auth.NewMemoryNonceStore(cfg.NonceTTL)
		paymentNonces = payment.NewMemoryNonceRegistry()
	}

	// FVM chain client
	chain, err := fvm.NewClient(ctx, cfg.FVMRPCURL, cfg.BackendWalletKey, cfg.RegistryContract, cfg.PaymentContract, cfg.ConfirmTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to FVM chain: %v", err)
	}

	fees, err := config.LoadFees(cfg.FeesFile)
	if err != nil {
		log.Fatalf("Failed to load fee table: %v", err)
	}
	verifier := payment.NewVerifier(chain, paymentNonces, fees)

	staging, err := storage.NewStagingArea(cfg.StagingDir)
	if err != nil {
		log.Fatalf("Failed to prepare staging area: %v", err)
	}

	trainer := ml.NewNativeTrainer()
	trainingWorker := worker.New(store, verifier, blobs, staging, trainer)
	publisher := publish.New(store, blobs, staging, chain)
	modelCache := inference.NewCache(blobs)
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)

	r := mux.NewRouter()
	routes.SetupRoutes(r, routes.Deps{
		JobStore:    store,
		Blobs:       blobs,
		Worker:      trainingWorker,
		Publisher:   publisher,
		ModelCache:  modelCache,
		Payments:    verifier,
		Ledger:      chain,
		AuthNonces:  authNonces,
		TokenIssuer: tokens,
		AuthDomain:  cfg.AuthDomain,
	})

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
