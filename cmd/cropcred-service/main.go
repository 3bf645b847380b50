package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/CropCred/cropcred/internal/blob"
	"github.com/CropCred/cropcred/internal/config"
	"github.com/CropCred/cropcred/internal/httpserver"
	"github.com/CropCred/cropcred/internal/ledger"
	"github.com/CropCred/cropcred/internal/score"
	"github.com/CropCred/cropcred/internal/service"
	"github.com/CropCred/cropcred/internal/store"
	"github.com/CropCred/cropcred/internal/stream"
	"github.com/CropCred/cropcred/internal/verify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	st := store.NewPGStore(db)

	var blobs blob.Store
	if cfg.S3Bucket != "" {
		s3Store, err := blob.NewS3Store(context.Background(), cfg.S3Bucket)
		if err != nil {
			log.Fatalf("s3 init: %v", err)
		}
		blobs = s3Store
	} else {
		log.Printf("CROPCRED_S3_BUCKET unset, document storage disabled")
	}

	var ledgerClient ledger.Client
	if cfg.LedgerURL != "" {
		ledgerClient, err = ledger.NewHTTPClient(ledger.HTTPClientConfig{
			BaseURL: cfg.LedgerURL,
			Timeout: 5 * time.Second,
			Retries: 2,
		})
		if err != nil {
			log.Fatalf("ledger client init: %v", err)
		}
	} else {
		log.Printf("CROPCRED_LEDGER_URL unset, events will be stored unanchored")
	}

	var publisher stream.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := stream.NewProducer(stream.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka producer init: %v", err)
		}
		defer producer.Close()
		publisher = producer
	}

	svc := service.New(st, blobs, ledgerClient, publisher)
	verifier := verify.New(st, blobs, ledgerClient)
	scorer := score.New(cfg.ScoreWeights)
	server := httpserver.New(cfg, svc, verifier, scorer, st)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("CropCred service listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(httpServer)
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
