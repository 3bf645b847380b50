package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/CropCred/cropcred/internal/score"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string

	// Optional collaborators; empty values disable the integration and the
	// affected sub-results degrade per the verification contract.
	S3Bucket     string
	LedgerURL    string
	KafkaBrokers []string
	KafkaTopic   string

	ScoreWeights score.Weights
}

const (
	defaultAddr       = ":8090"
	defaultKafkaTopic = "cropcred.events"
	defaultWeight     = 0.25
)

func Load() (Config, error) {
	cfg := Config{
		Addr:        getEnv("CROPCRED_ADDR", defaultAddr),
		DatabaseURL: firstNonEmpty(os.Getenv("CROPCRED_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		JWTSecret:   os.Getenv("CROPCRED_JWT_SECRET"),
		S3Bucket:    os.Getenv("CROPCRED_S3_BUCKET"),
		LedgerURL:   os.Getenv("CROPCRED_LEDGER_URL"),
		KafkaTopic:  getEnv("CROPCRED_KAFKA_TOPIC", defaultKafkaTopic),
		ScoreWeights: score.Weights{
			Ethics:         getFloat("CROPCRED_WEIGHT_ETHICS", defaultWeight),
			Documentation:  getFloat("CROPCRED_WEIGHT_DOCS", defaultWeight),
			Delivery:       getFloat("CROPCRED_WEIGHT_DELIVERY", defaultWeight),
			Sustainability: getFloat("CROPCRED_WEIGHT_SUSTAIN", defaultWeight),
		},
	}
	if brokers := os.Getenv("CROPCRED_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or CROPCRED_DATABASE_URL required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("CROPCRED_JWT_SECRET required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
