package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	JWTSecret    string
	TxTimeout    time.Duration
	OTLPEndpoint string
	HTTPAddr     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	txTimeout, _ := time.ParseDuration(os.Getenv("TX_TIMEOUT"))
	if txTimeout == 0 {
		txTimeout = 5 * time.Second
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		TxTimeout:    txTimeout,
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HTTPAddr:     addr,
	}, nil
}
