// Package config loads secrets and connection strings from the
// environment. Operational knobs stay command-line flags in main.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// JWTSecret signs and verifies connection tokens. Required.
	JWTSecret string

	// MysqlDSN is the durable message log / user directory database.
	MysqlDSN string

	// KafkaBrokers enables the outbound message event bridge when
	// non-empty.
	KafkaBrokers []string

	// KafkaTopic for the event bridge.
	KafkaTopic string
}

// Load reads the environment, picking up a .env file first when present
// (development convenience; production sets real env vars).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		JWTSecret: os.Getenv("JWT_SECRET"),
		MysqlDSN: getEnv("MYSQL_DSN",
			"root:@tcp(127.0.0.1:3306)/dmhub?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci"),
		KafkaTopic: getEnv("KAFKA_TOPIC", "dmhub-messages"),
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
