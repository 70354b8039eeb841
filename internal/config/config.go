/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vcard-wallet-go/internal/models"
)

const (
	BackendHosted = "hosted"
	BackendLocal  = "local"
)

// LoadRelay reads the relay configuration. The issuer credentials are the
// only required settings.
func LoadRelay() (*models.RelayConfig, error) {
	issuer := models.IssuerConfig{
		BaseURL: strings.TrimRight(os.Getenv("MARQETA_BASE_URL"), "/"),
		ApiKey:  os.Getenv("MARQETA_API_KEY"),
		Secret:  os.Getenv("MARQETA_SECRET"),
	}

	var missing []string
	if issuer.BaseURL == "" {
		missing = append(missing, "MARQETA_BASE_URL")
	}
	if issuer.ApiKey == "" {
		missing = append(missing, "MARQETA_API_KEY")
	}
	if issuer.Secret == "" {
		missing = append(missing, "MARQETA_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required card issuer credentials: %s", strings.Join(missing, ", "))
	}

	issuerTimeout, err := getEnvDuration("ISSUER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	issuer.Timeout = issuerTimeout

	idempotencyTtl, err := getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, err
	}

	return &models.RelayConfig{
		Port:        getEnvString("PORT", "5000"),
		Issuer:      issuer,
		ProgramFile: getEnvString("CARD_PROGRAM_FILE", "card_program.yaml"),
		JwtSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
		Redis: models.RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Idempotency: idempotencyTtl,
		Cors: models.CorsConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		RateLimit: models.RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Shutdown: shutdownTimeout,
	}, nil
}

// LoadClient reads the configuration shared by the wallet client and admin tools.
func LoadClient() (*models.ClientConfig, error) {
	backend := getEnvString("BACKEND", BackendHosted)
	if backend != BackendHosted && backend != BackendLocal {
		return nil, fmt.Errorf("invalid BACKEND %q, expected %q or %q", backend, BackendHosted, BackendLocal)
	}

	hosted := models.HostedConfig{
		URL:            strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		AnonKey:        os.Getenv("SUPABASE_ANON_KEY"),
		ServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
	}
	if backend == BackendHosted && (hosted.URL == "" || hosted.AnonKey == "") {
		return nil, fmt.Errorf("missing required hosted service settings: SUPABASE_URL, SUPABASE_ANON_KEY")
	}

	durations := map[string]time.Duration{
		"HTTP_TIMEOUT":           30 * time.Second,
		"SIGNUP_PROVISION_DELAY": 2 * time.Second,
		"RETRY_BASE_DELAY":       time.Second,
		"RETRY_MAX_DELAY":        10 * time.Second,
		"RETRY_JITTER":           0,
		"DB_CONN_MAX_LIFETIME":   5 * time.Minute,
		"DB_CONN_MAX_IDLE_TIME":  30 * time.Second,
		"DB_PING_TIMEOUT":        5 * time.Second,
	}
	for key, def := range durations {
		d, err := getEnvDuration(key, def)
		if err != nil {
			return nil, err
		}
		durations[key] = d
	}

	return &models.ClientConfig{
		Backend:     backend,
		Hosted:      hosted,
		RelayURL:    strings.TrimRight(getEnvString("BACKEND_URL", "http://localhost:5000"), "/"),
		HttpTimeout: durations["HTTP_TIMEOUT"],
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "vcard.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
			ConnMaxIdleTime: durations["DB_CONN_MAX_IDLE_TIME"],
			PingTimeout:     durations["DB_PING_TIMEOUT"],
		},
		Retry: models.RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			Backoff:     getEnvString("RETRY_BACKOFF", "constant"),
			BaseDelay:   durations["RETRY_BASE_DELAY"],
			MaxDelay:    durations["RETRY_MAX_DELAY"],
			Jitter:      durations["RETRY_JITTER"],
		},
		ProvisionDelay: durations["SIGNUP_PROVISION_DELAY"],
		SessionFile:    os.Getenv("SESSION_FILE"),
	}, nil
}

// LoadMigration reads the direct Postgres connection used to apply the schema.
func LoadMigration() (*models.MigrationConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, fmt.Errorf("missing required setting: DATABASE_URL")
	}
	timeout, err := getEnvDuration("MIGRATION_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	return &models.MigrationConfig{DatabaseURL: url, Timeout: timeout}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
