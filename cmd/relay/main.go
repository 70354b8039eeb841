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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vcard-wallet-go/internal/common"
	"vcard-wallet-go/internal/config"
	"vcard-wallet-go/internal/issuer"
	"vcard-wallet-go/internal/relay"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.LoadRelay()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	program := common.CardProgramOrDefault(cfg.ProgramFile)

	issuerClient, err := issuer.NewClient(cfg.Issuer)
	if err != nil {
		zap.L().Fatal("Failed to create card issuer client", zap.Error(err))
	}

	cache, closeCache := relay.NewResponseCache(ctx, cfg.Redis, cfg.Idempotency)
	defer closeCache()

	if cfg.JwtSecret == "" {
		zap.L().Warn("SUPABASE_JWT_SECRET not set, create-card accepts unauthenticated callers")
	}

	gin.SetMode(gin.ReleaseMode)
	metrics := relay.NewMetrics()
	handler := relay.NewHandler(issuerClient, program, cache, metrics)
	router := relay.NewRouter(handler, metrics, relay.RouterConfig{
		JwtSecret: cfg.JwtSecret,
		Cors:      cfg.Cors,
		RateLimit: cfg.RateLimit,
	})

	server := relay.NewServer(cfg.Port, router, cfg.Issuer.Timeout)
	errCh := server.Start()

	zap.L().Info("Card relay running",
		zap.String("port", cfg.Port),
		zap.String("issuer", cfg.Issuer.BaseURL),
		zap.String("card_product", program.CardProductToken))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			zap.L().Fatal("Relay server failed", zap.Error(err))
		}
	case <-sigChan:
		zap.L().Info("Shutdown signal received, draining requests...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
		return
	}
	zap.L().Info("Relay stopped gracefully")
}
