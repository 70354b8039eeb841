package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"vcard-wallet-go/internal/api"
	"vcard-wallet-go/internal/config"
	"vcard-wallet-go/internal/database"
	"vcard-wallet-go/internal/hosted"
	"vcard-wallet-go/internal/issuer"
	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/relay"
	"vcard-wallet-go/internal/retry"
	"vcard-wallet-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services are the client-side state containers over one backend.
type Services struct {
	Backend store.Backend
	Auth    *api.AuthService
	Cards   *api.CardService
	Wallet  *api.WalletService
}

// AdminStore is the provisioning surface used by the out-of-band tools.
type AdminStore interface {
	store.WalletAdmin
	Close()
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.ClientConfig) (*Services, error) {
	policy, err := retry.FromConfig(cfg.Retry)
	if err != nil {
		return nil, err
	}

	httpClient, err := issuer.NewHttpClient(cfg.HttpTimeout)
	if err != nil {
		return nil, err
	}

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Using card relay", zap.String("url", cfg.RelayURL))
	relayClient := relay.NewClient(cfg.RelayURL, httpClient, policy)

	return &Services{
		Backend: backend,
		Auth:    api.NewAuthService(backend, backend, policy, cfg.ProvisionDelay),
		Cards:   api.NewCardService(backend, backend, relayClient),
		Wallet:  api.NewWalletService(backend, backend),
	}, nil
}

// NewBackend opens the storage backend selected by cfg.Backend.
func NewBackend(ctx context.Context, cfg *models.ClientConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		zap.L().Info("Using local database", zap.String("path", cfg.Database.Path))
		db, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.BackendHosted:
		httpClient, err := issuer.NewHttpClient(cfg.HttpTimeout)
		if err != nil {
			return nil, err
		}
		client, err := hosted.NewClient(cfg.Hosted, httpClient)
		if err != nil {
			return nil, err
		}
		var sessions hosted.SessionStorage = hosted.NewMemorySessionStorage()
		if cfg.SessionFile != "" {
			sessions = hosted.NewFileSessionStorage(cfg.SessionFile)
		}
		zap.L().Info("Using hosted backend", zap.String("url", cfg.Hosted.URL))
		return hosted.NewStore(client, sessions), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// InitializeAdmin opens the selected backend with provisioning rights. The
// hosted backend needs the service role key for this.
func InitializeAdmin(ctx context.Context, cfg *models.ClientConfig) (AdminStore, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		db, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.BackendHosted:
		httpClient, err := issuer.NewHttpClient(cfg.HttpTimeout)
		if err != nil {
			return nil, err
		}
		client, err := hosted.NewAdminClient(cfg.Hosted, httpClient)
		if err != nil {
			return nil, err
		}
		return hosted.NewStore(client, nil), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func (s *Services) Close() {
	if s.Backend != nil {
		s.Backend.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
