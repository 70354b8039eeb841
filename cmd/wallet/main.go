package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vcard-wallet-go/internal/cli"
	"vcard-wallet-go/internal/common"
	"vcard-wallet-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.LoadClient()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	cli.NewApp(services).Run(ctx)
}
