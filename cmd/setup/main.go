package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"strings"

	"vcard-wallet-go/internal/common"
	"vcard-wallet-go/internal/config"
	"vcard-wallet-go/internal/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// migrate applies the hosted schema, row-level security policies and the
// withdrawal function through a direct Postgres connection.
func migrate(ctx context.Context) {
	cfg, err := config.LoadMigration()
	if err != nil {
		zap.L().Fatal("Failed to load migration config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		zap.L().Fatal("Failed to open Postgres connection", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		zap.L().Fatal("Failed to reach Postgres", zap.Error(err))
	}

	zap.L().Info("Applying hosted schema migrations")
	if err := migrations.Up(ctx, db, "pgx", migrations.PostgresDir); err != nil {
		zap.L().Fatal("Migration failed", zap.Error(err))
	}
	zap.L().Info("Hosted schema is up to date")
}

// provisionWallets assigns the TRON addresses listed in path to their users.
func provisionWallets(ctx context.Context, path string) {
	assignments, err := common.LoadWalletAssignments(path)
	if err != nil {
		zap.L().Fatal("Failed to load wallet assignments", zap.Error(err))
	}
	zap.L().Info("Wallet assignments loaded", zap.Int("count", len(assignments)))

	cfg, err := config.LoadClient()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	admin, err := common.InitializeAdmin(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize admin store", zap.Error(err))
	}
	defer admin.Close()

	var created, existing int
	var failed []string
	for _, a := range assignments {
		wallet, existed, err := common.ProvisionWallet(ctx, admin, a)
		switch {
		case err != nil:
			zap.L().Error("Failed to provision wallet", zap.String("email", a.Email), zap.Error(err))
			fmt.Printf("✗ %s: %v\n", a.Email, err)
			failed = append(failed, a.Email)
		case existed:
			fmt.Printf("✓ %s: wallet already exists\n", a.Email)
			existing++
		default:
			fmt.Printf("✓ %s: %s\n", a.Email, wallet.TronAddress)
			created++
		}
	}

	fmt.Println()
	common.PrintHeader("WALLET PROVISIONING SUMMARY", common.DefaultWidth)
	fmt.Printf("Assignments:       %d\n", len(assignments))
	fmt.Printf("Created:           %d\n", created)
	fmt.Printf("Already existed:   %d\n", existing)
	fmt.Printf("Failed:            %d\n", len(failed))
	if len(failed) > 0 {
		fmt.Printf("Failed Users:      %s\n", strings.Join(failed, ", "))
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	if len(failed) > 0 {
		zap.L().Warn("Wallet provisioning completed with some failures",
			zap.Int("created", created),
			zap.Strings("failed_users", failed))
	} else {
		zap.L().Info("Wallet provisioning completed successfully", zap.Int("created", created))
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	migrateFlag := flag.Bool("migrate", false, "Apply the hosted Postgres schema (requires DATABASE_URL)")
	walletsFlag := flag.String("wallets", "", "YAML file of email to TRON address assignments to provision")
	flag.Parse()

	if !*migrateFlag && *walletsFlag == "" {
		zap.L().Fatal("Nothing to do: pass --migrate and/or --wallets <file>")
	}

	if *migrateFlag {
		migrate(ctx)
	}
	if *walletsFlag != "" {
		provisionWallets(ctx, *walletsFlag)
	}
}
