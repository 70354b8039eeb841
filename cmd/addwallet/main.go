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
	"flag"
	"fmt"
	"regexp"

	"vcard-wallet-go/internal/common"
	"vcard-wallet-go/internal/config"

	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Email of the account to provision (required)")
	addressFlag := flag.String("address", "", "TRON deposit address assigned to the account (required)")
	flag.Parse()

	if *emailFlag == "" || *addressFlag == "" {
		zap.L().Fatal("Both flags are required: --email and --address")
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	cfg, err := config.LoadClient()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing admin store", zap.String("backend", cfg.Backend))
	admin, err := common.InitializeAdmin(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize admin store", zap.Error(err))
	}
	defer admin.Close()

	wallet, existed, err := common.ProvisionWallet(ctx, admin, common.WalletAssignment{
		Email:       *emailFlag,
		TronAddress: *addressFlag,
	})
	if err != nil {
		zap.L().Fatal("Failed to provision wallet", zap.String("email", *emailFlag), zap.Error(err))
	}
	if existed {
		fmt.Printf("%s already has a wallet; nothing changed\n", *emailFlag)
		return
	}

	fmt.Println()
	common.PrintHeader("WALLET CREATED", common.DefaultWidth)
	fmt.Printf("ID:       %s\n", wallet.Id)
	fmt.Printf("User:     %s (%s)\n", *emailFlag, wallet.UserId)
	fmt.Printf("Address:  %s\n", wallet.TronAddress)
	fmt.Printf("Balance:  %s\n", common.FormatUsdt(wallet.UsdtBalance))
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}
