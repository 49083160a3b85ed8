// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apexid/tokend/pkg/api"
	"github.com/apexid/tokend/pkg/config"
	"github.com/apexid/tokend/pkg/logger"
	"github.com/apexid/tokend/pkg/storage/columns"
	"github.com/apexid/tokend/pkg/telemetry"
	"github.com/apexid/tokend/pkg/tokens"
	"github.com/apexid/tokend/pkg/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tokend API server",
	Long:  `Starts the tokend API server and listens for HTTP requests.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to the configuration file")
	serveCmd.Flags().String("address", "", "Address to listen on, overrides the configuration file")
	serveCmd.Flags().Bool("unix-socket", false, "Treat the address as a UNIX socket path")

	err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}
	err = viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
	err = viper.BindPFlag("unix-socket", serveCmd.Flags().Lookup("unix-socket"))
	if err != nil {
		logger.Fatalf("Failed to bind unix-socket flag: %v", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Ensure the server is shut down gracefully on Ctrl+C.
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := cfg.Server.Address
	if flagAddress := viper.GetString("address"); flagAddress != "" {
		address = flagAddress
	}
	isUnixSocket := cfg.Server.UnixSocket || viper.GetBool("unix-socket")

	storageCfg, err := storeConfig(cfg)
	if err != nil {
		return err
	}
	store, err := columns.NewStore(ctx, storageCfg)
	if err != nil {
		return fmt.Errorf("failed to create column store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close column store: %v", err)
		}
	}()
	logger.Infof("Using %s storage backend", cfg.Storage.Backend)

	service := tokens.NewService(store, serviceConfig(cfg))

	tel, err := telemetry.NewProvider(ctx,
		telemetry.WithServiceName("tokend"),
		telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
		telemetry.WithMetricsEnabled(cfg.Telemetry.Metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Errorf("Failed to shut down telemetry: %v", err)
		}
	}()

	logger.Infof("Starting tokend %s", versions.GetVersionInfo().Version)
	return api.Serve(ctx, address, isUnixSocket, service, store, tel)
}

// storeConfig maps the storage section of the configuration onto the
// column store factory settings.
func storeConfig(cfg *config.Config) (columns.Config, error) {
	storageCfg := columns.Config{
		Backend: columns.Backend(cfg.Storage.Backend),
		Redis: columns.RedisConfig{
			Address:   cfg.Storage.Redis.Address,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		},
		SQLite: columns.SQLiteConfig{
			DSN: cfg.Storage.SQLite.Path,
		},
	}

	// An unset SQLite path lands in the XDG data directory rather than
	// the in-memory database, so a default installation survives restarts.
	if storageCfg.Backend == columns.BackendSQLite && storageCfg.SQLite.DSN == "" {
		path := filepath.Join(xdg.DataHome, "tokend", "tokend.db")
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return columns.Config{}, fmt.Errorf("failed to create data directory: %w", err)
		}
		storageCfg.SQLite.DSN = path
	}

	return storageCfg, nil
}

// serviceConfig maps the auth section of the configuration onto the
// token service settings.
func serviceConfig(cfg *config.Config) tokens.Config {
	return tokens.Config{
		SecretSalt:        cfg.Auth.TokenSecretSalt,
		MaxPersistenceAge: cfg.Auth.Token.Persistence.Duration(),
		Expirations: map[tokens.Category]time.Duration{
			tokens.CategoryAccess:  cfg.Auth.Token.Access.Duration(),
			tokens.CategoryRefresh: cfg.Auth.Token.Refresh.Duration(),
			tokens.CategoryEmail:   cfg.Auth.Token.Email.Duration(),
			tokens.CategoryOffline: cfg.Auth.Token.Offline.Duration(),
		},
		ExpiresFromLastUse: cfg.Auth.TokenExpiresFromLastUse,
		RefreshRotatesID:   !cfg.Auth.TokenRefreshReusesID,
	}
}
