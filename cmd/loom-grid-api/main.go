package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/loomhq/loom/engine/internal/config"
	"github.com/loomhq/loom/engine/internal/loader"
	"github.com/loomhq/loom/engine/internal/logging"
	"github.com/loomhq/loom/engine/internal/presence"
	"github.com/loomhq/loom/engine/internal/rowstore"
	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/server"
	"github.com/loomhq/loom/engine/internal/shareddoc"
	"github.com/loomhq/loom/engine/internal/workspace"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loom-grid-api",
		Short: "Loom grid engine inspection service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("snapshot-path", defaults.GetString("snapshot.path"), "SQLite row snapshot cache path")
	cmd.PersistentFlags().String("workspace-id", defaults.GetString("workspace.id"), "Workspace identifier")
	cmd.PersistentFlags().String("device-id", "", "Local device identifier for presence")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "snapshot.path", "snapshot-path")
	bindFlag(cmd, "workspace.id", "workspace-id")
	bindFlag(cmd, "device.id", "device-id")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := rowstore.OpenSQLite(appConfig.SnapshotPath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := rowstore.NewStore(rowstore.StoreConfig{
		Database:    db,
		WorkspaceID: appConfig.WorkspaceID,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	rowLoader, err := loader.NewLoader(loader.LoaderConfig{
		Store:       store,
		Clock:       time.Now,
		Logger:      logger,
		RetryCount:  appConfig.RetryCount,
		BackoffStep: time.Duration(appConfig.BackoffMillis) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	databaseDoc, err := shareddoc.NewDocument(shareddoc.DocumentConfig{Clock: time.Now})
	if err != nil {
		return err
	}
	database := schema.NewDatabase(databaseDoc)
	database.SetID(appConfig.WorkspaceID)

	engineWorkspace, err := workspace.New(workspace.Config{
		Database: database,
		Loader:   rowLoader,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	engineWorkspace.LoadAllRows(ctx)

	tracker := presence.NewTracker(presence.TrackerConfig{
		LocalDeviceID: appConfig.DeviceID,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Workspace: engineWorkspace,
		Presence:  tracker,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
