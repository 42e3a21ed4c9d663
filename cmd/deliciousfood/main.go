/*
Deliciousfood starts the DeliciousFood REST server.

Usage:

	deliciousfood [flags]

Once started, the server will listen for HTTP requests on the configured
address. The endpoints are rooted under the configured URI base:

  - POST /login, GET /logout, GET /refresh - login sessions
  - /users - account management for moderators and admins
  - /users/{userId}/foods - the user's own food records
  - /foods, /foods/public, /foods/delicious - food listings and marks

The flags are:

	-c, --config PATH
		Use the given file for the configuration instead of
		'./deliciousfood.yml'. The file must be in YAML format.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/AUrban/DeliciousFood/api"
	"github.com/AUrban/DeliciousFood/config"
	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/sqlite"
	"github.com/AUrban/DeliciousFood/logging"
	"github.com/AUrban/DeliciousFood/service"
	"github.com/AUrban/DeliciousFood/token"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/pflag"
)

const (
	exitSuccess   = 0
	exitError     = 1
	exitPanic     = 2
	exitInterrupt = 3
)

var exitCode int

var (
	flagConf = pflag.StringP("config", "c", "deliciousfood.yml", "Path to configuration file")
)

func main() {
	ctx := context.Background()
	ctx, cancelMainContext := context.WithCancel(ctx)
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer func() {
		signal.Stop(signalChan)
		cancelMainContext()
	}()
	go func() {
		select {
		case <-signalChan: // first signal, cancel context
			cancelMainContext()
		case <-ctx.Done():
		}

		<-signalChan // second signal, hard exit
		os.Exit(exitInterrupt)
	}()

	defer func() {
		if panicErr := recover(); panicErr != nil {
			fmt.Fprintf(os.Stderr, "fatal panic: %v\n", panicErr)
			exitCode = exitPanic
		}
		os.Exit(exitCode)
	}()

	pflag.Parse()

	cfg, err := config.Load(*flagConf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	logger, err := logging.New(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	logger.Infof("Opening database %s...", cfg.DBFile)
	sqlDB, err := sqlite.Open(cfg.DBFile)
	if err != nil {
		logger.Errorf("Open database: %v", err)
		exitCode = exitError
		return
	}
	defer sqlDB.Close()

	if err := dao.InitSchema(sqlDB); err != nil {
		logger.Errorf("Init schema: %v", err)
		exitCode = exitError
		return
	}

	store := db.NewStore(sqlDB)
	if err := seedAdmin(ctx, store, logger); err != nil {
		logger.Errorf("Seed admin user: %v", err)
		exitCode = exitError
		return
	}

	tokens := token.Provider{
		Secret:      []byte(cfg.Auth.Secret),
		AccessTTL:   time.Duration(cfg.Auth.AccessLifetime),
		RefreshTTL:  time.Duration(cfg.Auth.RefreshLifetime),
		RememberTTL: time.Duration(cfg.Auth.RememberLifetime),
	}

	var calories service.CaloriesProvider
	if cfg.Nutritionix.Enabled() {
		calories = service.NewNutritionixProvider(cfg.Nutritionix.BaseURL, cfg.Nutritionix.AppID, cfg.Nutritionix.AppKey)
	}

	root := chi.NewRouter()
	root.Mount(cfg.URIBase, api.New(store, tokens, calories, logger).Routes())

	server := &http.Server{
		Addr:    cfg.ListenAddress(),
		Handler: root,
	}

	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("Server shutdown by request")
		} else {
			logger.Errorf("Server encountered a problem: %v", err)
		}
	}()

	logger.Infof("DeliciousFood server listening on %s; Ctrl-C (SIGINT) to stop", cfg.ListenAddress())

	<-ctx.Done()
	logger.Info("SIGINT received; cleaning up server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(err.Error())
	}
	logger.Info("Server shutdown complete")
	exitCode = exitSuccess
}

// seedAdmin creates the default admin account on a fresh database, so the
// server is usable right after the first start. The password must be changed
// afterwards.
func seedAdmin(ctx context.Context, store *db.Store, logger logging.Logger) error {
	provider := db.NewDataAccessProvider(store.DB)
	ctx = db.WithStorage(ctx, db.NewStorage())

	return provider.Run(ctx, func(ctx context.Context) error {
		users := db.NewEntityRepository(store, dao.UserBinding)
		count, err := users.Query().Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		var security service.SecurityProvider
		hash, err := security.HashPassword("Admin#1")
		if err != nil {
			return err
		}

		admin := users.Create()
		admin.Login = "admin"
		admin.Name = "Administrator"
		admin.PasswordHash = hash
		admin.PolicyMask = dao.PolicyUsers | dao.PolicyModerators | dao.PolicyAdmins
		if err := users.Save(ctx, admin); err != nil {
			return err
		}

		logger.Warn("Created default admin account 'admin'; change its password")
		return nil
	})
}
