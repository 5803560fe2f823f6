package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nhle/mailpdf/internal/app"
	"github.com/nhle/mailpdf/internal/logger"
	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/store"
)

// loadConfig reads the configuration, validates it when validate is set
// and builds the logger.
func loadConfig(c *cli.Context, validate bool) (*model.AppConfig, logger.Logger, error) {
	cfg, err := model.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 2)
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 2)
		}
	}

	appLogger := logger.NewAppLogger(&logger.Config{LogLevel: cfg.Log.Level, DevMode: cfg.Log.DevMode})
	appLogger.InitLogger()
	return cfg, appLogger, nil
}

// withApp builds the application, runs fn under a context cancelled on
// SIGINT/SIGTERM and releases everything afterwards.
func withApp(c *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := loadConfig(c, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, os.Stdout)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

func runCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		return a.Run(ctx)
	})
}

func onceCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		result, err := a.Poller.RunCycle(ctx)
		if renderErr := app.RenderCycle(c.App.Writer, result); renderErr != nil {
			return renderErr
		}
		if err != nil {
			return cli.Exit("", 1)
		}
		return nil
	})
}

func loginCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		if err := a.Login(ctx); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Fprintln(c.App.Writer, "signed in; token cache stored")
		return nil
	})
}

func historyCommand(c *cli.Context) error {
	cfg, log, err := loadConfig(c, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Ledger.Path == "" {
		return cli.Exit("the download ledger is disabled; set ledger.path", 2)
	}

	s, err := store.NewSQLiteStore(cfg.Ledger.Path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer s.Close()

	downloads, err := s.ListDownloads(c.Context, store.DownloadFilter{Limit: c.Int("limit")})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return app.RenderHistory(c.App.Writer, downloads)
}
