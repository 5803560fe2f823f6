package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailpdf/internal/auth"
	"github.com/nhle/mailpdf/internal/credential"
	"github.com/nhle/mailpdf/internal/logger"
	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/source"
	"github.com/nhle/mailpdf/internal/store"
	"github.com/nhle/mailpdf/internal/sync"
)

// App holds the wired components of the service.
type App struct {
	Config     *model.AppConfig
	Log        logger.Logger
	Store      credential.Store
	Credential *credential.Credential
	Auth       *auth.Authenticator
	Mailbox    source.Mailbox
	Ledger     *store.SQLiteStore
	Poller     *sync.Poller
}

// New builds every component from cfg. Device-flow prompts are written to
// prompt. The caller must Close the returned App.
func New(ctx context.Context, cfg *model.AppConfig, log logger.Logger, prompt io.Writer) (*App, error) {
	a := &App{Config: cfg, Log: log}

	credStore, err := newCredentialStore(cfg.Credential)
	if err != nil {
		return nil, err
	}
	a.Store = credStore

	cred, err := credStore.Load(ctx)
	if err != nil {
		log.Warn("could not load cached credential, starting empty", zap.Error(err))
	}
	a.Credential = cred

	provider := auth.NewOAuthProvider(cfg.Auth.AuthorityHost, cfg.Auth.TenantID, cfg.Auth.ClientID, cfg.Auth.Scopes)
	a.Auth = auth.NewAuthenticator(provider, auth.NewConsolePrompter(prompt, log), credStore, cred, log)

	a.Mailbox, err = newMailbox(cfg.Mailbox)
	if err != nil {
		return nil, err
	}

	sink, err := newSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	var ledger store.Ledger
	if cfg.Ledger.Path != "" {
		a.Ledger, err = store.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("opening download ledger: %w", err)
		}
		ledger = a.Ledger
	}

	processor := sync.NewProcessor(a.Mailbox, sink, ledger, log)
	a.Poller = sync.New(a.Auth, a.Mailbox, processor, sync.Config{
		Subject:  cfg.Mailbox.SubjectKey,
		Workers:  cfg.Poll.Workers,
		Interval: time.Duration(cfg.Poll.IntervalSec) * time.Second,
	}, log)

	return a, nil
}

// Run drives the poller until ctx is cancelled, on the cron schedule when
// one is configured and on the fixed interval otherwise.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Poll.Schedule != "" {
		return a.Poller.RunScheduled(ctx, a.Config.Poll.Schedule)
	}
	return a.Poller.Run(ctx)
}

// Login acquires a token, running the device flow if no cached session
// works, and makes sure the credential is persisted.
func (a *App) Login(ctx context.Context) error {
	if _, err := a.Auth.Token(ctx); err != nil {
		return err
	}
	if a.Credential.Dirty() {
		if err := a.Store.Save(ctx, a.Credential); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the ledger and flushes the credential if a previous save
// failed.
func (a *App) Close() error {
	var errs []error
	if a.Credential != nil && a.Credential.Dirty() {
		if err := a.Store.Save(context.Background(), a.Credential); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing ledger: %w", err))
		}
	}
	return errors.Join(errs...)
}
