package auth

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/mailpdf/internal/credential"
	"github.com/nhle/mailpdf/internal/logger"
)

// State is the Authenticator's position in the token acquisition flow.
type State int

const (
	StateStart State = iota
	StateAuthenticated
	StateDeviceFlowPending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAuthenticated:
		return "authenticated"
	case StateDeviceFlowPending:
		return "device_flow_pending"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TokenSource produces bearer tokens for the mailbox API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Authenticator obtains access tokens, preferring silent reuse of the
// cached sessions in its Credential and falling back to the interactive
// device-authorization flow. It is the only writer of the Credential.
type Authenticator struct {
	mu       sync.Mutex
	provider Provider
	prompter Prompter
	store    credential.Store
	cred     *credential.Credential
	log      logger.Logger
	state    State
}

// NewAuthenticator creates an Authenticator owning cred, which is
// persisted through store.
func NewAuthenticator(
	provider Provider,
	prompter Prompter,
	store credential.Store,
	cred *credential.Credential,
	log logger.Logger,
) *Authenticator {
	return &Authenticator{
		provider: provider,
		prompter: prompter,
		store:    store,
		cred:     cred,
		log:      log,
		state:    StateStart,
	}
}

// State returns the state reached by the last Token call.
func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Token returns a non-empty bearer token or an *AuthenticationError.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = StateStart

	cache, err := decodeCache(a.cred.Bytes())
	if err != nil {
		a.log.Warn("token cache unreadable, starting with an empty cache", zap.Error(err))
	}

	if token, ok := a.acquireSilent(ctx, cache); ok {
		a.state = StateAuthenticated
		return token, nil
	}

	if err := ctx.Err(); err != nil {
		a.state = StateFailed
		return "", &AuthenticationError{Stage: "silent acquisition", Err: err}
	}

	return a.acquireByDeviceFlow(ctx, cache)
}

// acquireSilent tries every cached account in order; the first one that
// yields a token wins.
func (a *Authenticator) acquireSilent(ctx context.Context, cache *tokenCache) (string, bool) {
	for _, account := range cache.accounts() {
		if ctx.Err() != nil {
			return "", false
		}

		tok, err := a.provider.Refresh(ctx, cache.Accounts[account].token())
		if err != nil {
			a.log.Debug("silent token acquisition failed", zap.String("account", account), zap.Error(err))
			continue
		}
		if tok == nil || tok.AccessToken == "" {
			a.log.Debug("silent token acquisition returned no token", zap.String("account", account))
			continue
		}

		a.log.Debug("token obtained from cache", zap.String("account", account))
		if cache.put(account, tok) {
			a.persist(ctx, cache, false)
		}
		return tok.AccessToken, true
	}
	return "", false
}

// acquireByDeviceFlow runs the DeviceFlowPending state: start the
// challenge, show it to the operator and wait for completion.
func (a *Authenticator) acquireByDeviceFlow(ctx context.Context, cache *tokenCache) (string, error) {
	a.state = StateDeviceFlowPending

	da, err := a.provider.DeviceAuth(ctx)
	if err != nil {
		return "", a.fail("device authorization", err)
	}

	if err := a.prompter.Prompt(ctx, da); err != nil {
		return "", a.fail("device authorization prompt", err)
	}

	tok, err := a.provider.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", a.fail("device flow", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", a.fail("device flow", errMissingToken)
	}

	account := accountName(tok)
	cache.put(account, tok)
	a.persist(ctx, cache, true)

	a.log.Info("signed in with device code", zap.String("account", account))
	a.state = StateAuthenticated
	return tok.AccessToken, nil
}

func (a *Authenticator) fail(stage string, err error) error {
	a.state = StateFailed
	return &AuthenticationError{Stage: stage, Err: err}
}

// persist writes the cache into the Credential and saves it. Persistence
// failures leave the in-memory credential usable and are only logged.
func (a *Authenticator) persist(ctx context.Context, cache *tokenCache, force bool) {
	data, err := cache.encode()
	if err != nil {
		a.log.Warn("could not encode token cache", zap.Error(err))
		return
	}

	a.cred.Replace(data)
	if force {
		a.cred.MarkDirty()
	}

	if err := a.store.Save(ctx, a.cred); err != nil {
		a.log.Warn("could not persist token cache; it stays in memory", zap.Error(err))
	}
}

var _ TokenSource = (*Authenticator)(nil)
