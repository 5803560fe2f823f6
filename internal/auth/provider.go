package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Provider is the identity provider as seen by the Authenticator. Keeping
// it behind an interface lets tests simulate silent failures and device
// flows that never complete or complete without a token.
type Provider interface {
	// Refresh returns a valid token for a cached session, refreshing it
	// with its refresh token when it has expired.
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)

	// DeviceAuth starts a device-authorization challenge.
	DeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error)

	// DeviceAccessToken blocks until the operator completed the challenge,
	// it expired, or ctx is done.
	DeviceAccessToken(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error)
}

// sessionScopes are always requested on top of the configured scopes: a
// refresh token, and an ID token to name the account.
var sessionScopes = []string{"offline_access", "openid", "profile"}

// OAuthProvider implements Provider with golang.org/x/oauth2 against a
// Microsoft identity platform (v2.0) tenant as a public client.
type OAuthProvider struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

// Endpoint returns the v2.0 endpoints of tenant at authorityHost.
func Endpoint(authorityHost, tenant string) oauth2.Endpoint {
	base := strings.TrimRight(authorityHost, "/") + "/" + tenant + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

// NewOAuthProvider creates a provider for the given application.
func NewOAuthProvider(authorityHost, tenant, clientID string, scopes []string) *OAuthProvider {
	return &OAuthProvider{
		cfg: &oauth2.Config{
			ClientID: clientID,
			Endpoint: Endpoint(authorityHost, tenant),
			Scopes:   requestScopes(scopes),
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// requestScopes appends the session scopes that are not already listed.
func requestScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes)+len(sessionScopes))
	seen := make(map[string]bool, len(scopes)+len(sessionScopes))
	for _, s := range append(append([]string{}, scopes...), sessionScopes...) {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func (p *OAuthProvider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *OAuthProvider) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	return p.cfg.TokenSource(p.withClient(ctx), tok).Token()
}

func (p *OAuthProvider) DeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	return p.cfg.DeviceAuth(p.withClient(ctx))
}

func (p *OAuthProvider) DeviceAccessToken(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	return p.cfg.DeviceAccessToken(p.withClient(ctx), da)
}
