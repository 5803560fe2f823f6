package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const cacheVersion = 1

// defaultAccount names a session whose ID token carries no usable claim.
const defaultAccount = "default"

// tokenCache is the structure serialized into the Credential blob. It
// holds one session per signed-in account.
type tokenCache struct {
	Version  int                    `json:"version"`
	Accounts map[string]cachedToken `json:"accounts"`
}

// cachedToken is the persisted part of an oauth2.Token.
type cachedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

func newTokenCache() *tokenCache {
	return &tokenCache{Version: cacheVersion, Accounts: map[string]cachedToken{}}
}

// decodeCache parses a serialized cache. Empty input yields an empty cache.
func decodeCache(data []byte) (*tokenCache, error) {
	c := newTokenCache()
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return newTokenCache(), fmt.Errorf("decoding token cache: %w", err)
	}
	if c.Version != cacheVersion {
		return newTokenCache(), fmt.Errorf("unsupported token cache version %d", c.Version)
	}
	if c.Accounts == nil {
		c.Accounts = map[string]cachedToken{}
	}
	return c, nil
}

func (c *tokenCache) encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding token cache: %w", err)
	}
	return data, nil
}

// accounts returns the cached account names in a stable order.
func (c *tokenCache) accounts() []string {
	names := make([]string, 0, len(c.Accounts))
	for name := range c.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// put stores tok for account and reports whether the cache changed.
func (c *tokenCache) put(account string, tok *oauth2.Token) bool {
	next := fromOAuth2(tok)
	if prev, ok := c.Accounts[account]; ok && prev.equal(next) {
		return false
	}
	c.Accounts[account] = next
	return true
}

func fromOAuth2(tok *oauth2.Token) cachedToken {
	return cachedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC(),
	}
}

func (t cachedToken) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func (t cachedToken) equal(o cachedToken) bool {
	return t.AccessToken == o.AccessToken &&
		t.RefreshToken == o.RefreshToken &&
		t.TokenType == o.TokenType &&
		t.Expiry.Equal(o.Expiry)
}

// idClaims are the ID token claims used to name an account.
type idClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	ObjectID          string `json:"oid"`
}

// accountName derives the cache key for tok from its ID token. Claims are
// read without signature verification; they only label the cache entry.
func accountName(tok *oauth2.Token) string {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return defaultAccount
	}

	var claims idClaims
	// An unknown alg still leaves the claims decoded.
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return defaultAccount
	}

	switch {
	case claims.PreferredUsername != "":
		return strings.ToLower(claims.PreferredUsername)
	case claims.ObjectID != "":
		return claims.ObjectID
	default:
		return defaultAccount
	}
}
