package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

const (
	defaultInteractiveTimeout = 5 * time.Minute
	maxTokenResponseBytes     = 1 << 20
)

// Config points the adapter at the enterprise identity authority.
type Config struct {
	// Authority is the OAuth base, e.g.
	// https://login.microsoftonline.com/<tenant>/oauth2/v2.0
	Authority string
	ClientID  string
	// SignInScope is the scope requested during initial sign-in; resource
	// scopes for token exchange come in per call.
	SignInScope string
	ListenAddr  string
	Timeout     time.Duration
	// OpenBrowser is invoked with the authorization URL for the interactive
	// flow. When nil the URL is logged for the user to open manually.
	OpenBrowser func(url string) error
}

// Adapter implements the identity capability: silent token acquisition from a
// cached sign-in, interactive authorization-code flow (PKCE, loopback
// redirect) when there is nothing to be silent with.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	log        logrus.FieldLogger

	mu           sync.Mutex
	account      *ports.Account
	refreshToken string
	scopeTokens  map[string]*oauth2.Token
}

var _ ports.Identity = (*Adapter)(nil)

func NewAdapter(cfg Config, httpClient *http.Client, log logrus.FieldLogger) (*Adapter, error) {
	if cfg.Authority == "" {
		return nil, errors.New("identity authority is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("identity client id is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{
		cfg:         cfg,
		httpClient:  httpClient,
		log:         log,
		scopeTokens: map[string]*oauth2.Token{},
	}, nil
}

func (a *Adapter) oauthConfig(redirectURI string, scopes []string) *oauth2.Config {
	authority := strings.TrimRight(a.cfg.Authority, "/")
	return &oauth2.Config{
		ClientID:    a.cfg.ClientID,
		RedirectURL: redirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authority + "/authorize",
			TokenURL: authority + "/token",
		},
	}
}

// EnsureSignedIn returns the cached account or runs the interactive flow.
func (a *Adapter) EnsureSignedIn(ctx context.Context) (ports.Account, error) {
	a.mu.Lock()
	if a.account != nil {
		account := *a.account
		a.mu.Unlock()
		return account, nil
	}
	a.mu.Unlock()

	return a.signInInteractive(ctx)
}

func (a *Adapter) signInInteractive(ctx context.Context) (ports.Account, error) {
	state, err := NewState()
	if err != nil {
		return ports.Account{}, fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	callback, err := StartCallbackServer(a.cfg.ListenAddr, state)
	if err != nil {
		return ports.Account{}, err
	}
	defer func() { _ = callback.Close() }()

	conf := a.oauthConfig(callback.RedirectURI(), a.signInScopes())
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	if a.cfg.OpenBrowser != nil {
		if err := a.cfg.OpenBrowser(authURL); err != nil {
			a.log.WithError(err).Warn("could not open browser, open the sign-in URL manually")
			a.log.Info(authURL)
		}
	} else {
		a.log.WithField("url", authURL).Info("open this URL to sign in")
	}

	timeout := a.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultInteractiveTimeout
	}
	code, err := callback.WaitForCode(timeout)
	if err != nil {
		return ports.Account{}, fmt.Errorf("%w: %w", domain.ErrNoAccount, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return ports.Account{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	account, err := accountFromIDToken(token)
	if err != nil {
		return ports.Account{}, err
	}

	a.mu.Lock()
	a.account = &account
	a.refreshToken = token.RefreshToken
	a.mu.Unlock()

	return account, nil
}

func (a *Adapter) signInScopes() []string {
	scopes := []string{"openid", "profile", "offline_access"}
	if a.cfg.SignInScope != "" {
		scopes = append(scopes, a.cfg.SignInScope)
	}
	return scopes
}

// AcquireResourceToken returns an access token scoped to the given resource,
// silently via the cached refresh token, signing in interactively first if no
// session exists yet.
func (a *Adapter) AcquireResourceToken(ctx context.Context, scope string) (string, error) {
	if scope == "" {
		return "", errors.New("resource scope is empty")
	}

	a.mu.Lock()
	if cached, ok := a.scopeTokens[scope]; ok && cached.Valid() {
		token := cached.AccessToken
		a.mu.Unlock()
		return token, nil
	}
	refreshToken := a.refreshToken
	a.mu.Unlock()

	if refreshToken == "" {
		if _, err := a.EnsureSignedIn(ctx); err != nil {
			return "", err
		}
		a.mu.Lock()
		refreshToken = a.refreshToken
		a.mu.Unlock()
		if refreshToken == "" {
			return "", domain.ErrNoAccount
		}
	}

	token, err := a.refreshForScope(ctx, refreshToken, scope)
	if err != nil {
		return "", fmt.Errorf("acquire token for scope %q: %w", scope, err)
	}

	a.mu.Lock()
	a.scopeTokens[scope] = token
	if token.RefreshToken != "" {
		a.refreshToken = token.RefreshToken
	}
	a.mu.Unlock()

	return token.AccessToken, nil
}

// refreshForScope runs a refresh-token grant narrowed to one resource scope.
// The stock oauth2 token source cannot carry a scope on refresh, so the form
// is posted directly.
func (a *Adapter) refreshForScope(ctx context.Context, refreshToken, scope string) (*oauth2.Token, error) {
	authority := strings.TrimRight(a.cfg.Authority, "/")

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)
	values.Set("client_id", a.cfg.ClientID)
	values.Set("scope", scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authority+"/token", strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request scoped token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	token := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
	}
	if payload.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}

// accountFromIDToken pulls the stable identifier and display name out of the
// id_token claims. The token arrived over the code exchange we initiated, so
// its payload is read without local signature verification.
func accountFromIDToken(token *oauth2.Token) (ports.Account, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return ports.Account{}, errors.New("token response missing id_token")
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return ports.Account{}, errors.New("malformed id_token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ports.Account{}, fmt.Errorf("decode id_token claims: %w", err)
	}

	var claims struct {
		Sub               string `json:"sub"`
		OID               string `json:"oid"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ports.Account{}, fmt.Errorf("parse id_token claims: %w", err)
	}

	id := claims.OID
	if id == "" {
		id = claims.Sub
	}
	if id == "" {
		return ports.Account{}, errors.New("id_token missing subject claim")
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}

	return ports.Account{ID: id, Name: name}, nil
}
