// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/jeranaias/talkydino-tui/internal/config"
	"github.com/jeranaias/talkydino-tui/internal/logging"
)

// DefaultTimeout bounds sign-in before the demo identity takes over.
const DefaultTimeout = 3 * time.Second

var (
	// ErrAuthUnavailable indicates no real identity could be obtained.
	ErrAuthUnavailable = errors.New("authentication unavailable")

	// ErrNotConfigured indicates no identity provider key is configured.
	ErrNotConfigured = errors.New("identity provider api key not configured")
)

// Options configures Authenticate.
type Options struct {
	APIKey       string
	IdentityURL  string
	TokenURL     string
	StaticToken  string
	IdentityFile string
	Timeout      time.Duration
	DemoFallback bool
	HTTPClient   *http.Client
}

// OptionsFromConfig maps the [auth] config section to Options.
func OptionsFromConfig(cfg config.AuthConfig) Options {
	return Options{
		APIKey:       cfg.FirebaseAPIKey,
		IdentityURL:  cfg.IdentityURL,
		TokenURL:     cfg.TokenURL,
		StaticToken:  cfg.StaticToken,
		IdentityFile: cfg.IdentityFile,
		Timeout:      cfg.Timeout(),
		DemoFallback: cfg.DemoFallback,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is an authenticated identity plus its token source.
type Session struct {
	ts      oauth2.TokenSource
	refresh *refreshSource // nil for static and demo sessions

	mu       sync.RWMutex
	identity Identity
	reason   error
}

// StaticSession wraps a fixed bearer token.
func StaticSession(token string) *Session {
	id := Identity{UID: "user", IDToken: token}
	if claims, err := ParseClaims(token); err == nil && claims.UserID != "" {
		id.UID = claims.UserID
		id.Expiry = claims.Expiry
	}
	return &Session{
		ts:       oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		identity: id,
	}
}

// DemoSession returns the offline identity. reason records why sign-in was
// abandoned and may be nil.
func DemoSession(reason error) *Session {
	return &Session{
		ts:       oauth2.StaticTokenSource(&oauth2.Token{AccessToken: DemoToken, TokenType: "Bearer"}),
		identity: DemoIdentity(),
		reason:   reason,
	}
}

// Identity returns the current identity.
func (s *Session) Identity() Identity {
	if s.refresh != nil {
		return s.refresh.current()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// UserID returns the uid used to scope cache keys.
func (s *Session) UserID() string {
	return s.Identity().UID
}

// IsDemo reports whether the session is the offline demo identity.
func (s *Session) IsDemo() bool {
	return s.Identity().Demo
}

// Reason returns why the demo identity was used, or nil.
func (s *Session) Reason() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// TokenSource returns the bearer token source.
func (s *Session) TokenSource() oauth2.TokenSource {
	return s.ts
}

// Token returns the current bearer token.
func (s *Session) Token() (string, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// =============================================================================
// AUTHENTICATE
// =============================================================================

// Authenticate returns a session for the configured mode. Sign-in is bounded
// by opts.Timeout; when it fails and DemoFallback is set, the demo session is
// returned with a nil error and Reason reports the failure.
func Authenticate(ctx context.Context, opts Options) (*Session, error) {
	log := logging.WithFields("component", "auth")

	if opts.StaticToken != "" {
		log.Info("AUTH_STATIC_TOKEN")
		return StaticSession(opts.StaticToken), nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	signCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess, err := signIn(signCtx, opts)
	if err == nil {
		log.Info("AUTH_SIGNED_IN", "uid", sess.UserID())
		return sess, nil
	}

	if errors.Is(signCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: sign-in timed out after %s", ErrAuthUnavailable, timeout)
	} else if !errors.Is(err, ErrAuthUnavailable) {
		err = fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}

	if !opts.DemoFallback {
		return nil, err
	}
	log.Warn("AUTH_DEMO_FALLBACK", "error", err)
	return DemoSession(err), nil
}

func signIn(ctx context.Context, opts Options) (*Session, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %w", ErrAuthUnavailable, ErrNotConfigured)
	}
	provider := NewProvider(opts.APIKey, opts.IdentityURL, opts.TokenURL, opts.HTTPClient)

	id, err := LoadIdentity(opts.IdentityFile)
	if err == nil {
		// Refresh up front so a revoked account is detected within the timeout.
		refreshed, rerr := provider.Refresh(ctx, id.RefreshToken)
		if rerr != nil {
			logging.WithFields("component", "auth").Warn("AUTH_REFRESH_FAILED", "error", rerr)
			err = rerr
		} else {
			if refreshed.DisplayName == "" {
				refreshed.DisplayName = id.DisplayName
			}
			id = refreshed
		}
	}
	if err != nil {
		id, err = provider.SignUp(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := SaveIdentity(opts.IdentityFile, id); err != nil {
		logging.WithFields("component", "auth").Warn("AUTH_SAVE_FAILED", "error", err)
	}
	return newRefreshSession(provider, id, opts.IdentityFile), nil
}

// =============================================================================
// REFRESHING TOKEN SOURCE
// =============================================================================

// refreshSource refreshes the ID token whenever oauth2.ReuseTokenSource
// finds the cached one expired.
type refreshSource struct {
	provider *Provider
	path     string

	mu sync.Mutex
	id Identity
}

func newRefreshSession(p *Provider, id Identity, path string) *Session {
	src := &refreshSource{provider: p, path: path, id: id}
	return &Session{
		ts:      oauth2.ReuseTokenSource(tokenOf(id), src),
		refresh: src,
	}
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := s.provider.Refresh(ctx, s.id.RefreshToken)
	if err != nil {
		return nil, err
	}
	if id.DisplayName == "" {
		id.DisplayName = s.id.DisplayName
	}
	s.id = id
	if err := SaveIdentity(s.path, id); err != nil {
		logging.WithFields("component", "auth").Warn("AUTH_SAVE_FAILED", "error", err)
	}
	return tokenOf(id), nil
}

func (s *refreshSource) current() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func tokenOf(id Identity) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  id.IDToken,
		TokenType:    "Bearer",
		RefreshToken: id.RefreshToken,
		Expiry:       id.Expiry,
	}
}
