// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxProviderResponse bounds identity provider responses.
const maxProviderResponse = 1 << 20

// ProviderError is a non-2xx response from the identity provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity provider error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("identity provider error (HTTP %d)", e.Status)
}

// =============================================================================
// PROVIDER CLIENT
// =============================================================================

// Provider talks to the Identity Toolkit and secure token endpoints.
type Provider struct {
	apiKey      string
	identityURL string
	tokenURL    string
	httpClient  *http.Client
	now         func() time.Time
}

// NewProvider creates a provider client. A nil httpClient uses a client
// with a 10 second timeout.
func NewProvider(apiKey, identityURL, tokenURL string, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{
		apiKey:      strings.TrimSpace(apiKey),
		identityURL: strings.TrimSuffix(identityURL, "/"),
		tokenURL:    tokenURL,
		httpClient:  httpClient,
		now:         time.Now,
	}
}

type signUpResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	DisplayName  string `json:"displayName"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type providerErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp creates a new anonymous account.
func (p *Provider) SignUp(ctx context.Context) (Identity, error) {
	endpoint := p.identityURL + "/accounts:signUp?key=" + url.QueryEscape(p.apiKey)
	body, _ := json.Marshal(map[string]bool{"returnSecureToken": true})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create sign-up request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp signUpResponse
	if err := p.do(req, &resp); err != nil {
		return Identity{}, fmt.Errorf("anonymous sign-up failed: %w", err)
	}
	return p.identity(resp.LocalID, resp.DisplayName, resp.IDToken, resp.RefreshToken, resp.ExpiresIn), nil
}

// Refresh exchanges a refresh token for a new ID token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (Identity, error) {
	endpoint := p.tokenURL + "?key=" + url.QueryEscape(p.apiKey)
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := p.do(req, &resp); err != nil {
		return Identity{}, fmt.Errorf("token refresh failed: %w", err)
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	return p.identity(resp.UserID, "", resp.IDToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (p *Provider) do(req *http.Request, dst any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &ProviderError{Status: resp.StatusCode}
		var body providerErrorResponse
		if json.Unmarshal(data, &body) == nil {
			perr.Message = body.Error.Message
		}
		return perr
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// identity builds an Identity, preferring the ID token claims for the uid
// and expiry when the response omits them.
func (p *Provider) identity(uid, name, idToken, refreshToken, expiresIn string) Identity {
	id := Identity{UID: uid, DisplayName: name, IDToken: idToken, RefreshToken: refreshToken}
	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		id.Expiry = p.now().Add(time.Duration(secs) * time.Second)
	}
	if claims, err := ParseClaims(idToken); err == nil {
		if id.UID == "" {
			id.UID = claims.UserID
		}
		if id.Expiry.IsZero() {
			id.Expiry = claims.Expiry
		}
	}
	return id
}
