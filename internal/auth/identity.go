// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeranaias/talkydino-tui/internal/util"
)

// Demo identity used when the backend identity provider is unavailable.
const (
	DemoUID   = "demo-user"
	DemoToken = "demo-token"
	DemoName  = "Demo User"
)

// Identity describes the signed-in user.
type Identity struct {
	UID          string    `json:"uid"`
	DisplayName  string    `json:"display_name,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Demo         bool      `json:"-"`
}

// DemoIdentity returns the offline identity.
func DemoIdentity() Identity {
	return Identity{UID: DemoUID, DisplayName: DemoName, IDToken: DemoToken, Demo: true}
}

// Name returns the display name, falling back to the uid.
func (id Identity) Name() string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	if id.UID != "" {
		return id.UID
	}
	return "User"
}

// =============================================================================
// TOKEN CLAIMS
// =============================================================================

// Claims is the subset of ID token claims the client cares about.
type Claims struct {
	UserID string
	Expiry time.Time
}

// ParseClaims reads claims from an ID token without verifying its signature.
// The backend verifies tokens; the client only needs the uid and expiry.
func ParseClaims(token string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token claims: %w", err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("unexpected claims type")
	}

	var c Claims
	if uid, ok := mc["user_id"].(string); ok && uid != "" {
		c.UserID = uid
	} else if sub, err := mc.GetSubject(); err == nil {
		c.UserID = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.Expiry = exp.Time
	}
	return c, nil
}

// =============================================================================
// IDENTITY FILE
// =============================================================================

// LoadIdentity reads a persisted identity. A missing file returns
// os.ErrNotExist.
func LoadIdentity(path string) (Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("failed to decode identity file: %w", err)
	}
	if id.UID == "" || id.RefreshToken == "" {
		return Identity{}, errors.New("identity file is incomplete")
	}
	return id, nil
}

// SaveIdentity persists id with owner-only permissions.
// SECURITY: The refresh token is a long-lived credential.
func SaveIdentity(path string, id Identity) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}
