// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, uid string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uid,
		"exp":     exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// fakeProvider serves the sign-up and refresh endpoints.
type fakeProvider struct {
	t          *testing.T
	signUps    atomic.Int32
	refreshes  atomic.Int32
	refreshErr bool
	delay      time.Duration
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(f.delay):
		}
	}
	if r.URL.Query().Get("key") != "test-key" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API_KEY_INVALID"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/accounts:signUp":
		f.signUps.Add(1)
		var body map[string]bool
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(f.t, body["returnSecureToken"])
		json.NewEncoder(w).Encode(map[string]string{
			"idToken":      signedToken(f.t, "anon-1", time.Now().Add(time.Hour)),
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
			"localId":      "anon-1",
		})
	case "/token":
		f.refreshes.Add(1)
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "refresh_token", r.PostForm.Get("grant_type"))
		if f.refreshErr {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"TOKEN_EXPIRED"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id_token":      signedToken(f.t, "stored-uid", time.Now().Add(time.Hour)),
			"refresh_token": "refresh-2",
			"expires_in":    "3600",
			"user_id":       "stored-uid",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newOptions(t *testing.T, srv *httptest.Server) Options {
	t.Helper()
	return Options{
		APIKey:       "test-key",
		IdentityURL:  srv.URL + "/v1",
		TokenURL:     srv.URL + "/token",
		IdentityFile: filepath.Join(t.TempDir(), "identity.json"),
		Timeout:      2 * time.Second,
		DemoFallback: true,
	}
}

// =============================================================================
// AUTHENTICATE TESTS
// =============================================================================

func TestAuthenticate_SignUpPersistsIdentity(t *testing.T) {
	fp := &fakeProvider{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()
	opts := newOptions(t, srv)

	sess, err := Authenticate(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, sess.IsDemo())
	assert.Equal(t, "anon-1", sess.UserID())
	assert.Nil(t, sess.Reason())

	tok, err := sess.Token()
	require.NoError(t, err)
	claims, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "anon-1", claims.UserID)

	stored, err := LoadIdentity(opts.IdentityFile)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored.RefreshToken)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(opts.IdentityFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
	assert.Equal(t, int32(1), fp.signUps.Load())
}

func TestAuthenticate_ReusesStoredIdentity(t *testing.T) {
	fp := &fakeProvider{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()
	opts := newOptions(t, srv)
	require.NoError(t, SaveIdentity(opts.IdentityFile, Identity{
		UID: "stored-uid", DisplayName: "Rex", RefreshToken: "stored-refresh",
	}))

	sess, err := Authenticate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "stored-uid", sess.UserID())
	assert.Equal(t, "Rex", sess.Identity().Name())
	assert.Equal(t, int32(0), fp.signUps.Load())
	assert.Equal(t, int32(1), fp.refreshes.Load())
}

func TestAuthenticate_RevokedIdentitySignsUpAgain(t *testing.T) {
	fp := &fakeProvider{t: t, refreshErr: true}
	srv := httptest.NewServer(fp)
	defer srv.Close()
	opts := newOptions(t, srv)
	require.NoError(t, SaveIdentity(opts.IdentityFile, Identity{UID: "old", RefreshToken: "revoked"}))

	sess, err := Authenticate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "anon-1", sess.UserID())
	assert.Equal(t, int32(1), fp.signUps.Load())
}

func TestAuthenticate_TimeoutFallsBackToDemo(t *testing.T) {
	fp := &fakeProvider{t: t, delay: 2 * time.Second}
	srv := httptest.NewServer(fp)
	defer srv.Close()
	opts := newOptions(t, srv)
	opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	sess, err := Authenticate(context.Background(), opts)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, sess.IsDemo())
	assert.Equal(t, DemoUID, sess.UserID())
	assert.Equal(t, DemoName, sess.Identity().Name())
	assert.ErrorIs(t, sess.Reason(), ErrAuthUnavailable)

	tok, err := sess.Token()
	require.NoError(t, err)
	assert.Equal(t, DemoToken, tok)
}

func TestAuthenticate_NotConfigured(t *testing.T) {
	_, err := Authenticate(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrAuthUnavailable)
	assert.ErrorIs(t, err, ErrNotConfigured)

	sess, err := Authenticate(context.Background(), Options{DemoFallback: true})
	require.NoError(t, err)
	assert.True(t, sess.IsDemo())
	assert.ErrorIs(t, sess.Reason(), ErrNotConfigured)
}

func TestAuthenticate_ProviderErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(&fakeProvider{t: t})
	defer srv.Close()
	opts := newOptions(t, srv)
	opts.APIKey = "wrong-key"
	opts.DemoFallback = false

	_, err := Authenticate(context.Background(), opts)
	require.Error(t, err)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, "API_KEY_INVALID", perr.Message)
}

func TestAuthenticate_StaticToken(t *testing.T) {
	tok := signedToken(t, "static-uid", time.Now().Add(time.Hour))
	sess, err := Authenticate(context.Background(), Options{StaticToken: tok})
	require.NoError(t, err)
	assert.Equal(t, "static-uid", sess.UserID())

	got, err := sess.Token()
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	opaque := StaticSession("not-a-jwt")
	assert.Equal(t, "user", opaque.UserID())
}

// =============================================================================
// TOKEN SOURCE TESTS
// =============================================================================

func TestRefreshSource_RefreshesExpiredToken(t *testing.T) {
	fp := &fakeProvider{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()
	opts := newOptions(t, srv)

	provider := NewProvider(opts.APIKey, opts.IdentityURL, opts.TokenURL, nil)
	sess := newRefreshSession(provider, Identity{
		UID:          "stored-uid",
		IDToken:      "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Minute),
	}, opts.IdentityFile)

	tok, err := sess.Token()
	require.NoError(t, err)
	assert.NotEqual(t, "stale", tok)
	assert.Equal(t, "refresh-2", sess.Identity().RefreshToken)

	// The refreshed token is cached until it nears expiry.
	_, err = sess.Token()
	require.NoError(t, err)
	assert.Equal(t, int32(1), fp.refreshes.Load())

	stored, err := LoadIdentity(opts.IdentityFile)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", stored.RefreshToken)
}

// =============================================================================
// CLAIMS AND IDENTITY FILE TESTS
// =============================================================================

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	c, err := ParseClaims(signedToken(t, "u1", exp))
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.True(t, exp.Equal(c.Expiry))

	sub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u2"}).SignedString([]byte("k"))
	require.NoError(t, err)
	c, err = ParseClaims(sub)
	require.NoError(t, err)
	assert.Equal(t, "u2", c.UserID)
	assert.True(t, c.Expiry.IsZero())

	_, err = ParseClaims("garbage")
	assert.Error(t, err)
}

func TestLoadIdentity_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadIdentity(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0600))
	_, err = LoadIdentity(bad)
	assert.Error(t, err)

	partial := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(partial, []byte(`{"uid":"x"}`), 0600))
	_, err = LoadIdentity(partial)
	assert.Error(t, err)
}

func TestIdentity_Name(t *testing.T) {
	assert.Equal(t, "Rex", Identity{UID: "u", DisplayName: "Rex"}.Name())
	assert.Equal(t, "u", Identity{UID: "u"}.Name())
	assert.Equal(t, "User", Identity{}.Name())
}
