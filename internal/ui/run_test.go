// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/auth"
)

func TestRun_RequiresClientAndSession(t *testing.T) {
	err := Run(context.Background(), Options{Session: auth.StaticSession("tok")})
	assert.Error(t, err)

	err = Run(context.Background(), Options{Client: api.New(api.Options{})})
	assert.Error(t, err)
}

func TestProgramRef_SendWithoutProgram(t *testing.T) {
	ref := &programRef{}
	assert.NotPanics(t, func() { ref.send("dropped") })
	ref.set(nil)
	assert.NotPanics(t, func() { ref.send("dropped") })
}
