// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds file helpers shared by config, auth and the chat
// history.
//
// AtomicWriteFile writes through a synced temp file and a rename, so a
// crash never leaves a half-written config, identity or history file.
//
//	err := util.AtomicWriteFile(path, data, 0600, 0700)
package util
