// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - The "whoami" and "health" commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// HandleWhoAmICommand shows the local identity and, when reachable, the
// backend's view of it.
func HandleWhoAmICommand(ctx context.Context, args Args) error {
	return withEnv(ctx, args, func(env *Env) error {
		ident := env.Session.Identity()
		data := WhoAmIData{
			UID:         ident.UID,
			DisplayName: ident.Name(),
			Demo:        env.Session.IsDemo(),
		}
		if who, err := env.Client.WhoAmI(ctx); err != nil {
			data.BackendErr = err.Error()
		} else {
			data.Backend = who.Fields
		}

		return env.output("whoami", data, func(w io.Writer) {
			printTitle(w, "Identity")
			printKV(w, "Name", data.DisplayName)
			printKV(w, "User ID", data.UID)
			mode := "signed in"
			if data.Demo {
				mode = WarningStyle.Render("offline demo")
			}
			printKV(w, "Mode", mode)

			fmt.Fprintln(w, SectionStyle.Render("Backend"))
			if data.BackendErr != "" {
				fmt.Fprintf(w, "  %s %s\n", RenderStatus("fail"), data.BackendErr)
				return
			}
			printFields(w, data.Backend)
			fmt.Fprintln(w)
		})
	})
}

// HandleHealthCommand checks the backend. An unhealthy backend is reported
// and exits non-zero.
func HandleHealthCommand(ctx context.Context, args Args) error {
	return withEnv(ctx, args, func(env *Env) error {
		start := time.Now()
		h, err := env.Client.Health(ctx)
		latency := time.Since(start)
		data := HealthData{
			BaseURL:   env.Client.BaseURL(),
			LatencyMs: latency.Milliseconds(),
		}
		if err != nil {
			data.Status = "unreachable"
			data.Error = err.Error()
		} else {
			data.Status = h.Status
			data.Fields = h.Fields
			data.Healthy = isHealthy(h.Status)
		}

		var failure error
		switch {
		case err != nil:
			failure = NewCommandError("health", "check", "backend unreachable", err)
		case !data.Healthy:
			failure = NewCommandError("health", "check", "backend reported "+data.Status, nil)
		}

		if env.Args.JSON {
			resp := NewJSONResponse("health", data)
			if failure == nil {
				return resp.Write(env.Out)
			}
			msg := failure.Error()
			resp.Success, resp.Error = false, &msg
			if werr := resp.Write(env.Out); werr != nil {
				return werr
			}
			return &ReportedError{Err: failure}
		}

		printTitle(env.Out, "Backend health")
		printKV(env.Out, "URL", data.BaseURL)
		status := "fail"
		if data.Healthy {
			status = "ok"
		}
		printKV(env.Out, "Status", RenderStatus(status)+" "+data.Status)
		printKV(env.Out, "Latency", formatDurationShort(latency))
		fmt.Fprintln(env.Out)
		return failure
	})
}

// isHealthy accepts the usual spellings of a good status.
func isHealthy(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ok", "healthy", "up", "pass", "ready":
		return true
	}
	return false
}

// printFields prints a map in key order, skipping nested values.
func printFields(w io.Writer, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := fields[k].(type) {
		case map[string]any, []any:
			continue
		case nil:
			printKV(w, k, "-")
		default:
			printKV(w, k, v)
		}
	}
}
