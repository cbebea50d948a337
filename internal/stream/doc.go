// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the chat service's server-sent event stream into
// discrete events.
//
// The chat endpoint answers with text/event-stream framing. Each frame is a
// "data:" line terminated by a blank line, and its payload is one of:
//
//   - the literal [DONE] sentinel
//   - a bare JSON string or number (legacy delta mode)
//   - a JSON object carrying any of content, raw_output and done
//
// # Key Types
//
//   - Event: tagged variant produced for every complete frame
//   - Decoder: incremental byte-to-event decoder that tolerates frames split
//     or merged across reads
//
// # Usage
//
//	err := stream.Decode(ctx, resp.Body, func(ev stream.Event) error {
//	    return transcript.Apply(id, ev)
//	})
//
// A malformed frame never aborts decoding; it is reported as a Malformed
// event and the decoder moves on to the next frame.
package stream
