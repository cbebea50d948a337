// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// FLEXIBLE SCALARS
// =============================================================================

// FlexString accepts a JSON string or number.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = FlexString(n.String())
	return nil
}

// FlexTime accepts an RFC 3339 string or a unix timestamp in seconds or
// milliseconds.
type FlexTime struct {
	time.Time
}

// msThreshold separates unix seconds from unix milliseconds.
const msThreshold = 1e11

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = fromUnix(f)
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("unrecognized timestamp %q", s)
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("expected timestamp: %w", err)
	}
	t.Time = fromUnix(f)
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func fromUnix(f float64) time.Time {
	if f > msThreshold {
		return time.UnixMilli(int64(f))
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9))
}

// =============================================================================
// MEMORIES AND HISTORY
// =============================================================================

// Memory is a stored fact about the user.
type Memory struct {
	ID         FlexString `json:"id,omitempty"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Salience   float64    `json:"salience"`
	Confidence float64    `json:"confidence"`
}

// UnmarshalJSON defaults salience and confidence to 1 when absent.
func (m *Memory) UnmarshalJSON(data []byte) error {
	type plain Memory
	aux := struct {
		*plain
		Salience   *float64 `json:"salience"`
		Confidence *float64 `json:"confidence"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Salience, m.Confidence = 1, 1
	if aux.Salience != nil {
		m.Salience = *aux.Salience
	}
	if aux.Confidence != nil {
		m.Confidence = *aux.Confidence
	}
	return nil
}

// HistoryMessage is a past chat message.
type HistoryMessage struct {
	ID        FlexString `json:"id,omitempty"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp FlexTime   `json:"timestamp"`
}

// =============================================================================
// IDENTITY AND HEALTH
// =============================================================================

// WhoAmI is the backend's view of the caller. Fields holds the full
// response, including fields the client does not model.
type WhoAmI struct {
	UID    string         `json:"uid"`
	Fields map[string]any `json:"-"`
}

func (w *WhoAmI) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &w.Fields); err != nil {
		return err
	}
	w.UID, _ = w.Fields["uid"].(string)
	return nil
}

// Health is the backend health report.
type Health struct {
	Status string         `json:"status"`
	Fields map[string]any `json:"-"`
}

func (h *Health) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &h.Fields); err != nil {
		return err
	}
	h.Status, _ = h.Fields["status"].(string)
	return nil
}

// =============================================================================
// VECTOR STORE INSPECTION
// =============================================================================

// Episode is one stored conversation round in the vector store.
type Episode struct {
	ID          FlexString `json:"id"`
	RoundNumber int        `json:"round_number"`
	Timestamp   FlexTime   `json:"timestamp"`
	UserMessage string     `json:"user_message"`
	AIResponse  string     `json:"ai_response"`
	SessionID   FlexString `json:"session_id"`
	Tokens      int        `json:"tokens"`
	Similarity  *float64   `json:"similarity,omitempty"`
}

// ChromaStats describes the episodic memory collection.
type ChromaStats struct {
	TotalEpisodes    int    `json:"total_episodes"`
	CollectionName   string `json:"collection_name"`
	ChromaMode       string `json:"chroma_mode"`
	CollectionExists *bool  `json:"collection_exists,omitempty"`
}

// Ready reports whether the collection exists.
func (s ChromaStats) Ready() bool {
	return s.CollectionExists != nil && *s.CollectionExists
}

// ChromaInspection is the /api/chroma/inspect payload.
type ChromaInspection struct {
	Episodes []Episode   `json:"episodes"`
	Stats    ChromaStats `json:"stats"`
}

// =============================================================================
// PROFILE CARD
// =============================================================================

// Profile is the learned user profile, grouped into sections.
type Profile struct {
	Sections map[string]map[string]json.RawMessage `json:"sections"`
}

// ProfileItem is one entry of a dictionary field.
type ProfileItem struct {
	Name       string
	Confidence float64
}

// ProfileField is a decoded profile field: either a single Value or a list
// of Items.
type ProfileField struct {
	Name       string
	Value      string
	Confidence float64
	Items      []ProfileItem
}

// IsValue reports whether the field is a single value.
func (f ProfileField) IsValue() bool {
	return f.Items == nil
}

// SectionNames returns, in sorted order, the sections with at least one
// decodable field.
func (p Profile) SectionNames() []string {
	names := make([]string, 0, len(p.Sections))
	for name := range p.Sections {
		if len(p.Fields(name)) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Fields decodes the fields of section in sorted order. Fields that are
// neither shape, and empty dictionaries, are skipped.
func (p Profile) Fields(section string) []ProfileField {
	raw := p.Sections[section]
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []ProfileField
	for _, name := range names {
		if f, ok := decodeField(name, raw[name]); ok {
			out = append(out, f)
		}
	}
	return out
}

// TotalFields counts decodable fields across all sections.
func (p Profile) TotalFields() int {
	n := 0
	for name := range p.Sections {
		n += len(p.Fields(name))
	}
	return n
}

func decodeField(name string, raw json.RawMessage) (ProfileField, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ProfileField{}, false
	}

	if v, ok := obj["value"]; ok {
		f := ProfileField{Name: name, Value: scalarText(v)}
		if c, ok := obj["confidence"]; ok {
			_ = json.Unmarshal(c, &f.Confidence)
		}
		return f, true
	}

	if len(obj) == 0 {
		return ProfileField{}, false
	}
	items := make([]ProfileItem, 0, len(obj))
	for item, data := range obj {
		pi := ProfileItem{Name: item}
		var meta struct {
			Confidence float64 `json:"confidence"`
		}
		if json.Unmarshal(data, &meta) == nil {
			pi.Confidence = meta.Confidence
		}
		items = append(items, pi)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return ProfileField{Name: name, Items: items}, true
}

func scalarText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// HumanizeName turns snake_case keys into words.
func HumanizeName(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// ProfileStats summarizes the profile card.
type ProfileStats struct {
	TotalFacts  int        `json:"total_facts"`
	Version     FlexString `json:"version"`
	Tokens      int        `json:"tokens"`
	LastUpdated FlexTime   `json:"last_updated"`
}
