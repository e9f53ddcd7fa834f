// Package models defines the entities the dashboard reads: posts, timelines
// of interest, and upload sessions. Entities are immutable once loaded for a
// user and are replaced wholesale when the active user changes.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Moment classifies a post as a detected moment of change.
type Moment string

const (
	MomentNone       Moment = ""
	MomentSwitch     Moment = "switch"
	MomentEscalation Moment = "escalation"
)

// Post is a single social-media post in a patient's history.
type Post struct {
	ID         string   `json:"-"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	CreatedUTC int64    `json:"created_utc"`
	Label      []string `json:"label"`
}

// CreatedMillis returns the post timestamp in milliseconds since epoch.
func (p Post) CreatedMillis() int64 {
	return p.CreatedUTC * 1000
}

// Created returns the post timestamp as a UTC time.
func (p Post) Created() time.Time {
	return time.Unix(p.CreatedUTC, 0).UTC()
}

// Moment derives the moment-of-change classification from the first label
// tag. A tag containing "S" marks a switch, otherwise "E" an escalation.
// Switch takes precedence over escalation everywhere in the dashboard.
func (p Post) Moment() Moment {
	if len(p.Label) == 0 {
		return MomentNone
	}
	first := p.Label[0]
	switch {
	case strings.Contains(first, "S"):
		return MomentSwitch
	case strings.Contains(first, "E"):
		return MomentEscalation
	default:
		return MomentNone
	}
}

// PostSet is an id→Post mapping that remembers the order posts were first
// added. Filtering breaks timestamp ties by this order, so it must survive
// decoding: JSON objects are walked token by token to capture key order.
type PostSet struct {
	order []string
	byID  map[string]Post
}

// NewPostSet returns an empty set.
func NewPostSet() *PostSet {
	return &PostSet{byID: make(map[string]Post)}
}

// Add inserts or replaces a post. A replaced post keeps its original
// position in the iteration order.
func (s *PostSet) Add(id string, p Post) {
	p.ID = id
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	s.byID[id] = p
}

// Get looks up a post by id.
func (s *PostSet) Get(id string) (Post, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Len returns the number of posts in the set.
func (s *PostSet) Len() int {
	return len(s.order)
}

// IDs returns the post ids in insertion order.
func (s *PostSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Each calls fn for every post in insertion order.
func (s *PostSet) Each(fn func(Post)) {
	for _, id := range s.order {
		fn(s.byID[id])
	}
}

// UnmarshalJSON decodes a JSON object of id→post, preserving key order.
func (s *PostSet) UnmarshalJSON(data []byte) error {
	s.order = nil
	s.byID = make(map[string]Post)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("models: decode posts: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("models: decode posts: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("models: decode posts: %w", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("models: decode posts: non-string key %v", keyTok)
		}
		var p Post
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("models: decode post %s: %w", id, err)
		}
		s.Add(id, p)
	}
	return nil
}

// MarshalJSON encodes the set as a JSON object in insertion order.
func (s *PostSet) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.byID[id])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
