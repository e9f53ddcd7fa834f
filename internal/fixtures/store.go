// Package fixtures reads the static JSON fallback files used when the
// backend is unreachable: user_ids.json, <id>_posts.json and
// <id>_timelines.json under the configured data directory.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/models"
)

// Store reads fixture files from a data directory.
type Store struct {
	dir string
}

// NewStore creates a fixture store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory the store reads from.
func (s *Store) Dir() string {
	return s.dir
}

// UserIDs reads the dataset roster from user_ids.json.
func (s *Store) UserIDs() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "user_ids.json"))
	if err != nil {
		return nil, fmt.Errorf("fixtures: read user_ids.json: %w", err)
	}
	var roster struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("fixtures: decode user_ids.json: %w", err)
	}
	return roster.IDs, nil
}

// Posts reads the id→post mapping for a user.
func (s *Store) Posts(userID string) (*models.PostSet, error) {
	name := userID + "_posts.json"
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %s: %w", name, err)
	}
	set := models.NewPostSet()
	if err := json.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("fixtures: decode %s: %w", name, err)
	}
	return set, nil
}

// Timelines reads the full timeline mapping for a user and filters it down
// to interest-flagged entries, matching what the remote endpoint already
// filters server-side. Entries keep summaries so cached summary lookups
// work without the backend. The result is ordered by timeline key for a
// deterministic overlay scan order.
func (s *Store) Timelines(userID string) ([]models.Timeline, error) {
	name := userID + "_timelines.json"
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %s: %w", name, err)
	}
	var raw map[string]models.Timeline
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("fixtures: decode %s: %w", name, err)
	}

	keys := make([]string, 0, len(raw))
	for key, tl := range raw {
		if tl.TimelineOfInterest {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	timelines := make([]models.Timeline, 0, len(keys))
	for _, key := range keys {
		tl := raw[key]
		tl.ID = key
		timelines = append(timelines, tl)
	}
	return timelines, nil
}
