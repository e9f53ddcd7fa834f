package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// summaryKeyPrefix is how the backend stores per-model summaries on a
// timeline record: summary_tulu, summary_meta-llama/..., and so on.
const summaryKeyPrefix = "summary_"

// Timeline is a contiguous, algorithmically proposed span of posts.
type Timeline struct {
	// ID is the timeline key, conventionally "<firstPostID>-<lastPostID>".
	ID string

	// Posts holds the member post ids in chronological order.
	Posts []string

	// TimelineOfInterest marks spans worth highlighting on the chart.
	TimelineOfInterest bool

	// Summaries maps a model name to its precomputed summary text.
	Summaries map[string]string
}

// Summary returns the cached summary text for the given model, or "".
func (t Timeline) Summary(model string) string {
	return t.Summaries[model]
}

// UnmarshalJSON decodes the loosely typed backend record: fixed fields plus
// zero or more dynamic summary_<model> string fields folded into Summaries.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("models: decode timeline: %w", err)
	}

	if v, ok := raw["posts"]; ok {
		if err := json.Unmarshal(v, &t.Posts); err != nil {
			return fmt.Errorf("models: decode timeline posts: %w", err)
		}
	}
	if v, ok := raw["timeline_of_interest"]; ok {
		if err := json.Unmarshal(v, &t.TimelineOfInterest); err != nil {
			return fmt.Errorf("models: decode timeline_of_interest: %w", err)
		}
	}

	t.Summaries = nil
	for key, v := range raw {
		if !strings.HasPrefix(key, summaryKeyPrefix) {
			continue
		}
		model := strings.TrimPrefix(key, summaryKeyPrefix)
		var text string
		if err := json.Unmarshal(v, &text); err != nil {
			return fmt.Errorf("models: decode %s: %w", key, err)
		}
		if t.Summaries == nil {
			t.Summaries = make(map[string]string)
		}
		t.Summaries[model] = text
	}
	return nil
}

// TimelineID builds the conventional timeline key from its boundary posts.
func TimelineID(firstPost, lastPost string) string {
	return firstPost + "-" + lastPost
}

// Session is a server-assigned handle correlating an uploaded dataset with
// in-progress timeline detection. It lives only while the add-data flow is
// open and is destroyed by an explicit save or discard.
type Session struct {
	ID string `json:"session_id"`
}
