// Package explorer owns the interactive timeline-exploration state: the
// current selection window, the filtered and sorted post subset for that
// window, the histogram bucket width, and the highlight geometry derived
// from timelines of interest. Derived values are recomputed by explicit
// calls after each state-owning operation, never reactively.
package explorer

import (
	"sort"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/models"
)

const dayMillis = 24 * 60 * 60 * 1000

// Range is a pair of inclusive epoch-millisecond bounds reported by the
// charting surface. Bounds are applied verbatim, with no snapping.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Window is the selection window. A nil bound means unbounded.
type Window struct {
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
}

// Unbounded reports whether the window covers the full extent.
func (w Window) Unbounded() bool {
	return w.Start == nil || w.End == nil
}

// contains reports whether t falls inside the window, bounds inclusive.
func (w Window) contains(t int64) bool {
	if w.Unbounded() {
		return true
	}
	return *w.Start <= t && t <= *w.End
}

// Region is one highlighted span on the chart, spanning the timestamps of a
// timeline of interest's first and last posts.
type Region struct {
	TimelineID string `json:"timeline_id"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
}

// contains reports whether t falls inside the region, bounds inclusive.
func (r Region) contains(t int64) bool {
	return r.Start <= t && t <= r.End
}

// Marker is one vertical moment-of-change line on the chart.
type Marker struct {
	PostID string        `json:"post_id"`
	At     int64         `json:"at"`
	Moment models.Moment `json:"moment"`
}

// Explorer ties the chart, the post table and the summary lookup together.
// It is not safe for concurrent use; callers serialize access.
type Explorer struct {
	posts     *models.PostSet
	timelines []models.Timeline

	window   Window
	filtered []string
	bucket   Bucket
	regions  []Region
	markers  []Marker

	initialStart int64
	initialEnd   int64
}

// New builds an explorer over a freshly loaded dataset. The window starts
// unbounded and the initial chart extent is fixed to the oldest and newest
// post; it is not recomputed on later refreshes so it cannot fight an
// in-progress zoom.
func New(posts *models.PostSet, timelines []models.Timeline) *Explorer {
	if posts == nil {
		posts = models.NewPostSet()
	}
	e := &Explorer{posts: posts, timelines: timelines}
	e.regions = deriveRegions(posts, timelines)
	e.markers = deriveMarkers(posts, timelines)
	e.initialStart, e.initialEnd = extent(posts)
	e.bucket = bucketFor(e.initialStart, e.initialEnd)
	e.SetWindow(nil, nil)
	return e
}

// SetWindow replaces the selection window and recomputes the filtered,
// chronologically sorted post subset. Both bounds nil means unbounded. An
// empty result is valid.
func (e *Explorer) SetWindow(start, end *int64) {
	e.window = Window{Start: start, End: end}
	e.filtered = filterAndSort(e.posts, e.window)
}

// OnZoomChanged reacts to the chart reporting a new visible interval, or nil
// for "zoomed fully out". It updates the window and the histogram bucket.
func (e *Explorer) OnZoomChanged(r *Range) {
	if r == nil {
		e.SetWindow(nil, nil)
		e.bucket = BucketMonthly
		return
	}
	start, end := r.Start, r.End
	e.SetWindow(&start, &end)
	e.bucket = bucketFor(start, end)
}

// OnOverlayClicked zooms into the first highlight region containing t, in
// region list order. It reports whether any region matched; a miss leaves
// all state unchanged.
func (e *Explorer) OnOverlayClicked(t int64) bool {
	for _, r := range e.regions {
		if r.contains(t) {
			e.OnZoomChanged(&Range{Start: r.Start, End: r.End})
			return true
		}
	}
	return false
}

// Window returns the current selection window.
func (e *Explorer) Window() Window {
	return e.window
}

// FilteredIDs returns the post ids inside the current window, sorted
// ascending by timestamp.
func (e *Explorer) FilteredIDs() []string {
	out := make([]string, len(e.filtered))
	copy(out, e.filtered)
	return out
}

// Bucket returns the current histogram bucket width.
func (e *Explorer) Bucket() Bucket {
	return e.bucket
}

// Regions returns the highlight regions for timelines of interest.
func (e *Explorer) Regions() []Region {
	out := make([]Region, len(e.regions))
	copy(out, e.regions)
	return out
}

// Markers returns the moment-of-change marker lines.
func (e *Explorer) Markers() []Marker {
	out := make([]Marker, len(e.markers))
	copy(out, e.markers)
	return out
}

// InitialRange returns the full data extent in epoch milliseconds, or false
// when no posts are loaded.
func (e *Explorer) InitialRange() (start, end int64, ok bool) {
	if e.posts.Len() == 0 {
		return 0, 0, false
	}
	return e.initialStart, e.initialEnd, true
}

// SummaryKey returns the cached-summary lookup key for the current subset,
// built from its boundary post ids. Empty when the subset is empty.
func (e *Explorer) SummaryKey() string {
	if len(e.filtered) == 0 {
		return ""
	}
	return models.TimelineID(e.filtered[0], e.filtered[len(e.filtered)-1])
}

// filterAndSort selects the post ids whose timestamp falls inside the
// window and sorts them ascending. The sort is stable: posts with equal
// timestamps keep their original insertion order between recomputations, so
// table rows never jitter on a filter change.
func filterAndSort(posts *models.PostSet, w Window) []string {
	type entry struct {
		id string
		at int64
	}
	var entries []entry
	posts.Each(func(p models.Post) {
		at := p.CreatedMillis()
		if w.contains(at) {
			entries = append(entries, entry{id: p.ID, at: at})
		}
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at < entries[j].at
	})
	ids := make([]string, len(entries))
	for i, en := range entries {
		ids[i] = en.id
	}
	return ids
}

// deriveRegions emits one highlight region per timeline of interest whose
// first and last posts both resolve. Unresolvable references contribute
// nothing.
func deriveRegions(posts *models.PostSet, timelines []models.Timeline) []Region {
	var regions []Region
	for _, tl := range timelines {
		if !tl.TimelineOfInterest || len(tl.Posts) == 0 {
			continue
		}
		first, ok := posts.Get(tl.Posts[0])
		if !ok {
			continue
		}
		last, ok := posts.Get(tl.Posts[len(tl.Posts)-1])
		if !ok {
			continue
		}
		regions = append(regions, Region{
			TimelineID: tl.ID,
			Start:      first.CreatedMillis(),
			End:        last.CreatedMillis(),
		})
	}
	return regions
}

// deriveMarkers emits one vertical line per switch/escalation post across
// all loaded timelines. Marker lines are deliberately not gated on
// timeline_of_interest; a moment of change inside an ordinary span still
// gets a line.
func deriveMarkers(posts *models.PostSet, timelines []models.Timeline) []Marker {
	var markers []Marker
	seen := make(map[string]bool)
	for _, tl := range timelines {
		for _, id := range tl.Posts {
			if seen[id] {
				continue
			}
			seen[id] = true
			p, ok := posts.Get(id)
			if !ok {
				continue
			}
			if m := p.Moment(); m != models.MomentNone {
				markers = append(markers, Marker{PostID: id, At: p.CreatedMillis(), Moment: m})
			}
		}
	}
	return markers
}

// extent returns the min and max post timestamps in milliseconds.
func extent(posts *models.PostSet) (int64, int64) {
	var min, max int64
	first := true
	posts.Each(func(p models.Post) {
		at := p.CreatedMillis()
		if first {
			min, max = at, at
			first = false
			return
		}
		if at < min {
			min = at
		}
		if at > max {
			max = at
		}
	})
	return min, max
}

// bucketFor maps a window width to a histogram bucket. The step function is
// inclusive on the lower side of each band: >120 days monthly, >14 days
// weekly, otherwise daily.
func bucketFor(start, end int64) Bucket {
	days := float64(end-start) / float64(dayMillis)
	switch {
	case days > 120:
		return BucketMonthly
	case days > 14:
		return BucketWeekly
	default:
		return BucketDaily
	}
}
