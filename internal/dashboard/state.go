package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/explorer"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/models"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/provider"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/views"
)

// ErrGenerationInFlight rejects a generate request while one is already
// outstanding. Generations are serialized, not queued.
var ErrGenerationInFlight = errors.New("dashboard: summary generation already in progress")

// ErrNoUserSelected rejects explorer operations before any dataset load.
var ErrNoUserSelected = errors.New("dashboard: no user selected")

// generateBudget bounds a background summary generation. The backend loads
// an LLM on demand, so this is generous.
const generateBudget = 10 * time.Minute

// Manager owns the per-session dashboard state: the active user, the
// explorer over that user's data, and the summary panel state. All state is
// single-writer behind one mutex.
type Manager struct {
	mu       sync.Mutex
	provider *provider.Provider
	log      *logrus.Logger
	hub      *Hub

	models       []string
	summaryModel string

	users []string

	// loadGen guards against a slow load for a previously selected user
	// overwriting state after a newer selection already landed.
	loadGen   uint64
	userID    string
	posts     *models.PostSet
	timelines []models.Timeline
	exp       *explorer.Explorer

	summaryText string
	generating  bool
}

// NewManager creates a manager bound to a data provider.
func NewManager(p *provider.Provider, hub *Hub, log *logrus.Logger, summaryModels []string, defaultModel string) *Manager {
	return &Manager{
		provider:     p,
		hub:          hub,
		log:          log,
		models:       summaryModels,
		summaryModel: defaultModel,
		posts:        models.NewPostSet(),
	}
}

// RefreshRoster re-fetches the dataset roster and notifies listeners when
// it changed.
func (m *Manager) RefreshRoster(ctx context.Context) {
	ids := m.provider.UserIDs(ctx)

	m.mu.Lock()
	changed := !equalStrings(ids, m.users)
	m.users = ids
	m.mu.Unlock()

	if changed {
		m.hub.Publish(Event{Type: "roster", Data: ids})
	}
}

// Users returns the current dataset roster.
func (m *Manager) Users() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.users))
	copy(out, m.users)
	return out
}

// SelectUser loads a user's posts and timelines and replaces the explorer.
// The load happens outside the lock; a result that arrives after a newer
// selection is silently discarded.
func (m *Manager) SelectUser(ctx context.Context, userID string) State {
	m.mu.Lock()
	m.loadGen++
	gen := m.loadGen
	m.userID = userID
	m.mu.Unlock()

	posts := m.provider.LoadPosts(ctx, userID)
	timelines := m.provider.LoadTimelines(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.loadGen {
		m.log.WithField("user_id", userID).Debug("discarding stale load")
		return m.stateLocked()
	}
	m.posts = posts
	m.timelines = timelines
	m.exp = explorer.New(posts, timelines)
	m.refreshSummaryLocked(ctx)
	return m.stateLocked()
}

// Zoom applies a chart zoom change; nil means zoomed fully out.
func (m *Manager) Zoom(ctx context.Context, r *explorer.Range) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exp == nil {
		return State{}, ErrNoUserSelected
	}
	m.exp.OnZoomChanged(r)
	m.refreshSummaryLocked(ctx)
	return m.stateLocked(), nil
}

// OverlayClick zooms into the highlight region containing t, if any.
func (m *Manager) OverlayClick(ctx context.Context, t int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exp == nil {
		return State{}, ErrNoUserSelected
	}
	if m.exp.OnOverlayClicked(t) {
		m.refreshSummaryLocked(ctx)
	}
	return m.stateLocked(), nil
}

// SetSummaryModel switches the active summarization model and re-resolves
// the cached summary for the current selection. Rejected before any user is
// selected, leaving the model unchanged.
func (m *Manager) SetSummaryModel(ctx context.Context, model string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exp == nil {
		return State{}, ErrNoUserSelected
	}
	m.summaryModel = model
	m.refreshSummaryLocked(ctx)
	return m.stateLocked(), nil
}

// Generate triggers summary generation for the current subset. At most one
// generation is in flight; concurrent requests are rejected. The flag
// transitions idle→generating→idle on completion or failure.
func (m *Manager) Generate(ctx context.Context) error {
	m.mu.Lock()
	if m.generating {
		m.mu.Unlock()
		return ErrGenerationInFlight
	}
	if m.exp == nil {
		m.mu.Unlock()
		return ErrNoUserSelected
	}
	client, err := m.provider.Backend()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	userID := m.userID
	model := m.summaryModel
	ids := m.exp.FilteredIDs()
	m.generating = true
	m.mu.Unlock()

	m.hub.Publish(Event{Type: "generation", Data: "started"})

	go func() {
		genCtx, cancel := context.WithTimeout(context.Background(), generateBudget)
		defer cancel()
		err := client.GenerateSummary(genCtx, userID, ids, model)

		m.mu.Lock()
		m.generating = false
		if err != nil {
			m.log.WithError(err).Error("summary generation failed")
		} else {
			m.refreshSummaryLocked(genCtx)
		}
		m.mu.Unlock()

		if err != nil {
			m.hub.Publish(Event{Type: "generation", Data: "failed"})
		} else {
			m.hub.Publish(Event{Type: "generation", Data: "finished"})
		}
	}()
	return nil
}

// DeleteSummary removes the cached summary for the current selection so it
// can be regenerated.
func (m *Manager) DeleteSummary(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exp == nil {
		return ErrNoUserSelected
	}
	client, err := m.provider.Backend()
	if err != nil {
		return err
	}
	key := m.exp.SummaryKey()
	if key == "" {
		return nil
	}
	if err := client.DeleteSummary(ctx, m.userID, key, m.summaryModel); err != nil {
		return err
	}
	m.summaryText = ""
	return nil
}

// State returns a snapshot of the current view-model.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// refreshSummaryLocked re-resolves the cached summary for the current
// subset's boundary key. Lookup failures degrade to no summary.
func (m *Manager) refreshSummaryLocked(ctx context.Context) {
	m.summaryText = ""
	key := m.exp.SummaryKey()
	if key == "" {
		return
	}
	text, err := m.provider.Summary(ctx, m.userID, key, m.summaryModel, m.timelines)
	if err != nil {
		m.log.WithError(err).WithField("timeline_id", key).Warn("summary lookup failed")
		return
	}
	m.summaryText = text
}

// stateLocked builds the view-model. Callers hold the lock.
func (m *Manager) stateLocked() State {
	st := State{
		UserID:           m.userID,
		Users:            append([]string(nil), m.users...),
		BackendAvailable: m.provider.BackendAvailable(),
		SummaryModel:     m.summaryModel,
		SummaryModels:    m.models,
		Summary:          views.SummaryView(m.summaryText, m.generating),
	}
	if m.exp == nil {
		return st
	}
	st.Window = m.exp.Window()
	st.Bucket = m.exp.Bucket()
	st.Regions = m.exp.Regions()
	st.Markers = m.exp.Markers()
	st.Rows = views.TableRows(m.posts, m.exp.FilteredIDs())
	st.SummaryKey = m.exp.SummaryKey()
	if start, end, ok := m.exp.InitialRange(); ok {
		st.InitialRange = &explorer.Range{Start: start, End: end}
	}
	m.posts.Each(func(p models.Post) {
		st.Timestamps = append(st.Timestamps, p.CreatedMillis())
	})
	return st
}

// State is the JSON view-model the browser renders from.
type State struct {
	UserID           string             `json:"user_id"`
	Users            []string           `json:"users"`
	BackendAvailable bool               `json:"backend_available"`
	Window           explorer.Window    `json:"window"`
	Bucket           explorer.Bucket    `json:"bucket"`
	InitialRange     *explorer.Range    `json:"initial_range,omitempty"`
	Timestamps       []int64            `json:"timestamps"`
	Regions          []explorer.Region  `json:"regions"`
	Markers          []explorer.Marker  `json:"markers"`
	Rows             []views.Row        `json:"rows"`
	Summary          views.Summary      `json:"summary"`
	SummaryKey       string             `json:"summary_key,omitempty"`
	SummaryModel     string             `json:"summary_model"`
	SummaryModels    []string           `json:"summary_models"`
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
