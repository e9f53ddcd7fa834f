package dashboard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/backend"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/fixtures"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/provider"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/views"
)

const fixturePosts = `{
	"p1": {"title":"first","body":"b","created_utc":100,"label":["0"]},
	"p2": {"title":"second","body":"b","created_utc":200,"label":["Switch"]},
	"p3": {"title":"third","body":"b","created_utc":300,"label":["0"]}
}`

const fixtureTimelines = `{
	"p1-p2": {"posts":["p1","p2"],"timeline_of_interest":true,"summary_tulu":"cached"}
}`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fixtureManager builds a manager pinned to on-disk fixtures, with the
// backend probe pointed at a dead port.
func fixtureManager(t *testing.T) (*Manager, *Hub) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"user_ids.json":            `{"ids":["patient_a"]}`,
		"patient_a_posts.json":     fixturePosts,
		"patient_a_timelines.json": fixtureTimelines,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	client := backend.New("http://127.0.0.1:1", backend.Options{Timeout: 500 * time.Millisecond})
	p := provider.New(context.Background(), client, fixtures.NewStore(dir), quietLogger())
	hub := NewHub()
	return NewManager(p, hub, quietLogger(), []string{"tulu"}, "tulu"), hub
}

func TestSelectUser(t *testing.T) {
	m, _ := fixtureManager(t)
	ctx := context.Background()

	st := m.SelectUser(ctx, "patient_a")
	if st.UserID != "patient_a" {
		t.Errorf("UserID = %q", st.UserID)
	}
	if len(st.Rows) != 3 {
		t.Errorf("rows = %d, want 3", len(st.Rows))
	}
	if len(st.Regions) != 1 {
		t.Fatalf("regions = %d, want 1", len(st.Regions))
	}
	if st.Regions[0].Start != 100000 || st.Regions[0].End != 200000 {
		t.Errorf("region = [%d,%d]", st.Regions[0].Start, st.Regions[0].End)
	}
	if len(st.Markers) != 1 || st.Markers[0].PostID != "p2" {
		t.Errorf("markers = %+v", st.Markers)
	}
	if st.SummaryKey != "p1-p3" {
		t.Errorf("summary key = %q", st.SummaryKey)
	}
	// The cached summary is keyed p1-p2; the full window does not match it.
	if st.Summary.Status != views.SummaryEmpty {
		t.Errorf("summary status = %q, want empty", st.Summary.Status)
	}
	if st.BackendAvailable {
		t.Error("BackendAvailable = true, want false in fixture mode")
	}
}

func TestSelectUserDiscardsStaleLoad(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health-check":
			io.WriteString(w, `{"Status":"ok"}`)
		case "/api/posts/patient_a":
			close(arrived)
			<-release
			io.WriteString(w, `{"a1":{"title":"t","body":"b","created_utc":100,"label":["0"]}}`)
		case "/api/posts/patient_b":
			io.WriteString(w, `{
				"b1":{"title":"t","body":"b","created_utc":100,"label":["0"]},
				"b2":{"title":"t","body":"b","created_utc":200,"label":["0"]}
			}`)
		case "/api/timelines-of-interest/patient_a", "/api/timelines-of-interest/patient_b":
			io.WriteString(w, `[]`)
		case "/api/summary":
			io.WriteString(w, `{"summary":""}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := backend.New(srv.URL, backend.Options{Timeout: 10 * time.Second})
	p := provider.New(context.Background(), client, fixtures.NewStore(t.TempDir()), quietLogger())
	m := NewManager(p, NewHub(), quietLogger(), []string{"tulu"}, "tulu")
	ctx := context.Background()

	done := make(chan State, 1)
	go func() { done <- m.SelectUser(ctx, "patient_a") }()

	// Wait until the slow load for patient_a is in flight, then switch away.
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for patient_a load to start")
	}
	st := m.SelectUser(ctx, "patient_b")
	if st.UserID != "patient_b" || len(st.Rows) != 2 {
		t.Fatalf("state after newer selection = user %q, rows %d", st.UserID, len(st.Rows))
	}

	// Let the stale load land; it must not overwrite the newer selection.
	close(release)
	select {
	case stale := <-done:
		if stale.UserID != "patient_b" {
			t.Errorf("stale load returned user %q, want patient_b", stale.UserID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stale load to finish")
	}
	st = m.State()
	if st.UserID != "patient_b" {
		t.Errorf("user after stale load = %q, want patient_b", st.UserID)
	}
	if len(st.Rows) != 2 {
		t.Errorf("rows after stale load = %d, want patient_b's 2", len(st.Rows))
	}
}

func TestOverlayClickResolvesCachedSummary(t *testing.T) {
	m, _ := fixtureManager(t)
	ctx := context.Background()
	m.SelectUser(ctx, "patient_a")

	st, err := m.OverlayClick(ctx, 150000)
	if err != nil {
		t.Fatal(err)
	}
	if st.SummaryKey != "p1-p2" {
		t.Fatalf("summary key = %q, want p1-p2", st.SummaryKey)
	}
	if st.Summary.Status != views.SummaryReady || st.Summary.Text != "cached" {
		t.Errorf("summary = %+v", st.Summary)
	}
	if got := len(st.Rows); got != 2 {
		t.Errorf("rows after zoom = %d, want 2", got)
	}

	// A click outside every region leaves the window alone.
	st, err = m.OverlayClick(ctx, 999999)
	if err != nil {
		t.Fatal(err)
	}
	if st.SummaryKey != "p1-p2" {
		t.Errorf("summary key after miss = %q", st.SummaryKey)
	}
}

func TestZoomBeforeSelect(t *testing.T) {
	m, _ := fixtureManager(t)
	if _, err := m.Zoom(context.Background(), nil); err != ErrNoUserSelected {
		t.Errorf("Zoom error = %v, want ErrNoUserSelected", err)
	}
	if _, err := m.OverlayClick(context.Background(), 0); err != ErrNoUserSelected {
		t.Errorf("OverlayClick error = %v, want ErrNoUserSelected", err)
	}
}

func TestSetSummaryModelBeforeSelect(t *testing.T) {
	m, _ := fixtureManager(t)
	if _, err := m.SetSummaryModel(context.Background(), "llama"); err != ErrNoUserSelected {
		t.Errorf("SetSummaryModel error = %v, want ErrNoUserSelected", err)
	}
	// A rejected switch must not leave a partial model change behind.
	if st := m.State(); st.SummaryModel != "tulu" {
		t.Errorf("model after rejected switch = %q, want tulu", st.SummaryModel)
	}
}

func TestGenerateRequiresBackend(t *testing.T) {
	m, _ := fixtureManager(t)
	ctx := context.Background()
	m.SelectUser(ctx, "patient_a")
	if err := m.Generate(ctx); err != provider.ErrBackendRequired {
		t.Errorf("Generate error = %v, want ErrBackendRequired", err)
	}
	if err := m.DeleteSummary(ctx); err != provider.ErrBackendRequired {
		t.Errorf("DeleteSummary error = %v, want ErrBackendRequired", err)
	}
}

func TestRefreshRosterPublishesOnChange(t *testing.T) {
	m, hub := fixtureManager(t)
	ctx := context.Background()

	ch, cancel := hub.Subscribe()
	defer cancel()

	m.RefreshRoster(ctx)
	select {
	case ev := <-ch:
		if ev.Type != "roster" {
			t.Errorf("event type = %q", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no roster event after first refresh")
	}

	// Same roster again: no event.
	m.RefreshRoster(ctx)
	select {
	case ev := <-ch:
		t.Errorf("unexpected event %+v on unchanged roster", ev)
	default:
	}

	if users := m.Users(); len(users) != 1 || users[0] != "patient_a" {
		t.Errorf("Users = %v", users)
	}
}

// backendManager builds a manager against a live httptest backend whose
// generate endpoint blocks until release is closed.
func backendManager(t *testing.T, release chan struct{}) (*Manager, *Hub) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health-check":
			io.WriteString(w, `{"Status":"ok"}`)
		case "/api/user_ids":
			io.WriteString(w, `["patient_a"]`)
		case "/api/posts/patient_a":
			io.WriteString(w, fixturePosts)
		case "/api/timelines-of-interest/patient_a":
			io.WriteString(w, `[["p1","p2"]]`)
		case "/api/summary":
			io.WriteString(w, `{"summary":""}`)
		case "/api/generate-summary":
			<-release
			io.WriteString(w, `{"ok":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := backend.New(srv.URL, backend.Options{Timeout: 5 * time.Second})
	p := provider.New(context.Background(), client, fixtures.NewStore(t.TempDir()), quietLogger())
	hub := NewHub()
	return NewManager(p, hub, quietLogger(), []string{"tulu"}, "tulu"), hub
}

func waitEvent(t *testing.T, ch <-chan Event, eventType string, data string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == eventType && ev.Data == data {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s/%s", eventType, data)
		}
	}
}

func TestGenerateSerialized(t *testing.T) {
	release := make(chan struct{})
	m, hub := backendManager(t, release)
	ctx := context.Background()
	m.SelectUser(ctx, "patient_a")

	ch, cancel := hub.Subscribe()
	defer cancel()

	if err := m.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, ch, "generation", "started")

	if st := m.State(); st.Summary.Status != views.SummaryGenerating {
		t.Errorf("summary status while generating = %q", st.Summary.Status)
	}
	if err := m.Generate(ctx); err != ErrGenerationInFlight {
		t.Errorf("concurrent Generate error = %v, want ErrGenerationInFlight", err)
	}

	close(release)
	waitEvent(t, ch, "generation", "finished")

	if st := m.State(); st.Summary.Status == views.SummaryGenerating {
		t.Error("still generating after completion")
	}
	if err := m.Generate(ctx); err != nil {
		t.Errorf("Generate after completion: %v", err)
	}
	waitEvent(t, ch, "generation", "finished")
}

func TestSetSummaryModel(t *testing.T) {
	m, _ := fixtureManager(t)
	ctx := context.Background()
	m.SelectUser(ctx, "patient_a")
	m.OverlayClick(ctx, 150000)

	// No cached summary exists for this model.
	st, err := m.SetSummaryModel(ctx, "llama")
	if err != nil {
		t.Fatal(err)
	}
	if st.SummaryModel != "llama" {
		t.Errorf("model = %q", st.SummaryModel)
	}
	if st.Summary.Status != views.SummaryEmpty {
		t.Errorf("summary status = %q, want empty", st.Summary.Status)
	}

	st, err = m.SetSummaryModel(ctx, "tulu")
	if err != nil {
		t.Fatal(err)
	}
	if st.Summary.Status != views.SummaryReady || st.Summary.Text != "cached" {
		t.Errorf("summary = %+v", st.Summary)
	}
}
