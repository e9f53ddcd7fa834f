package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/config"
)

func TestStart_NilManager(t *testing.T) {
	err := Start(context.Background(), StartOpts{Manager: nil})
	if err == nil {
		t.Fatal("expected error for nil manager")
	}
	if !strings.Contains(err.Error(), "manager is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "manager is required")
	}
}

func TestStart_NilHub(t *testing.T) {
	m, _ := fixtureManager(t)
	err := Start(context.Background(), StartOpts{Manager: m})
	if err == nil {
		t.Fatal("expected error for nil hub")
	}
	if !strings.Contains(err.Error(), "hub is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "hub is required")
	}
}

func TestEmbeddedAssets(t *testing.T) {
	for _, name := range []string{"assets/app.js", "assets/style.css"} {
		data, err := assetsFS.ReadFile(name)
		if err != nil {
			t.Fatalf("%s not embedded: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	data, err := templatesFS.ReadFile("templates/layout.html")
	if err != nil {
		t.Fatalf("layout.html not embedded: %v", err)
	}
	if !strings.Contains(string(data), "plotly") {
		t.Error("layout.html does not reference plotly")
	}
}

// setupTestServer builds the full route table over a fixture-mode manager
// and serves it from an ephemeral port.
func setupTestServer(t *testing.T) (string, *Manager) {
	t.Helper()
	m, hub := fixtureManager(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	tmpl, err := parseTemplates()
	if err != nil {
		t.Fatal(err)
	}
	router.SetHTMLTemplate(tmpl)
	registerRoutes(router, StartOpts{
		Manager:   m,
		Hub:       hub,
		Detection: config.Detection{Alpha: 0.01, Beta: 10, Hazard: 1000, SpanRadius: 7},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL, m
}

func getStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestIndex_Returns200(t *testing.T) {
	baseURL, _ := setupTestServer(t)
	if status := getStatus(t, baseURL+"/"); status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
}

func TestStaticAssets(t *testing.T) {
	baseURL, _ := setupTestServer(t)
	for _, path := range []string{"/static/app.js", "/static/style.css"} {
		if status := getStatus(t, baseURL+path); status != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, status)
		}
	}
}

func TestUsersRoute(t *testing.T) {
	baseURL, m := setupTestServer(t)
	m.RefreshRoster(context.Background())

	resp, err := http.Get(baseURL + "/api/users")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.IDs) != 1 || out.IDs[0] != "patient_a" {
		t.Errorf("ids = %v", out.IDs)
	}
}

func TestSelectUserRoute(t *testing.T) {
	baseURL, _ := setupTestServer(t)

	resp := postJSON(t, baseURL+"/api/select-user", `{"user_id":"patient_a"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.UserID != "patient_a" || len(st.Rows) != 3 {
		t.Errorf("state = user %q, rows %d", st.UserID, len(st.Rows))
	}
}

func TestSelectUserRoute_MissingID(t *testing.T) {
	baseURL, _ := setupTestServer(t)
	resp := postJSON(t, baseURL+"/api/select-user", `{}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestZoomRoute_BeforeSelect(t *testing.T) {
	baseURL, _ := setupTestServer(t)
	resp := postJSON(t, baseURL+"/api/zoom", `{"range":null}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSummaryModelRoute_BeforeSelect(t *testing.T) {
	baseURL, _ := setupTestServer(t)
	resp := postJSON(t, baseURL+"/api/summary-model", `{"model":"llama"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestZoomRoute(t *testing.T) {
	baseURL, m := setupTestServer(t)
	m.SelectUser(context.Background(), "patient_a")

	resp := postJSON(t, baseURL+"/api/zoom", `{"range":{"start":100000,"end":200000}}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if len(st.Rows) != 2 {
		t.Errorf("rows after zoom = %d, want 2", len(st.Rows))
	}
	if st.SummaryKey != "p1-p2" {
		t.Errorf("summary key = %q", st.SummaryKey)
	}
}

func TestGenerateRoute_FixtureMode(t *testing.T) {
	baseURL, m := setupTestServer(t)
	m.SelectUser(context.Background(), "patient_a")

	resp := postJSON(t, baseURL+"/api/generate-summary", `{}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without backend", resp.StatusCode)
	}
}

func TestSessionRoutes_RequireBackend(t *testing.T) {
	baseURL, _ := setupTestServer(t)

	resp := postJSON(t, baseURL+"/api/create-timelines", `{"session_id":"s1","alpha":0.01,"beta":10,"hazard":1000,"span_radius":7}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("create-timelines status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, baseURL+"/api/save-session", `{"session_id":"s1"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("save-session status = %d, want 400", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, baseURL+"/api/session", strings.NewReader(`{"session_id":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusBadRequest {
		t.Errorf("delete-session status = %d, want 400", dresp.StatusCode)
	}
}

func TestSSEEndpoint(t *testing.T) {
	baseURL, _ := setupTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
	// The stream opens with a connected frame.
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "connected") {
		t.Errorf("first frame = %q, want connected event", string(buf[:n]))
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	baseURL, _ := setupTestServer(t)
	if status := getStatus(t, baseURL+"/nonexistent"); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}
