package dashboard

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/backend"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/config"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/explorer"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/models"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	m := opts.Manager

	// Page.
	router.GET("/", handleIndex(opts))

	// Explorer state.
	router.GET("/api/users", handleUsers(m))
	router.GET("/api/state", handleState(m))
	router.POST("/api/select-user", handleSelectUser(m))
	router.POST("/api/zoom", handleZoom(m))
	router.POST("/api/overlay-click", handleOverlayClick(m))

	// Summary panel.
	router.POST("/api/summary-model", handleSummaryModel(m))
	router.POST("/api/generate-summary", handleGenerate(m))
	router.DELETE("/api/summary", handleDeleteSummary(m))

	// Add-data session flow, proxied to the backend.
	router.POST("/api/upload", handleUpload(m))
	router.POST("/api/create-timelines", handleCreateTimelines(m))
	router.POST("/api/save-session", handleSaveSession(m))
	router.DELETE("/api/session", handleDeleteSession(m))

	// Server-push events.
	router.GET("/api/events", handleSSE(opts.Hub))
}

func handleIndex(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":      "dashboard",
			"detection": opts.Detection,
		})
	}
}

func handleUsers(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ids": m.Users()})
	}
}

func handleState(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, m.State())
	}
}

func handleSelectUser(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		c.JSON(http.StatusOK, m.SelectUser(c.Request.Context(), req.UserID))
	}
}

// zoomRequest is the chart's relayout report. A null range means "zoomed
// fully out / autorange".
type zoomRequest struct {
	Range *explorer.Range `json:"range"`
}

func handleZoom(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req zoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zoom payload"})
			return
		}
		st, err := m.Zoom(c.Request.Context(), req.Range)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleOverlayClick(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			At int64 `json:"at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid click payload"})
			return
		}
		st, err := m.OverlayClick(c.Request.Context(), req.At)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleSummaryModel(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Model string `json:"model"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Model == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
			return
		}
		st, err := m.SetSummaryModel(c.Request.Context(), req.Model)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleGenerate(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.Generate(c.Request.Context()); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, ErrGenerationInFlight) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, m.State())
	}
}

func handleDeleteSummary(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.DeleteSummary(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, m.State())
	}
}

func handleUpload(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := m.provider.Backend()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "adding data requires the backend"})
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
			return
		}
		defer file.Close()

		result, err := client.UploadUserData(c.Request.Context(), fileHeader.Filename, file)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// createTimelinesRequest carries the session handle and detection knobs
// from the add-data panel.
type createTimelinesRequest struct {
	SessionID  string  `json:"session_id"`
	Alpha      float64 `json:"alpha"`
	Beta       float64 `json:"beta"`
	Hazard     int     `json:"hazard"`
	SpanRadius int     `json:"span_radius"`
}

func handleCreateTimelines(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := m.provider.Backend()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeline creation requires the backend"})
			return
		}
		var req createTimelinesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid create-timelines payload"})
			return
		}
		if req.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no active session, upload data first"})
			return
		}
		params := config.Detection{
			Alpha:      req.Alpha,
			Beta:       req.Beta,
			Hazard:     req.Hazard,
			SpanRadius: req.SpanRadius,
		}
		if err := config.ValidateDetection(params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		timelines, err := client.CreateTimelines(c.Request.Context(), backend.CreateTimelinesRequest{
			SessionID:  req.SessionID,
			Method:     "bocpd",
			Alpha:      req.Alpha,
			Beta:       req.Beta,
			Hazard:     req.Hazard,
			SpanRadius: req.SpanRadius,
		})
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"timelines": timelines})
	}
}

func handleSaveSession(m *Manager) gin.HandlerFunc {
	return sessionAction(m, func(c *gin.Context, client sessionClient, sessionID string) error {
		return client.SaveUserData(c.Request.Context(), sessionID)
	})
}

func handleDeleteSession(m *Manager) gin.HandlerFunc {
	return sessionAction(m, func(c *gin.Context, client sessionClient, sessionID string) error {
		return client.DeleteSession(c.Request.Context(), sessionID)
	})
}

// sessionClient is the slice of the backend client the session actions use.
type sessionClient interface {
	SaveUserData(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// sessionAction wraps the shared validation for save/discard: a backend
// must be reachable and a session id must be present. Aborted actions leave
// no partial state.
func sessionAction(m *Manager, action func(*gin.Context, sessionClient, string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := m.provider.Backend()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session actions require the backend"})
			return
		}
		var session models.Session
		if err := c.ShouldBindJSON(&session); err != nil || session.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no active session, upload data first"})
			return
		}
		if err := action(c, client, session.ID); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
