// Package httpapi exposes the dashboard core over HTTP: feed snapshots and
// items, live-mode and region controls, the incident workflow, the activity
// feed, theme preferences, and the operational endpoints (health,
// readiness, metrics).
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/reliefops/internal/domain"
	"github.com/couchcryptid/reliefops/internal/prefs"
	"github.com/couchcryptid/reliefops/internal/store"
)

// Server wraps the gin router in an http.Server with sane timeouts.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	prefs      *prefs.Store
	logger     *slog.Logger
}

// NewServer builds the router and binds it to addr. prefsStore may be nil,
// which disables the theme endpoints with 404s.
func NewServer(addr string, st *store.Store, prefsStore *prefs.Store, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:  st,
		prefs:  prefsStore,
		logger: logger,
	}

	router.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	router.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(st)))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/shelters", s.listShelters)
		api.GET("/alerts", s.listAlerts)
		api.GET("/feeds", s.feedStatus)
		api.PUT("/live", s.setLiveMode)
		api.PUT("/region", s.setRegion)

		api.GET("/incidents", s.listIncidents)
		api.GET("/incidents/:id", s.getIncident)
		api.POST("/incidents", s.createIncident)
		api.POST("/incidents/:id/assign", s.assignIncident)
		api.POST("/incidents/:id/notes", s.addNote)
		api.PUT("/incidents/:id/runbook/:stepId", s.updateRunbookStep)
		api.POST("/incidents/:id/close", s.closeIncident)

		api.GET("/activity", s.listActivity)

		if prefsStore != nil {
			api.GET("/prefs/theme", s.getTheme)
			api.PUT("/prefs/theme", s.setTheme)
			api.POST("/prefs/theme/toggle", s.toggleTheme)
		}
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// shelterView pairs a shelter with its data-coverage marker so consumers
// can tell reported values from sample placeholders.
type shelterView struct {
	domain.Shelter
	Coverage store.Coverage `json:"coverage"`
}

func (s *Server) listShelters(c *gin.Context) {
	shelters := s.store.ActiveShelters()
	views := make([]shelterView, len(shelters))
	for i, shelter := range shelters {
		views[i] = shelterView{Shelter: shelter, Coverage: s.store.CoverageFor(shelter)}
	}
	c.JSON(http.StatusOK, gin.H{"shelters": views})
}

func (s *Server) listAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": s.store.ActiveAlerts()})
}

func (s *Server) feedStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.StateSnapshot())
}

func (s *Server) setLiveMode(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"enabled\": true|false}"})
		return
	}
	s.store.SetLiveMode(*req.Enabled)
	c.JSON(http.StatusOK, s.store.StateSnapshot())
}

func (s *Server) setRegion(c *gin.Context) {
	var req struct {
		Region string `json:"region"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !validRegion(req.Region) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "region must be a two-letter state code"})
		return
	}
	s.store.SetRegion(req.Region)
	c.JSON(http.StatusOK, s.store.StateSnapshot())
}

func (s *Server) listIncidents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"incidents": s.store.Incidents()})
}

func (s *Server) getIncident(c *gin.Context) {
	inc, err := s.store.Incident(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inc)
}

func (s *Server) createIncident(c *gin.Context) {
	var req struct {
		AlertID string `json:"alertId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AlertID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"alertId\": \"...\"}"})
		return
	}
	id, err := s.store.CreateIncidentFromAlert(req.AlertID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	inc, err := s.store.Incident(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inc)
}

func (s *Server) assignIncident(c *gin.Context) {
	var req struct {
		Assignee string `json:"assignee"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Assignee == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"assignee\": \"...\"}"})
		return
	}
	if err := s.store.AssignIncident(c.Param("id"), req.Assignee); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithIncident(c, c.Param("id"))
}

func (s *Server) addNote(c *gin.Context) {
	var req struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must include a non-empty \"text\""})
		return
	}
	if err := s.store.AddNote(c.Param("id"), req.Author, req.Text); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithIncident(c, c.Param("id"))
}

func (s *Server) updateRunbookStep(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"status\": \"todo|doing|done\"}"})
		return
	}
	status := domain.RunbookStatus(req.Status)
	if !domain.ValidRunbookStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be todo, doing, or done"})
		return
	}
	if err := s.store.UpdateRunbookStep(c.Param("id"), c.Param("stepId"), status); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithIncident(c, c.Param("id"))
}

func (s *Server) closeIncident(c *gin.Context) {
	if err := s.store.CloseIncident(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithIncident(c, c.Param("id"))
}

func (s *Server) listActivity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"activity": s.store.Activity()})
}

func (s *Server) getTheme(c *gin.Context) {
	theme, err := s.prefs.Theme(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

func (s *Server) setTheme(c *gin.Context) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !prefs.ValidTheme(prefs.Theme(req.Theme)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "theme must be dark or light"})
		return
	}
	if err := s.prefs.SetTheme(c.Request.Context(), prefs.Theme(req.Theme)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

func (s *Server) toggleTheme(c *gin.Context) {
	theme, err := s.prefs.ToggleTheme(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

func (s *Server) respondWithIncident(c *gin.Context, id string) {
	inc, err := s.store.Incident(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inc)
}

func (s *Server) writeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func validRegion(region string) bool {
	if len(region) != 2 {
		return false
	}
	for _, r := range region {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
