// Package devserver is an in-memory reference implementation of the
// attendance REST API. It backs local development and the end-to-end tests.
package devserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollbook/internal/config"
	"rollbook/internal/model"
)

// Server wires the store and token issuer to HTTP handlers.
type Server struct {
	store  *Store
	tokens *Tokens
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the server and its routes. Metrics are registered on reg and
// exposed at /metrics.
func New(cfg config.Server, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		store:  NewStore(cfg.BcryptCost),
		tokens: NewTokens(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL),
		logger: logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.AccessLog {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(securityHeaders())
	r.Use(newHTTPMetrics(reg).middleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	limited := api.Group("", newRateLimiter(cfg.AuthRatePerMin, cfg.AuthRatePerMin).middleware())
	{
		limited.POST("/register", s.register)
		limited.POST("/login", s.login)
		limited.POST("/reset-pin", s.resetPIN)
	}

	authed := api.Group("", requireSession(s.tokens))
	{
		authed.POST("/logout", s.logout)
		authed.GET("/session", s.session)

		authed.GET("/classes", s.listClasses)
		authed.POST("/classes", s.createClass)
		authed.PATCH("/classes/:id", s.renameClass)
		authed.DELETE("/classes/:id", s.deleteClass)
		authed.GET("/classes/:id/roster", s.roster)

		authed.POST("/classes/:id/attendance", s.setAttendance)
		authed.POST("/classes/:id/attendance/bulk", s.bulkAttendance)

		authed.POST("/classes/:id/students", s.addStudent)
		authed.POST("/classes/:id/students/import", s.importStudents)
		authed.DELETE("/students/:id", s.removeStudent)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	s.engine = r
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// fail writes err as {"error": ...} with its status, or 500 for unexpected errors.
func (s *Server) fail(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
		return
	}
	s.logger.Error("request failed", "route", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// ---------- Auth ----------

type registerRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
	Role string `json:"role"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(req.PIN) < 4 {
		badRequest(c, "Name and a PIN of at least 4 characters are required")
		return
	}
	role := model.Role(req.Role)
	if role != model.RoleTeacher && role != model.RoleRep {
		badRequest(c, "Role must be teacher or rep")
		return
	}
	if err := s.store.Register(name, req.PIN, role); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("user registered", "name", name, "role", role)
	c.JSON(http.StatusCreated, gin.H{})
}

type loginRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	u, err := s.store.Authenticate(req.Name, req.PIN)
	if err != nil {
		s.fail(c, err)
		return
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Session{Token: token, User: u})
}

func (s *Server) logout(c *gin.Context) {
	s.tokens.Revoke(sessionClaims(c))
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) session(c *gin.Context) {
	claims := sessionClaims(c)
	u, ok := s.store.User(claims.Name)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired. Sign in again."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type resetPINRequest struct {
	Name   string `json:"name"`
	NewPIN string `json:"new_pin"`
}

func (s *Server) resetPIN(c *gin.Context) {
	var req resetPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || len(req.NewPIN) < 4 {
		badRequest(c, "Name and a new PIN of at least 4 characters are required")
		return
	}
	if err := s.store.ResetPIN(req.Name, req.NewPIN); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// ---------- Classes ----------

type classRequest struct {
	Name string `json:"name"`
}

func bindClassName(c *gin.Context) (string, bool) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		badRequest(c, "Class name is required")
		return "", false
	}
	return name, true
}

func (s *Server) listClasses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"classes": s.store.Classes(sessionClaims(c).Name)})
}

func (s *Server) createClass(c *gin.Context) {
	name, ok := bindClassName(c)
	if !ok {
		return
	}
	id := s.store.CreateClass(sessionClaims(c).Name, name)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) renameClass(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	name, ok := bindClassName(c)
	if !ok {
		return
	}
	if err := s.store.RenameClass(sessionClaims(c).Name, id, name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) deleteClass(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteClass(sessionClaims(c).Name, id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) roster(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if !validDate(date) {
		badRequest(c, "Invalid date")
		return
	}
	class, students, attendance, err := s.store.Roster(sessionClaims(c).Name, id, date)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": class, "students": students, "attendance": attendance})
}

// ---------- Attendance ----------

type attendanceRequest struct {
	Date      string `json:"date"`
	StudentID int64  `json:"student_id"`
	Status    string `json:"status"`
}

func (s *Server) setAttendance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil || !validDate(req.Date) {
		badRequest(c, "Date and a valid status are required")
		return
	}
	if err := s.store.SetAttendance(sessionClaims(c).Name, id, req.Date, req.StudentID, status); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) bulkAttendance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil || !validDate(req.Date) {
		badRequest(c, "Date and a valid status are required")
		return
	}
	if err := s.store.BulkAttendance(sessionClaims(c).Name, id, req.Date, status); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// ---------- Students ----------

func (s *Server) addStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.NewStudent
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	req.Name, req.StudentUID = strings.TrimSpace(req.Name), strings.TrimSpace(req.StudentUID)
	if req.Name == "" || req.StudentUID == "" {
		badRequest(c, "Student name and ID are required")
		return
	}
	if err := s.store.AddStudent(sessionClaims(c).Name, id, req); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{})
}

func (s *Server) removeStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.RemoveStudent(sessionClaims(c).Name, id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) importStudents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Students []model.NewStudent `json:"students"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	added, skipped, err := s.store.ImportStudents(sessionClaims(c).Name, id, req.Students)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "skipped": skipped})
}
