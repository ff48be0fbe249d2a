// Package server implements the Control API: the daemon's authenticated
// JSON/HTTP surface for status, per-app info, start/stop/update/reload
// actions, and log retrieval.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loykin/sentryd/internal/apierr"
	"github.com/loykin/sentryd/internal/auth"
	"github.com/loykin/sentryd/internal/logstore"
	"github.com/loykin/sentryd/internal/process"
	"github.com/loykin/sentryd/internal/registry"
	"github.com/loykin/sentryd/internal/sysmetrics"
	"github.com/loykin/sentryd/internal/update"
)

// Version is reported by /ping and /status to let clients detect a
// protocol or feature mismatch.
const Version = "0.1.0"

var safeNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func isSafeName(name string) bool {
	return name != "" && len(name) <= 128 && safeNameRe.MatchString(name)
}

// Server wires the App Registry and Token Authority into a gin engine.
type Server struct {
	Registry  *registry.Registry
	Authority *auth.Authority
	StartedAt time.Time

	engine *gin.Engine
}

// New builds a Server with all Control API routes registered. workers
// caps how many requests are served at once, standing in for the fixed
// worker pool the daemon's config promises; 0 means no cap.
func New(reg *registry.Registry, authority *auth.Authority, workers int) *Server {
	s := &Server{Registry: reg, Authority: authority, StartedAt: time.Now()}
	s.engine = gin.New()
	s.engine.Use(concurrencyLimit(workers))
	s.engine.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		// The ref ties the client-visible 500 to the Log Store record.
		ref := uuid.NewString()
		s.Registry.Store.Appendf(logstore.Error, "panic serving %s %s (ref %s): %v", c.Request.Method, c.Request.URL.Path, ref, rec)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "ref": ref})
	}))
	s.routes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func concurrencyLimit(n int) gin.HandlerFunc {
	if n <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	sem := make(chan struct{}, n)
	return func(c *gin.Context) {
		sem <- struct{}{}
		defer func() { <-sem }()
		c.Next()
	}
}

func (s *Server) routes() {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		s.engine.Handle(method, "/ping", s.handlePing)
		s.engine.Handle(method, "/status", s.handleStatus)
	}
	s.engine.GET("/app/info", s.handleAppInfo)
	s.engine.POST("/app/action", s.handleAppAction)
	s.engine.POST("/logs", s.handleLogs)
}

func okResp(c *gin.Context, code int, payload any) {
	c.JSON(code, payload)
}

// errorResp writes the standard {"error": "..."} body. Every client-caused
// error kind surfaces as 400; only ErrIOFailure (wrapping an unexpected
// I/O failure) surfaces as 500.
func errorResp(c *gin.Context, err error) {
	c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
}

func statusCodeFor(err error) int {
	if errors.Is(err, apierr.ErrIOFailure) {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// clientIP returns the request's X-Forwarded-For address when the peer
// itself is loopback (i.e. the daemon is behind a local reverse proxy),
// and the raw peer address otherwise.
func clientIP(c *gin.Context) string {
	remote := c.Request.RemoteAddr
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			return strings.TrimSpace(strings.Split(xff, ",")[0])
		}
	}
	return host
}

type tokenBody struct {
	Token string `json:"token"`
}

func (s *Server) handlePing(c *gin.Context) {
	var body tokenBody
	_ = c.ShouldBindJSON(&body)
	if !s.Authority.Authorize(auth.RequireAny, body.Token, "") {
		errorResp(c, apierr.ErrInvalidToken)
		return
	}
	okResp(c, http.StatusOK, gin.H{"version": Version, "token": s.Authority.Classify(body.Token, "").String()})
}

// health classifies overall daemon health: no crashed apps is "good", one
// is "degraded", two or more is "yikes".
func health(crashed int) string {
	switch {
	case crashed == 0:
		return "good"
	case crashed == 1:
		return "degraded"
	default:
		return "yikes"
	}
}

type appStatus struct {
	Name   string         `json:"name"`
	Status process.Status `json:"status"`
}

func (s *Server) handleStatus(c *gin.Context) {
	var body tokenBody
	_ = c.ShouldBindJSON(&body)
	if !s.Authority.Authorize(auth.RequireGlobal, body.Token, "") {
		errorResp(c, apierr.ErrInvalidToken)
		return
	}

	apps := s.Registry.List()
	summaries := make([]appStatus, 0, len(apps))
	for _, app := range apps {
		summaries = append(summaries, appStatus{Name: app.Name, Status: app.Supervisor.Status()})
	}

	sys, _ := sysmetrics.System(c.Request.Context(), "")

	okResp(c, http.StatusOK, gin.H{
		"uptime":  int64(time.Since(s.StartedAt).Seconds()),
		"version": Version,
		"system":  sys,
		"apps":    summaries,
		"health":  health(s.Registry.CrashedCount()),
		"logs":    s.Registry.Store.First(20),
	})
}

type appInfoBody struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

func (s *Server) handleAppInfo(c *gin.Context) {
	var body appInfoBody
	_ = c.ShouldBindJSON(&body)
	if !isSafeName(body.Name) {
		errorResp(c, apierr.ErrNotFound)
		return
	}
	if !s.Authority.Authorize(auth.RequireScoped, body.Token, body.Name) {
		errorResp(c, apierr.ErrInvalidToken)
		return
	}

	app, ok := s.Registry.Get(body.Name)
	if !ok {
		errorResp(c, apierr.ErrNotFound)
		return
	}

	st := app.Supervisor.Status()
	resp := gin.H{
		"name":   app.Name,
		"status": st,
		"output": gin.H{
			"stdout": string(app.Supervisor.Stdout()),
			"stderr": string(app.Supervisor.Stderr()),
		},
	}
	if st.State == process.Running {
		if info, err := sysmetrics.Process(c.Request.Context(), st.PID); err == nil {
			resp["info"] = gin.H{
				"pid":     info.PID,
				"memory":  info.MemoryRSS,
				"threads": info.Threads,
				"uptime":  int64(st.Uptime(time.Now()).Seconds()),
			}
		}
	}
	okResp(c, http.StatusOK, resp)
}

type actionBody struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Action   string `json:"action"`
	Signal   string `json:"signal"`
	Branch   string `json:"branch"`
	Checkout string `json:"checkout"`
	Remote   string `json:"remote"`
	Force    bool   `json:"force"`
	Data     string `json:"data"`
}

func (s *Server) handleAppAction(c *gin.Context) {
	var body actionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResp(c, apierr.ErrBadRequest)
		return
	}
	if !isSafeName(body.Name) {
		errorResp(c, apierr.ErrNotFound)
		return
	}
	if !s.Authority.Authorize(auth.RequireScoped, body.Token, body.Name) {
		errorResp(c, apierr.ErrInvalidToken)
		return
	}

	app, ok := s.Registry.Get(body.Name)
	if !ok {
		errorResp(c, apierr.ErrNotFound)
		return
	}

	var err error
	switch body.Action {
	case "Stop":
		err = s.doStop(app, body.Signal)
	case "Start":
		err = s.doStart(app)
	case "Update":
		err = s.doUpdate(c.Request.Context(), app, body)
	case "Reload":
		err = s.Registry.Reload(app.Name)
	default:
		errorResp(c, apierr.ErrBadRequest)
		return
	}
	if err != nil {
		s.Registry.Store.Appendf(logstore.Error, "action %s on %s failed: %v", body.Action, body.Name, err)
		errorResp(c, err)
		return
	}

	s.Registry.Store.Appendf(logstore.Info, "[WEB] [%s] Triggered %s on %s", clientIP(c), body.Action, body.Name)
	okResp(c, http.StatusOK, gin.H{"status": "ok"})
}

// doStop delivers the requested signal (default SIGINT) and returns
// immediately; the status stays Running until the supervisor reaps the
// exit, so a client polling /app/info right after a Stop may still see
// the app as running.
func (s *Server) doStop(app *registry.App, sigName string) error {
	if app.Supervisor.Status().State != process.Running {
		return apierr.ErrAlreadyStopped
	}
	if sigName == "" {
		sigName = "SIGINT"
	}
	return app.Supervisor.Stop(sigName)
}

func (s *Server) doStart(app *registry.App) error {
	if app.Supervisor.Status().State == process.Running {
		return apierr.ErrAlreadyRunning
	}
	return app.Supervisor.Start()
}

// doUpdate runs the two update paths in order: the repo path when the
// app's config names a git remote, then the binary path when the request
// carries a blob. Either, neither, or both may apply to one request.
func (s *Server) doUpdate(ctx context.Context, app *registry.App, body actionBody) error {
	if app.Supervisor.Status().State == process.Running {
		return apierr.ErrAlreadyRunning
	}

	if app.Config.Git != nil && app.Config.Git.Repo != "" {
		if body.Branch == "" {
			return apierr.ErrMissingBranch
		}
		if err := s.runRepoUpdate(ctx, app, body); err != nil {
			return err
		}
	}

	if body.Data != "" {
		binPath := filepath.Join(app.Dir, "binary")
		if err := update.ApplyBinary(binPath, body.Data); err != nil {
			return fmt.Errorf("%w: %v", apierr.ErrIOFailure, err)
		}
	}

	return nil
}

func (s *Server) runRepoUpdate(ctx context.Context, app *registry.App, body actionBody) error {
	repoPath := filepath.Join(app.Dir, "repo")
	remote := body.Remote
	if remote == "" {
		remote = "origin"
	}
	src := update.Source{URL: app.Config.Git.Repo, Branch: body.Branch, Checkout: body.Checkout, RemoteName: remote, Force: body.Force}
	authMethod, err := update.AuthFrom(*app.Config.Git)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrIOFailure, err)
	}

	if _, statErr := os.Stat(repoPath); statErr != nil {
		if _, err := update.EnsureCloned(ctx, repoPath, src, authMethod); err != nil {
			return fmt.Errorf("%w: %v", apierr.ErrIOFailure, err)
		}
		return nil
	}

	repo, err := update.Open(repoPath)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrIOFailure, err)
	}
	if err := update.Update(ctx, repo, src, authMethod); err != nil {
		if errors.Is(err, apierr.ErrMergeConflict) {
			return apierr.ErrMergeConflict
		}
		return fmt.Errorf("%w: %v", apierr.ErrIOFailure, err)
	}
	return nil
}

type logsBody struct {
	Token   string `json:"token"`
	Page    int    `json:"page"`
	Lines   int    `json:"lines"`
	EndTime int64  `json:"end_time"`
	Rev     bool   `json:"rev"`
}

func (s *Server) handleLogs(c *gin.Context) {
	var body logsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResp(c, apierr.ErrBadRequest)
		return
	}
	if !s.Authority.Authorize(auth.RequireGlobal, body.Token, "") {
		errorResp(c, apierr.ErrInvalidToken)
		return
	}

	entries, end := s.Registry.Store.Page(body.Page, body.Lines, body.EndTime, body.Rev)
	okResp(c, http.StatusOK, gin.H{"logs": entries, "end": end})
}
