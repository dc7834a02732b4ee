// Package api exposes the tracker over HTTP. Every response body is a
// {"success": ..., "data" | "error"} envelope.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/auth"
	"github.com/p-n-ai/pai-sheets/internal/notice"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

const readyTimeout = 2 * time.Second

// Check is a named readiness check such as a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config holds the handler dependencies.
type Config struct {
	Tracker        *tracker.Service
	Board          *notice.Board
	Live           http.Handler // websocket progress stream, optional
	UserHeader     string
	AdminTokenHash string
	CORSOrigins    []string
	Checks         []Check
}

// Handler serves the REST API.
type Handler struct {
	tracker *tracker.Service
	board   *notice.Board
	live    http.Handler
	auth    *auth.Authenticator
	checks  []Check
}

// New builds the routed, middleware-wrapped API handler.
func New(cfg Config) http.Handler {
	h := &Handler{
		tracker: cfg.Tracker,
		board:   cfg.Board,
		live:    cfg.Live,
		auth:    auth.New(cfg.UserHeader, cfg.AdminTokenHash, writeError),
		checks:  cfg.Checks,
	}

	userHeader := cfg.UserHeader
	if userHeader == "" {
		userHeader = auth.DefaultUserHeader
	}
	return Chain(h.routes(),
		Recover,
		Logger,
		CORS(cfg.CORSOrigins, userHeader),
	)
}

func (h *Handler) routes() *http.ServeMux {
	mux := http.NewServeMux()
	admin := func(fn http.HandlerFunc) http.Handler { return h.auth.RequireAdmin(fn) }
	user := func(fn http.HandlerFunc) http.Handler { return h.auth.RequireUser(fn) }

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)

	// Sheets
	mux.HandleFunc("GET /api/sheets", h.listSheets)
	mux.HandleFunc("GET /api/sheets/{id}", h.getSheet)
	mux.Handle("POST /api/sheets", admin(h.createSheet))
	mux.Handle("PUT /api/sheets/{id}", admin(h.updateSheet))
	mux.Handle("DELETE /api/sheets/{id}", admin(h.deleteSheet))

	mux.Handle("POST /api/sheets/{id}/sections", admin(h.addSection))
	mux.Handle("PUT /api/sheets/{id}/sections/{sectionID}", admin(h.renameSection))
	mux.Handle("DELETE /api/sheets/{id}/sections/{sectionID}", admin(h.deleteSection))

	const sub = "/api/sheets/{id}/sections/{sectionID}/subsections"
	mux.Handle("POST "+sub, admin(h.addSubsection))
	mux.Handle("PUT "+sub+"/{subsectionID}", admin(h.renameSubsection))
	mux.Handle("DELETE "+sub+"/{subsectionID}", admin(h.deleteSubsection))
	mux.Handle("POST "+sub+"/{subsectionID}/problems", admin(h.linkProblem))
	mux.Handle("DELETE "+sub+"/{subsectionID}/problems/{problemID}", admin(h.unlinkProblem))

	// Problems
	mux.HandleFunc("GET /api/problems", h.listProblems)
	mux.HandleFunc("GET /api/problems/{id}", h.getProblem)
	mux.HandleFunc("GET /api/problems/{id}/locations", h.problemLocations)
	mux.Handle("POST /api/problems", admin(h.createProblem))
	mux.Handle("PUT /api/problems/{id}", admin(h.updateProblem))
	mux.Handle("DELETE /api/problems/{id}", admin(h.deleteProblem))

	// Progress
	mux.Handle("GET /api/progress", user(h.listProgress))
	mux.Handle("GET /api/progress/{problemID}", user(h.getProgress))
	mux.Handle("POST /api/progress/{problemID}/complete", user(h.toggleCompletion))
	mux.Handle("POST /api/progress/{problemID}/revision", user(h.toggleRevision))
	mux.Handle("PUT /api/progress/{problemID}", user(h.setProgress))
	mux.Handle("GET /api/progress/sheets/{sheetID}", user(h.sheetProgress))
	mux.Handle("GET /api/progress/sheets/{sheetID}/export", user(h.exportSheetProgress))
	if h.live != nil {
		mux.Handle("GET /api/progress/stream", h.auth.RequireUser(h.live))
	}

	// Notices
	mux.HandleFunc("GET /api/announcements", h.listAnnouncements)
	mux.Handle("POST /api/announcements", admin(h.postAnnouncement))
	mux.Handle("DELETE /api/announcements/{id}", admin(h.deleteAnnouncement))
	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.Handle("POST /api/jobs", admin(h.postJob))
	mux.Handle("DELETE /api/jobs/{id}", admin(h.deleteJob))

	// Admin
	mux.Handle("POST /api/admin/import", admin(h.importSheet))
	mux.Handle("POST /api/admin/resync", admin(h.resync))
	mux.Handle("POST /api/admin/purge", admin(h.purge))

	return mux
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	ready := true
	for _, c := range h.checks {
		if err := c.Fn(ctx); err != nil {
			status[c.Name] = err.Error()
			ready = false
			continue
		}
		status[c.Name] = "ok"
	}

	if !ready {
		send(w, http.StatusServiceUnavailable, envelope{
			Error:   "unavailable",
			Message: "dependencies not ready",
			Data:    status,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": status})
}
