package api

import (
	"net/http"

	"github.com/p-n-ai/pai-sheets/internal/importer"
)

// POST /api/admin/import takes a sheet import document as the raw body.
func (h *Handler) importSheet(w http.ResponseWriter, r *http.Request) {
	body, err := readAll(w, r, maxImportBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := importer.ParseJSON(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := importer.Apply(r.Context(), h.tracker, b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.SheetCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// POST /api/admin/resync rebuilds every progress record's contexts.
func (h *Handler) resync(w http.ResponseWriter, r *http.Request) {
	n, err := h.tracker.ResyncAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// POST /api/admin/purge deletes expired announcements and jobs now.
func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	res, err := h.board.Purge(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
