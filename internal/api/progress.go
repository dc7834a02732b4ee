package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-sheets/internal/auth"
	"github.com/p-n-ai/pai-sheets/internal/report"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

func userID(r *http.Request) string {
	id, _ := auth.UserFromContext(r.Context())
	return id
}

func (h *Handler) listProgress(w http.ResponseWriter, r *http.Request) {
	recs, err := h.tracker.ListProgress(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.GetProgress(r.Context(), userID(r), r.PathValue("problemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) toggleCompletion(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.ToggleCompletion(r.Context(), userID(r), r.PathValue("problemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) toggleRevision(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.ToggleRevision(r.Context(), userID(r), r.PathValue("problemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// PUT /api/progress/{problemID} with {"completed": bool, "revision": bool};
// omitted fields are left as they are.
func (h *Handler) setProgress(w http.ResponseWriter, r *http.Request) {
	var u tracker.ProgressUpdate
	if err := decode(w, r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.tracker.SetProgress(r.Context(), userID(r), r.PathValue("problemID"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) sheetProgress(w http.ResponseWriter, r *http.Request) {
	sum, err := h.tracker.SheetProgress(r.Context(), userID(r), r.PathValue("sheetID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/progress/sheets/{sheetID}/export returns an XLSX workbook instead
// of an envelope. Errors still use the envelope.
func (h *Handler) exportSheetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(r)
	sheetID := r.PathValue("sheetID")

	sh, err := h.tracker.GetSheet(ctx, sheetID, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := h.tracker.SheetProgress(ctx, user, sheetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := h.tracker.ListProgress(ctx, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteSheetProgress(&buf, sh, sum, recs); err != nil {
		writeError(w, r, fmt.Errorf("export sheet %s: %w", sheetID, err))
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sheetID+"-progress.xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
