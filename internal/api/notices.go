package api

import (
	"net/http"

	"github.com/p-n-ai/pai-sheets/internal/notice"
)

func (h *Handler) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	as, err := h.board.ListAnnouncements(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, as)
}

func (h *Handler) postAnnouncement(w http.ResponseWriter, r *http.Request) {
	var a notice.Announcement
	if err := decode(w, r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	posted, err := h.board.PostAnnouncement(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, posted)
}

func (h *Handler) deleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.board.DeleteAnnouncement(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(id))
}

// GET /api/jobs?tag=
func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.board.ListJobs(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) postJob(w http.ResponseWriter, r *http.Request) {
	var j notice.Job
	if err := decode(w, r, &j); err != nil {
		writeError(w, r, err)
		return
	}
	posted, err := h.board.PostJob(r.Context(), j)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, posted)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.board.DeleteJob(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(id))
}
