package api

import (
	"net/http"

	"github.com/p-n-ai/pai-sheets/internal/problem"
)

// GET /api/problems?tag=&difficulty=&platform=&q=
func (h *Handler) listProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := problem.Filter{
		Tag:        q.Get("tag"),
		Difficulty: q.Get("difficulty"),
		Platform:   q.Get("platform"),
		Query:      q.Get("q"),
	}
	ps, err := h.tracker.ListProblems(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) getProblem(w http.ResponseWriter, r *http.Request) {
	p, err := h.tracker.GetProblem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/problems/{id}/locations
func (h *Handler) problemLocations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.tracker.GetProblem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	locs, err := h.tracker.Locate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (h *Handler) createProblem(w http.ResponseWriter, r *http.Request) {
	var p problem.Problem
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.tracker.CreateProblem(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateProblem(w http.ResponseWriter, r *http.Request) {
	var p problem.Problem
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.tracker.UpdateProblem(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/problems/{id} also removes the problem from every sheet and
// every user's progress.
func (h *Handler) deleteProblem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.tracker.DeleteProblem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(id))
}
