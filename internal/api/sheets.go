package api

import (
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

type nameRequest struct {
	Name string `json:"name"`
}

// linkRequest links an existing problem by ID, or creates one and links it.
type linkRequest struct {
	ProblemID string           `json:"problem_id"`
	Problem   *problem.Problem `json:"problem"`
}

func location(r *http.Request) sheet.Location {
	return sheet.Location{
		SheetID:      r.PathValue("id"),
		SectionID:    r.PathValue("sectionID"),
		SubsectionID: r.PathValue("subsectionID"),
	}
}

func deleted(id string) map[string]string {
	return map[string]string{"id": id}
}

// GET /api/sheets
func (h *Handler) listSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := h.tracker.ListSheets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheets)
}

// GET /api/sheets/{id}?expand=false
func (h *Handler) getSheet(w http.ResponseWriter, r *http.Request) {
	expand := true
	if v := r.URL.Query().Get("expand"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, apperr.Invalid("expand must be true or false"))
			return
		}
		expand = b
	}

	sh, err := h.tracker.GetSheet(r.Context(), r.PathValue("id"), expand)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *Handler) createSheet(w http.ResponseWriter, r *http.Request) {
	var sh sheet.Sheet
	if err := decode(w, r, &sh); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.tracker.CreateSheet(r.Context(), sh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateSheet(w http.ResponseWriter, r *http.Request) {
	var patch tracker.SheetPatch
	if err := decode(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sh, err := h.tracker.UpdateSheet(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *Handler) deleteSheet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.tracker.DeleteSheet(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(id))
}

func (h *Handler) addSection(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sec, err := h.tracker.AddSection(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

func (h *Handler) renameSection(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sec, err := h.tracker.RenameSection(r.Context(), r.PathValue("id"), r.PathValue("sectionID"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (h *Handler) deleteSection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sectionID")
	if err := h.tracker.DeleteSection(r.Context(), r.PathValue("id"), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(id))
}

func (h *Handler) addSubsection(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.tracker.AddSubsection(r.Context(), r.PathValue("id"), r.PathValue("sectionID"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) renameSubsection(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loc := location(r)
	sub, err := h.tracker.RenameSubsection(r.Context(), loc.SheetID, loc.SectionID, loc.SubsectionID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) deleteSubsection(w http.ResponseWriter, r *http.Request) {
	loc := location(r)
	if err := h.tracker.DeleteSubsection(r.Context(), loc.SheetID, loc.SectionID, loc.SubsectionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(loc.SubsectionID))
}

// POST .../subsections/{subsectionID}/problems
// Body is {"problem_id": "..."} to link an existing problem or
// {"problem": {...}} to create one in place.
func (h *Handler) linkProblem(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loc := location(r)

	switch {
	case req.Problem != nil && req.ProblemID != "":
		writeError(w, r, apperr.Invalid("send either problem_id or problem, not both"))
	case req.Problem != nil:
		p, err := h.tracker.CreateAndLinkProblem(r.Context(), loc, *req.Problem)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	default:
		sub, err := h.tracker.LinkProblem(r.Context(), loc, req.ProblemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func (h *Handler) unlinkProblem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("problemID")
	if err := h.tracker.UnlinkProblem(r.Context(), location(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(id))
}
