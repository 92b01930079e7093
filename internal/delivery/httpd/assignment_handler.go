package httpd

import (
	"net/http"

	"github.com/OmPals/VirtualClassroom/internal/models"
)

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req models.AssignmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, _ := PrincipalFrom(r.Context())
	assignment, err := h.tutorService.CreateAssignment(r.Context(), p.Username, &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, "/api/assignments/"+assignment.ID.Hex(), assignment)
}

// GetAssignments lists the tutor's assignments, or the student's
// assignment-submission pairs, filtered by status.
func (h *Handler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	filterAssignments := r.URL.Query().Get("filterAssignments")
	filterSubmissions := r.URL.Query().Get("filterSubmissions")

	if p.Role == models.RoleTutor {
		assignments, err := h.tutorService.GetAssignmentsByFilter(r.Context(), p.Username, filterAssignments)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		writeSuccess(w, assignments)
		return
	}

	entries, err := h.studentService.GetAssignmentSubmissionsByFilter(r.Context(), p.Username, filterAssignments, filterSubmissions)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, entries)
}

// GetAssignment returns every submission of the assignment to its tutor, and
// the caller's own submission to a student.
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Assignment ID must be a 24-character hex string")
		return
	}

	p, _ := PrincipalFrom(r.Context())
	if p.Role == models.RoleTutor {
		submissions, err := h.tutorService.GetSubmissionsByAssignment(r.Context(), id, p.Username)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		writeSuccess(w, submissions)
		return
	}

	entry, err := h.studentService.GetSubmissionByAssignment(r.Context(), id, p.Username)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, entry)
}

func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Assignment ID must be a 24-character hex string")
		return
	}

	var req models.AssignmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, _ := PrincipalFrom(r.Context())
	assignment, err := h.tutorService.UpdateAssignment(r.Context(), id, &req, p.Username)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, assignment)
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Assignment ID must be a 24-character hex string")
		return
	}

	p, _ := PrincipalFrom(r.Context())
	if err := h.tutorService.DeleteAssignment(r.Context(), id, p.Username); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReconcileAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Assignment ID must be a 24-character hex string")
		return
	}

	p, _ := PrincipalFrom(r.Context())
	report, err := h.reconcileService.ReconcileOwned(r.Context(), id, p.Username)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, report)
}
