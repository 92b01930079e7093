package httpd

import (
	"net/http"

	"github.com/OmPals/VirtualClassroom/internal/models"
)

func (h *Handler) AuthenticateTutor(w http.ResponseWriter, r *http.Request) {
	var req models.AuthenticateRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.tutorService.AuthenticateTutor(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, resp)
}

func (h *Handler) AuthenticateStudent(w http.ResponseWriter, r *http.Request) {
	var req models.AuthenticateRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.studentService.AuthenticateStudent(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, resp)
}
