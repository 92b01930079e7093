package httpd

import (
	"net/http"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubmissionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := primitive.ObjectIDFromHex(req.AssignmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "assignmentId must be a 24-character hex string")
		return
	}

	h.submit(w, r, id, req.Remark)
}

// CreateSubmissionForAssignment takes the assignment from the route; any
// assignmentId in the body is ignored.
func (h *Handler) CreateSubmissionForAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Assignment ID must be a 24-character hex string")
		return
	}

	var body struct {
		Remark string `json:"remark" validate:"max=2000"`
	}
	if err := h.decodeAndValidate(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.submit(w, r, id, body.Remark)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, assignmentID primitive.ObjectID, remark string) {
	p, _ := PrincipalFrom(r.Context())
	submission, err := h.studentService.CreateSubmission(r.Context(), p.Username, assignmentID, remark)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, "/api/assignments/"+assignmentID.Hex(), submission)
}
