package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/auth"
	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type Handler struct {
	tutorService     service.TutorService
	studentService   service.StudentService
	reconcileService service.ReconcileService
	userService      service.UserService
	tokens           TokenParser
	validate         *validator.Validate
	logger           zerolog.Logger
}

func NewHandler(
	tutorService service.TutorService,
	studentService service.StudentService,
	reconcileService service.ReconcileService,
	userService service.UserService,
	tokens TokenParser,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		tutorService:     tutorService,
		studentService:   studentService,
		reconcileService: reconcileService,
		userService:      userService,
		tokens:           tokens,
		validate:         validator.New(),
		logger:           logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	router.Route("/api", func(api chi.Router) {
		api.Post("/tutors/authenticate", h.AuthenticateTutor)
		api.Post("/students/authenticate", h.AuthenticateStudent)

		api.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Route("/assignments", func(r chi.Router) {
				r.With(RequireRole(models.RoleTutor)).Post("/", h.CreateAssignment)
				r.Get("/", h.GetAssignments)
				r.Get("/{id}", h.GetAssignment)
				r.With(RequireRole(models.RoleTutor)).Put("/{id}", h.UpdateAssignment)
				r.With(RequireRole(models.RoleTutor)).Delete("/{id}", h.DeleteAssignment)
				r.With(RequireRole(models.RoleTutor)).Post("/{id}/reconcile", h.ReconcileAssignment)
				r.With(RequireRole(models.RoleStudent)).Post("/{id}/submission", h.CreateSubmissionForAssignment)
			})

			r.With(RequireRole(models.RoleStudent)).Post("/submissions", h.CreateSubmission)
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "virtual-classroom",
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, response)
}

// parseID reads the {id} route parameter as a 24-character hex identifier.
func parseID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("Invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fe.Field()+" failed on "+fe.Tag())
			}
			return errors.New(strings.Join(fields, "; "))
		}
		return err
	}
	return nil
}

// handleServiceError maps domain error kinds to status codes; anything else is
// logged and reported as an internal error.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch service.KindOf(err) {
	case service.KindValidation, service.KindInvalidFilter:
		writeError(w, http.StatusBadRequest, err.Error())
	case service.KindAccess:
		writeError(w, http.StatusNotFound, err.Error())
	case service.KindConflict:
		writeError(w, http.StatusConflict, err.Error())
	case service.KindAuth:
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeData(w, http.StatusOK, data)
}

func writeCreated(w http.ResponseWriter, location string, data interface{}) {
	w.Header().Set("Location", location)
	writeData(w, http.StatusCreated, data)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	writeJSON(w, status, response)
}
