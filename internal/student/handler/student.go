package handler

import (
	"encoding/json"
	"net/http"

	"hostel/internal/student/service"
	httputil "hostel/pkg/http"
	"hostel/pkg/logger"
	"hostel/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type StudentHandler struct {
	service service.StudentService
	log     *logger.Logger
}

func NewStudentHandler(service service.StudentService, log *logger.Logger) *StudentHandler {
	return &StudentHandler{
		service: service,
		log:     log,
	}
}

func (h *StudentHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var student model.Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Register", "error", writeErr)
		}
		return
	}

	if err := h.service.Register(r.Context(), &student); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Register", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, student); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "error", err)
	}
}

func (h *StudentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	student, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, student); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *StudentHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	students, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, students, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

func (h *StudentHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.StudentProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateProfile", "error", writeErr)
		}
		return
	}

	if err := h.service.UpdateProfile(r.Context(), ps.ByName("id"), &update); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UpdateProfile", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *StudentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/students", h.Register)
	router.GET("/api/v1/students", h.GetAll)
	router.GET("/api/v1/students/id/:id", h.GetByID)
	router.PATCH("/api/v1/students/id/:id", h.UpdateProfile)
}
