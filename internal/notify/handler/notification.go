package handler

import (
	"net/http"

	"hostel/internal/notify/service"
	httputil "hostel/pkg/http"
	"hostel/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type NotificationHandler struct {
	service service.NotificationService
	log     *logger.Logger
}

func NewNotificationHandler(service service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

func (h *NotificationHandler) ListByStudent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByStudent", "error", writeErr)
		}
		return
	}

	notifications, total, err := h.service.ListByStudent(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByStudent", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, notifications, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByStudent", "error", err)
	}
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	count, err := h.service.UnreadCount(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UnreadCount", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int64{"unread": count}); err != nil {
		h.log.Error("failed to write success response", "handler", "UnreadCount", "error", err)
	}
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.MarkRead(r.Context(), ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "MarkRead", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	updated, err := h.service.MarkAllRead(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "MarkAllRead", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int64{"updated": updated}); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkAllRead", "error", err)
	}
}

func (h *NotificationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/notifications/student/:id", h.ListByStudent)
	router.GET("/api/v1/notifications/student/:id/unread-count", h.UnreadCount)
	router.POST("/api/v1/notifications/id/:id/read", h.MarkRead)
	router.POST("/api/v1/notifications/student/:id/read-all", h.MarkAllRead)
}
