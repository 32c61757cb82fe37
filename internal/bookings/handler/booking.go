package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"trainerbook/internal/bookings/service"
	httputil "trainerbook/pkg/http"
	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		logger.FromContext(r.Context(), h.log).Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, r, "Reserve", err)
		return
	}

	var req model.ReserveRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "Reserve", err)
		return
	}
	req.UserID = userID

	result, err := h.service.Reserve(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, "Reserve", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ConfirmRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "Confirm", err)
		return
	}

	booking, err := h.service.Confirm(r.Context(), ps.ByName("id"), req.PaymentReference)
	if err != nil {
		h.writeError(w, r, "Confirm", err)
		return
	}
	h.writeSuccess(w, "Confirm", booking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, r, "Cancel", err)
		return
	}

	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"), userID, model.CancelReasonUser)
	if err != nil {
		h.writeError(w, r, "Cancel", err)
		return
	}
	h.writeSuccess(w, "Cancel", booking)
}

func (h *BookingHandler) AdminCancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor := r.Header.Get(httputil.HeaderUserID)
	if actor == "" {
		actor = model.CancelReasonAdmin
	}

	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"), actor, model.CancelReasonAdmin)
	if err != nil {
		h.writeError(w, r, "AdminCancel", err)
		return
	}
	h.writeSuccess(w, "AdminCancel", booking)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Complete(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Complete", err)
		return
	}
	h.writeSuccess(w, "Complete", booking)
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, r, "GetByID", err)
		return
	}

	booking, err := h.service.GetForUser(r.Context(), ps.ByName("id"), userID)
	if err != nil {
		h.writeError(w, r, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", booking)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, r, "List", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, r, "List", err)
		return
	}

	bookings, total, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, r, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

type ExpireResponse struct {
	Expired int `json:"expired"`
}

func (h *BookingHandler) Expire(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	n, err := h.service.ExpireStale(r.Context())
	if err != nil {
		h.writeError(w, r, "Expire", err)
		return
	}
	h.writeSuccess(w, "Expire", ExpireResponse{Expired: n})
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Reserve)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/:id", h.GetByID)
	router.POST("/api/v1/bookings/:id/confirm", h.Confirm)
	router.POST("/api/v1/bookings/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/:id/complete", h.Complete)
	router.POST("/api/v1/admin/bookings/:id/cancel", h.AdminCancel)
	router.POST("/api/v1/admin/expire", h.Expire)
}
