package notification

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/errors"
)

// Handler provides HTTP handlers for the notification module
type Handler struct {
	svc *Service
}

// NewHandler creates a new notification handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the notification routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListNotifications)
	r.Post("/{notificationID}/read", h.MarkAsRead)

	return r
}

// ListNotifications lists the signed-in user's notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": h.svc.ListForUser(user.ID),
	})
}

// MarkAsRead marks one of the user's notifications as read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id := chi.URLParam(r, "notificationID")
	if err := h.svc.MarkAsRead(user.ID, id); err != nil {
		writeError(w, errors.NotFound("notification", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
