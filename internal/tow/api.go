package tow

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/notification"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/middleware"
	"github.com/linkaid/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the tow module
type Handler struct {
	repo     *Repository
	notifier *notification.Service // optional
}

// NewHandler creates a new tow handler. notifier may be nil.
func NewHandler(repo *Repository, notifier *notification.Service) *Handler {
	return &Handler{repo: repo, notifier: notifier}
}

// Routes registers the tow routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListRequests)
	r.Get("/{requestID}", h.GetRequest)
	r.Post("/", h.CreateRequest)
	r.Post("/{requestID}/cancel", h.CancelRequest)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleTowOperator, platformauth.RoleTowingCompany, platformauth.RoleDispatcher))
		r.Post("/{requestID}/accept", h.AcceptRequest)
		r.Post("/{requestID}/status", h.UpdateStatus)
	})

	return r
}

// CreateRequest files a tow request for the signed-in user
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if details := req.Validate(); details != nil {
		writeError(w, errors.Validation("tow request is invalid", details))
		return
	}

	request := &Request{
		ID:          types.NewID(),
		RequesterID: user.ID,
		VehicleType: req.VehicleType,
		Location:    req.Location,
		Status:      StatusRequested,
		Notes:       req.Notes,
	}

	if err := h.repo.Create(r.Context(), actorFrom(user, r), request); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

// ListRequests lists tow requests scoped to the caller. Operators and
// company staff see the open queue plus their company's work;
// civilians see their own requests.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{}

	switch user.Role {
	case platformauth.RoleSuperAdmin:
	case platformauth.RoleTowingCompany, platformauth.RoleTowOperator, platformauth.RoleDispatcher, platformauth.RoleDriver:
		if r.URL.Query().Get("open") == "true" {
			filter.Open = true
		} else {
			if user.CompanyID.IsZero() {
				writeError(w, errors.Forbidden("no company linked to this account"))
				return
			}
			filter.CompanyID = &user.CompanyID
		}
	default:
		filter.RequesterID = &user.ID
	}

	if status := r.URL.Query().Get("status"); status != "" && !filter.Open {
		parsed := Status(status)
		if !parsed.Valid() {
			writeError(w, errors.BadRequest("unknown tow status"))
			return
		}
		filter.Status = &parsed
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			filter.Offset = n
		}
	}

	requests, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  requests,
		"total": total,
	})
}

// GetRequest gets one tow request
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	request, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !canSee(user, request) {
		writeError(w, errors.NotFound("tow request", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, request)
}

// AcceptRequest takes an open request for the operator's company
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	if user.CompanyID.IsZero() {
		writeError(w, errors.Forbidden("no company linked to this account"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	var req AcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.ETAMinutes <= 0 {
		writeError(w, errors.Validation("invalid ETA", map[string]string{
			"eta_minutes": "eta_minutes must be positive",
		}))
		return
	}

	if err := h.repo.Accept(r.Context(), actorFrom(user, r), id, user.ID, user.CompanyID, req.ETAMinutes); err != nil {
		writeError(w, err)
		return
	}

	if h.notifier != nil {
		if request, err := h.repo.GetByID(r.Context(), id); err == nil {
			h.notifier.Notify(request.RequesterID,
				"Tow request accepted",
				fmt.Sprintf("An operator is on the way, ETA %d minutes", req.ETAMinutes),
				notification.PriorityHigh,
				map[string]any{"tow_request_id": id.String()})
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus moves an accepted request forward
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if !req.Status.Valid() || req.Status == StatusRequested {
		writeError(w, errors.BadRequest("unknown tow status"))
		return
	}

	request, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if request.CompanyID == nil || *request.CompanyID != user.CompanyID {
		writeError(w, errors.Forbidden("tow request is not assigned to your company"))
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), actorFrom(user, r), id, req.Status, req.Note); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CancelRequest withdraws a request. The requester can cancel their
// own; super-admins can cancel any.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid request ID"))
		return
	}

	request, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !user.IsSuperAdmin() && request.RequesterID != user.ID {
		writeError(w, errors.NotFound("tow request", id.String()))
		return
	}

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.repo.Cancel(r.Context(), actorFrom(user, r), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// canSee applies the tow request visibility rules.
func canSee(user *auth.User, request *Request) bool {
	switch user.Role {
	case platformauth.RoleSuperAdmin:
		return true
	case platformauth.RoleTowingCompany, platformauth.RoleTowOperator, platformauth.RoleDispatcher, platformauth.RoleDriver:
		if request.Status == StatusRequested {
			return true
		}
		return request.CompanyID != nil && *request.CompanyID == user.CompanyID
	default:
		return request.RequesterID == user.ID
	}
}

func actorFrom(user *auth.User, r *http.Request) audit.Actor {
	return audit.Actor{
		ID:   user.ID,
		Name: user.FullName,
		Role: string(user.Role),
		IP:   middleware.ClientIP(r),
	}
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
