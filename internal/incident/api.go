package incident

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linkaid/platform/internal/ai"
	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/middleware"
	"github.com/linkaid/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the incident module
type Handler struct {
	repo   *Repository
	triage *ai.Client // optional
}

// NewHandler creates a new incident handler. triage may be nil.
func NewHandler(repo *Repository, triage *ai.Client) *Handler {
	return &Handler{repo: repo, triage: triage}
}

// Routes registers the incident routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListIncidents)
	r.Get("/{incidentID}", h.GetIncident)
	r.Post("/", h.ReportIncident)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin, platformauth.RoleDispatcher))
		r.Post("/{incidentID}/assign", h.AssignResponder)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin, platformauth.RoleResponder, platformauth.RoleDispatcher))
		r.Post("/{incidentID}/resolve", h.ResolveIncident)
	})

	return r
}

// ReportIncident files a new incident for the signed-in user
func (h *Handler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if details := req.Validate(); details != nil {
		writeError(w, errors.Validation("incident report is invalid", details))
		return
	}

	priority := req.Priority

	inc := &Incident{
		ID:          types.NewID(),
		ReporterID:  user.ID,
		Description: req.Description,
		Location:    req.Location,
		Status:      StatusOpen,
		ImageURLs:   req.ImageURLs,
	}

	// Triage is advisory: a dead service never blocks a report.
	if h.triage != nil {
		result, err := h.triage.Triage(r.Context(), ai.TriageRequest{
			Description: req.Description,
			Address:     req.Location.Address,
			City:        req.Location.City,
			Lat:         req.Location.Lat,
			Lng:         req.Location.Lng,
		})
		if err == nil {
			inc.AISuggestion = result.Suggestion
			if priority == "" && Priority(result.Priority).Valid() {
				priority = Priority(result.Priority)
			}
		}
	}

	if priority == "" {
		priority = PriorityMedium
	}
	inc.Priority = priority

	if err := h.repo.Report(r.Context(), actorFrom(user, r), inc); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, inc)
}

// ListIncidents lists incidents. Responders and dispatchers see the
// whole board; civilians only their own reports.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{}

	switch user.Role {
	case platformauth.RoleSuperAdmin, platformauth.RoleResponder, platformauth.RoleDispatcher:
		if r.URL.Query().Get("mine") == "true" {
			filter.ResponderID = &user.ID
		}
	default:
		filter.ReporterID = &user.ID
	}

	if priority := r.URL.Query().Get("priority"); priority != "" {
		parsed := Priority(priority)
		if !parsed.Valid() {
			writeError(w, errors.BadRequest("unknown priority"))
			return
		}
		filter.Priority = &parsed
	}

	if status := r.URL.Query().Get("status"); status != "" {
		parsed := Status(status)
		if !parsed.Valid() {
			writeError(w, errors.BadRequest("unknown incident status"))
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

	incidents, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  incidents,
		"total": total,
	})
}

// GetIncident gets one incident
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "incidentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid incident ID"))
		return
	}

	inc, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !canSee(user, inc) {
		writeError(w, errors.NotFound("incident", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, inc)
}

// AssignResponder puts a responder on an open incident
func (h *Handler) AssignResponder(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "incidentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid incident ID"))
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.ResponderID.IsZero() {
		writeError(w, errors.BadRequest("responder_id is required"))
		return
	}

	if err := h.repo.Assign(r.Context(), actorFrom(user, r), id, req.ResponderID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResolveIncident closes an incident
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "incidentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid incident ID"))
		return
	}

	var req struct {
		Note string `json:"note,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if user.Role == platformauth.RoleResponder {
		inc, err := h.repo.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if inc.ResponderID == nil || *inc.ResponderID != user.ID {
			writeError(w, errors.Forbidden("incident is not assigned to you"))
			return
		}
	}

	if err := h.repo.Resolve(r.Context(), actorFrom(user, r), id, req.Note); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// canSee applies the incident visibility rules.
func canSee(user *auth.User, inc *Incident) bool {
	switch user.Role {
	case platformauth.RoleSuperAdmin, platformauth.RoleResponder, platformauth.RoleDispatcher:
		return true
	default:
		return inc.ReporterID == user.ID
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
