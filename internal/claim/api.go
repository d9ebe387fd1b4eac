package claim

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

// Handler provides HTTP handlers for the claim module
type Handler struct {
	repo     *Repository
	notifier *notification.Service // optional
}

// NewHandler creates a new claim handler. notifier may be nil.
func NewHandler(repo *Repository, notifier *notification.Service) *Handler {
	return &Handler{repo: repo, notifier: notifier}
}

// Routes registers the claim routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListClaims)
	r.Get("/{claimID}", h.GetClaim)
	r.Post("/", h.SubmitClaim)
	r.Delete("/{claimID}", h.DeleteClaim)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin, platformauth.RoleInsurer))
		r.Post("/{claimID}/status", h.UpdateStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin))
		r.Post("/{claimID}/assign", h.AssignInsurer)
	})

	return r
}

// SubmitClaim files a new claim for the signed-in user
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req SubmitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if details := req.Validate(); details != nil {
		writeError(w, errors.Validation("claim is invalid", details))
		return
	}

	claim := &Claim{
		ID:          types.NewID(),
		SubmitterID: user.ID,
		Category:    req.Category,
		Description: req.Description,
		Status:      StatusSubmitted,
		Location:    req.Location,
		ImageURLs:   req.ImageURLs,
	}

	if err := h.repo.Submit(r.Context(), actorFrom(user, r), claim); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}

// ListClaims lists claims scoped to the caller: civilians see their
// own, insurers see claims routed to their company, super-admins see
// everything.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{Category: r.URL.Query().Get("category")}

	switch {
	case user.IsSuperAdmin():
		if submitterID := r.URL.Query().Get("submitter_id"); submitterID != "" {
			if id, err := types.ParseID(submitterID); err == nil {
				filter.SubmitterID = &id
			}
		}
	case user.Role == platformauth.RoleInsurer:
		if user.CompanyID.IsZero() {
			writeError(w, errors.Forbidden("no company linked to this account"))
			return
		}
		filter.InsurerID = &user.CompanyID
	default:
		filter.SubmitterID = &user.ID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		parsed := Status(status)
		if !parsed.Valid() {
			writeError(w, errors.BadRequest("unknown claim status"))
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

	claims, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  claims,
		"total": total,
	})
}

// GetClaim gets one claim, subject to the same scoping as the list
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	claim, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !canSee(user, claim) {
		writeError(w, errors.NotFound("claim", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// UpdateStatus moves a claim through its lifecycle
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if !req.Status.Valid() {
		writeError(w, errors.BadRequest("unknown claim status"))
		return
	}

	if user.Role == platformauth.RoleInsurer {
		claim, err := h.repo.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if claim.InsurerID == nil || *claim.InsurerID != user.CompanyID {
			writeError(w, errors.Forbidden("claim is not routed to your company"))
			return
		}
	}

	if err := h.repo.UpdateStatus(r.Context(), actorFrom(user, r), id, req.Status, req.Note); err != nil {
		writeError(w, err)
		return
	}

	if h.notifier != nil {
		if claim, err := h.repo.GetByID(r.Context(), id); err == nil {
			h.notifier.Notify(claim.SubmitterID,
				"Claim status updated",
				fmt.Sprintf("Your claim is now %s", req.Status),
				notification.PriorityNormal,
				map[string]any{"claim_id": id.String(), "status": string(req.Status)})
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignInsurer routes a claim to an insurance company
func (h *Handler) AssignInsurer(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	var req AssignInsurerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.InsurerID.IsZero() {
		writeError(w, errors.BadRequest("insurer_company_id is required"))
		return
	}

	if err := h.repo.AssignInsurer(r.Context(), actorFrom(user, r), id, req.InsurerID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteClaim deletes an open claim. Submitters can withdraw their
// own; super-admins can remove any.
func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	claim, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !user.IsSuperAdmin() && claim.SubmitterID != user.ID {
		writeError(w, errors.NotFound("claim", id.String()))
		return
	}

	if err := h.repo.Delete(r.Context(), actorFrom(user, r), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// canSee applies the claim visibility rules.
func canSee(user *auth.User, claim *Claim) bool {
	if user.IsSuperAdmin() {
		return true
	}
	if user.Role == platformauth.RoleInsurer {
		return claim.InsurerID != nil && *claim.InsurerID == user.CompanyID
	}
	return claim.SubmitterID == user.ID
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
