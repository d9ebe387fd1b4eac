package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linkaid/platform/internal/adapters/insurer"
	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/identity"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/middleware"
	"github.com/linkaid/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the policy module
type Handler struct {
	repo     *Repository
	resolver *identity.Resolver
	carrier  insurer.Adapter // optional
}

// NewHandler creates a new policy handler. carrier may be nil; when a
// carrier back office is connected, activations are cross-checked
// against its records.
func NewHandler(repo *Repository, resolver *identity.Resolver, carrier insurer.Adapter) *Handler {
	return &Handler{repo: repo, resolver: resolver, carrier: carrier}
}

// Routes registers the policy routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPolicies)
	r.Get("/{policyID}", h.GetPolicy)
	r.Post("/", h.RegisterPolicy)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin, platformauth.RoleInsurer))
		r.Post("/{policyID}/review", h.ReviewPolicy)
		r.Delete("/{policyID}", h.DeletePolicy)
	})

	return r
}

// RegisterPolicy files a policy for the signed-in user
func (h *Handler) RegisterPolicy(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req RegisterPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if details := req.Validate(); details != nil {
		writeError(w, errors.Validation("policy is invalid", details))
		return
	}

	policy := &Policy{
		ID:           types.NewID(),
		PolicyNumber: req.PolicyNumber,
		HolderID:     user.ID,
		Coverage:     req.Coverage,
		Status:       StatusPending,
	}

	// Insurers register policies for their own book.
	if user.Role == platformauth.RoleInsurer && !user.CompanyID.IsZero() {
		policy.CompanyID = &user.CompanyID
	} else if req.CompanyID != nil {
		policy.CompanyID = req.CompanyID
	}

	if err := h.repo.Register(r.Context(), actorFrom(user, r), policy); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, policy)
}

// ListPolicies lists policies scoped to the caller
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{}

	switch {
	case user.IsSuperAdmin():
		if holderID := r.URL.Query().Get("holder_id"); holderID != "" {
			if id, err := types.ParseID(holderID); err == nil {
				filter.HolderID = &id
			}
		}
	case user.Role == platformauth.RoleInsurer:
		if user.CompanyID.IsZero() {
			writeError(w, errors.Forbidden("no company linked to this account"))
			return
		}
		filter.CompanyID = &user.CompanyID
	default:
		filter.HolderID = &user.ID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		parsed := Status(status)
		if !parsed.Valid() {
			writeError(w, errors.BadRequest("unknown policy status"))
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

	policies, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  policies,
		"total": total,
	})
}

// GetPolicy gets one policy
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "policyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid policy ID"))
		return
	}

	policy, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !canSee(user, policy) {
		writeError(w, errors.NotFound("policy", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

// ReviewPolicy activates or rejects a pending policy
func (h *Handler) ReviewPolicy(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "policyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid policy ID"))
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Status != StatusActive && req.Status != StatusRejected {
		writeError(w, errors.BadRequest("review status must be active or rejected"))
		return
	}

	policy, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if user.Role == platformauth.RoleInsurer {
		if policy.CompanyID == nil || *policy.CompanyID != user.CompanyID {
			writeError(w, errors.Forbidden("policy is not on your company's book"))
			return
		}
	}

	if req.Status == StatusActive {
		if err := h.verifyWithCarrier(r.Context(), policy.PolicyNumber); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.repo.Review(r.Context(), actorFrom(user, r), id, req.Status, req.Note); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// verifyWithCarrier cross-checks a policy number against the carrier
// back office before activation. No connected carrier means nothing to
// check against; a record the carrier does not know blocks activation.
func (h *Handler) verifyWithCarrier(ctx context.Context, policyNumber string) error {
	if h.carrier == nil || !h.carrier.IsConnected() {
		return nil
	}

	record, err := h.carrier.FetchPolicy(ctx, policyNumber)
	if err != nil {
		return errors.Validation("policy could not be verified with the carrier", map[string]string{
			"policy_number": "no matching policy in the carrier's records",
		})
	}
	if record.Status != "active" {
		return errors.Conflict("carrier reports this policy as " + record.Status)
	}
	return nil
}

// DeletePolicy removes a policy. The holder's insurer linkage and
// verified standing are dropped with it.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "policyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid policy ID"))
		return
	}

	policy, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if user.Role == platformauth.RoleInsurer {
		if policy.CompanyID == nil || *policy.CompanyID != user.CompanyID {
			writeError(w, errors.Forbidden("policy is not on your company's book"))
			return
		}
	}

	if err := h.repo.Delete(r.Context(), actorFrom(user, r), id); err != nil {
		writeError(w, err)
		return
	}

	// The holder just lost their company linkage; a cached role must
	// not outlive it.
	h.resolver.Invalidate(r.Context(), policy.HolderID)

	w.WriteHeader(http.StatusNoContent)
}

// canSee applies the policy visibility rules.
func canSee(user *auth.User, policy *Policy) bool {
	if user.IsSuperAdmin() {
		return true
	}
	if user.Role == platformauth.RoleInsurer {
		return policy.CompanyID != nil && *policy.CompanyID == user.CompanyID
	}
	return policy.HolderID == user.ID
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
