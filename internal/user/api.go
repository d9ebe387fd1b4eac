package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/identity"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/config"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/middleware"
	"github.com/linkaid/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the user module
type Handler struct {
	repo     *Repository
	resolver *identity.Resolver
	authCfg  config.AuthConfig
}

// NewHandler creates a new user handler
func NewHandler(repo *Repository, resolver *identity.Resolver, authCfg config.AuthConfig) *Handler {
	return &Handler{repo: repo, resolver: resolver, authCfg: authCfg}
}

// PublicRoutes registers the unauthenticated auth routes.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.SignUp)
	r.Post("/signin", h.SignIn)

	return r
}

// Routes registers the authenticated user routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Patch("/me", h.UpdateMe)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin, platformauth.RoleTowingCompany, platformauth.RoleInsurer))
		r.Get("/", h.ListUsers)
		r.Post("/assign", h.AssignRole)
		r.Post("/{userID}/unassign", h.Unassign)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin))
		r.Get("/{userID}", h.GetUser)
		r.Post("/{userID}/ban", h.BanUser)
		r.Post("/{userID}/verify", h.VerifyUser)
	})

	return r
}

// SignUp registers a new civilian account. Every self-service
// registration starts as an unverified civilian.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if details := req.Validate(); details != nil {
		writeError(w, errors.Validation("sign-up request is invalid", details))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	profile := &Profile{
		ID:       types.NewID(),
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     platformauth.RoleCivilian,
	}

	if err := h.repo.Create(r.Context(), profile, string(hash)); err != nil {
		writeError(w, err)
		return
	}

	token, err := platformauth.IssueToken(h.authCfg, profile.ID, profile.FullName, profile.Role, "", profile.IsVerified)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":      profile,
		"token":     token,
		"home_path": platformauth.HomePath(profile.Role),
	})
}

// SignIn verifies credentials and issues a token. The response carries
// the role home path so the client can route straight there.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	userID, hash, err := h.repo.Credentials(r.Context(), req.Email)
	if err != nil {
		if errors.IsNotFound(err) {
			writeError(w, errors.Unauthorized("invalid email or password"))
			return
		}
		writeError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		writeError(w, errors.Unauthorized("invalid email or password"))
		return
	}

	profile, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if profile.Role == platformauth.RoleBanned {
		writeError(w, errors.Forbidden("this account has been banned"))
		return
	}

	var companyID types.ID
	if profile.CompanyID != nil {
		companyID = *profile.CompanyID
	}

	token, err := platformauth.IssueToken(h.authCfg, profile.ID, profile.FullName, profile.Role, companyID, profile.IsVerified)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	// A stale cached role must not survive a fresh sign-in.
	h.resolver.Invalidate(r.Context(), profile.ID)
	_ = h.repo.RecordLogin(r.Context(), profile.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      profile,
		"token":     token,
		"home_path": platformauth.HomePath(profile.Role),
	})
}

// Me returns the signed-in user's own profile
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	profile, err := h.repo.GetByID(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateMe updates the signed-in user's own contact fields
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	profile, err := h.repo.GetByID(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.FullName != nil {
		profile.FullName = *req.FullName
	}
	if req.Phone != nil {
		profile.Phone = *req.Phone
	}

	if err := h.repo.Update(r.Context(), actorFrom(user, r), profile); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListUsers lists profiles. Company roles are scoped to their own
// company; only super-admins see the whole directory.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := ListFilter{Search: r.URL.Query().Get("search")}

	if !user.IsSuperAdmin() {
		if user.CompanyID.IsZero() {
			writeError(w, errors.Forbidden("no company linked to this account"))
			return
		}
		filter.CompanyID = &user.CompanyID
	} else if companyID := r.URL.Query().Get("company_id"); companyID != "" {
		if id, err := types.ParseID(companyID); err == nil {
			filter.CompanyID = &id
		}
	}

	if role := r.URL.Query().Get("role"); role != "" {
		parsed := platformauth.Role(role)
		filter.Role = &parsed
	}

	if verified := r.URL.Query().Get("verified"); verified != "" {
		if v, err := strconv.ParseBool(verified); err == nil {
			filter.Verified = &v
		}
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

	profiles, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  profiles,
		"total": total,
	})
}

// GetUser gets a single profile by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	profile, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// AssignRole assigns a user, found by email, to a role. Company roles
// can only assign staff into their own company; super-admins can
// assign anyone anywhere.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if !req.Role.Valid() || req.Role == platformauth.RoleBanned {
		writeError(w, errors.BadRequest("unknown role"))
		return
	}

	companyID := req.CompanyID
	if !user.IsSuperAdmin() {
		// Company admins assign staff roles within their own company.
		if !req.Role.Staff() {
			writeError(w, errors.Forbidden("only super admins can assign this role"))
			return
		}
		if user.CompanyID.IsZero() {
			writeError(w, errors.Forbidden("no company linked to this account"))
			return
		}
		companyID = &user.CompanyID
	}

	if req.Role.Staff() && companyID == nil {
		writeError(w, errors.Validation("staff roles require a company", map[string]string{
			"company_id": "company_id is required for this role",
		}))
		return
	}

	target, err := h.repo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.IsNotFound(err) {
			writeError(w, errors.NotFound("user", req.Email))
			return
		}
		writeError(w, err)
		return
	}

	if err := h.repo.AssignRole(r.Context(), actorFrom(user, r), target.ID, req.Role, companyID); err != nil {
		writeError(w, err)
		return
	}

	// The target's next request must see the new role, not a cached one.
	h.resolver.Invalidate(r.Context(), target.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": target.ID,
		"role":    req.Role,
	})
}

// Unassign removes a user from a company roster, resetting them to
// civilian.
func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	target, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !user.IsSuperAdmin() {
		if target.CompanyID == nil || *target.CompanyID != user.CompanyID {
			writeError(w, errors.Forbidden("user is not on your company roster"))
			return
		}
	}

	if err := h.repo.Unassign(r.Context(), actorFrom(user, r), id); err != nil {
		writeError(w, err)
		return
	}

	h.resolver.Invalidate(r.Context(), id)

	w.WriteHeader(http.StatusNoContent)
}

// BanUser bans an account platform-wide
func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if id == user.ID {
		writeError(w, errors.BadRequest("you cannot ban your own account"))
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.repo.Ban(r.Context(), actorFrom(user, r), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}

	h.resolver.Invalidate(r.Context(), id)

	w.WriteHeader(http.StatusNoContent)
}

// VerifyUser flips the verification flag on a profile
func (h *Handler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.repo.SetVerified(r.Context(), actorFrom(user, r), id, req.Verified); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
