package company

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/identity"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/middleware"
	"github.com/linkaid/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the company module
type Handler struct {
	repo     *Repository
	resolver *identity.Resolver
}

// NewHandler creates a new company handler
func NewHandler(repo *Repository, resolver *identity.Resolver) *Handler {
	return &Handler{repo: repo, resolver: resolver}
}

// Routes registers the company routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCompanies)
	r.Get("/{companyID}", h.GetCompany)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin))
		r.Post("/", h.CreateCompany)
		r.Post("/{companyID}/verify", h.VerifyCompany)
		r.Post("/{companyID}/active", h.SetActive)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin, platformauth.RoleTowingCompany, platformauth.RoleInsurer))
		r.Patch("/{companyID}", h.UpdateCompany)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(platformauth.RoleSuperAdmin, platformauth.RoleTowingCompany))
		r.Get("/{companyID}/vehicles", h.ListVehicles)
		r.Post("/{companyID}/vehicles", h.AddVehicle)
		r.Post("/{companyID}/vehicles/{vehicleID}/operator", h.SetVehicleOperator)
		r.Delete("/{companyID}/vehicles/{vehicleID}", h.RemoveVehicle)
	})

	return r
}

func queryKind(r *http.Request) Kind {
	kind := Kind(r.URL.Query().Get("kind"))
	if !kind.Valid() {
		return KindTowing
	}
	return kind
}

// CreateCompany registers a company and promotes its admin account.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if details := req.Validate(); details != nil {
		writeError(w, errors.Validation("company request is invalid", details))
		return
	}

	company := &Company{
		ID:           types.NewID(),
		Kind:         req.Kind,
		Name:         req.Name,
		Region:       req.Region,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		IsActive:     true,
	}

	if err := h.repo.Create(r.Context(), actorFrom(user, r), company, req.AdminEmail); err != nil {
		writeError(w, err)
		return
	}

	// The admin's cached role predates the promotion.
	h.resolver.Invalidate(r.Context(), company.AdminUserID)

	writeJSON(w, http.StatusCreated, company)
}

// ListCompanies lists one company directory
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Kind:   queryKind(r),
		Region: r.URL.Query().Get("region"),
		Search: r.URL.Query().Get("search"),
	}

	if active := r.URL.Query().Get("active"); active != "" {
		if v, err := strconv.ParseBool(active); err == nil {
			filter.Active = &v
		}
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

	companies, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  companies,
		"total": total,
	})
}

// GetCompany gets one company by ID
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}

	company, err := h.repo.GetByID(r.Context(), queryKind(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, company)
}

// UpdateCompany updates contact fields. Company admins may only touch
// their own company.
func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}

	kind := queryKind(r)
	switch user.Role {
	case platformauth.RoleTowingCompany:
		kind = KindTowing
	case platformauth.RoleInsurer:
		kind = KindInsurance
	}

	if !user.IsSuperAdmin() && user.CompanyID != id {
		writeError(w, errors.Forbidden("you can only update your own company"))
		return
	}

	var req UpdateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	company, err := h.repo.GetByID(r.Context(), kind, id)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Name != nil {
		company.Name = *req.Name
	}
	if req.Region != nil {
		company.Region = *req.Region
	}
	if req.ContactEmail != nil {
		company.ContactEmail = *req.ContactEmail
	}
	if req.ContactPhone != nil {
		company.ContactPhone = *req.ContactPhone
	}

	if err := h.repo.Update(r.Context(), actorFrom(user, r), company); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, company)
}

// VerifyCompany flips the verification flag
func (h *Handler) VerifyCompany(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.repo.SetVerified(r.Context(), actorFrom(user, r), queryKind(r), id, req.Verified); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetActive activates or deactivates a company
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.repo.SetActive(r.Context(), actorFrom(user, r), queryKind(r), id, req.Active); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Fleet ---

// companyScope returns the company a fleet request may touch, or nil
// if the caller has no business with it.
func companyScope(user *auth.User, id types.ID) bool {
	if user.IsSuperAdmin() {
		return true
	}
	return user.CompanyID == id
}

// ListVehicles lists the fleet of a towing company
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}

	if !companyScope(user, id) {
		writeError(w, errors.Forbidden("you can only view your own fleet"))
		return
	}

	vehicles, err := h.repo.ListVehicles(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": vehicles})
}

// AddVehicle adds a truck to the fleet
func (h *Handler) AddVehicle(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}

	if !companyScope(user, id) {
		writeError(w, errors.Forbidden("you can only manage your own fleet"))
		return
	}

	var req CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if details := req.Validate(); details != nil {
		writeError(w, errors.Validation("vehicle request is invalid", details))
		return
	}

	vehicle := &Vehicle{
		ID:           types.NewID(),
		CompanyID:    id,
		Plate:        req.Plate,
		VehicleType:  req.VehicleType,
		CapacityTons: req.CapacityTons,
		Status:       VehicleAvailable,
	}

	if err := h.repo.AddVehicle(r.Context(), actorFrom(user, r), vehicle); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, vehicle)
}

// SetVehicleOperator assigns or clears a truck's operator
func (h *Handler) SetVehicleOperator(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	companyID, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}
	vehicleID, err := types.ParseID(chi.URLParam(r, "vehicleID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid vehicle ID"))
		return
	}

	if !companyScope(user, companyID) {
		writeError(w, errors.Forbidden("you can only manage your own fleet"))
		return
	}

	var req struct {
		OperatorID *types.ID `json:"operator_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.repo.SetVehicleOperator(r.Context(), actorFrom(user, r), companyID, vehicleID, req.OperatorID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveVehicle deletes a truck from the fleet
func (h *Handler) RemoveVehicle(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	companyID, err := types.ParseID(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid company ID"))
		return
	}
	vehicleID, err := types.ParseID(chi.URLParam(r, "vehicleID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid vehicle ID"))
		return
	}

	if !companyScope(user, companyID) {
		writeError(w, errors.Forbidden("you can only manage your own fleet"))
		return
	}

	if err := h.repo.RemoveVehicle(r.Context(), actorFrom(user, r), companyID, vehicleID); err != nil {
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
