// Package audit provides the append-only action log. Entries are
// hash-chained so that tampering with a stored entry is detectable.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

// canonicalJSON produces deterministic JSON output with sorted map keys.
// Go maps have random iteration order and PostgreSQL JSONB may reorder
// keys, so hashing needs a canonical form.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}

// Actor identifies who performed the recorded action.
type Actor struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
	Role string   `json:"role"`
	IP   string   `json:"ip,omitempty"`
}

// Entry represents an immutable audit log entry
type Entry struct {
	ID        types.ID  `json:"id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prev_hash,omitempty"`

	Actor Actor `json:"actor"`

	Action      string `json:"action"`
	Description string `json:"description,omitempty"`

	ResourceType string    `json:"resource_type"`
	ResourceID   *types.ID `json:"resource_id,omitempty"`

	Changes map[string]any `json:"changes,omitempty"`
}

// NewEntry creates an audit entry. The hash still excludes PrevHash
// until the repository links the entry into the chain.
func NewEntry(actor Actor, action, description, resourceType string, resourceID *types.ID, changes map[string]any) *Entry {
	entry := &Entry{
		ID:           types.NewID(),
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
		Actor:        actor,
		Action:       action,
		Description:  description,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      changes,
	}
	entry.Hash = entry.calculateHash()
	return entry
}

// calculateHash calculates the SHA-256 hash of the entry using
// canonical JSON. Timestamps hash in UTC so verification is not
// sensitive to the verifier's timezone.
func (e *Entry) calculateHash() string {
	data := map[string]any{
		"id":            e.ID,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"prev_hash":     e.PrevHash,
		"actor_id":      e.Actor.ID,
		"actor_role":    e.Actor.Role,
		"action":        e.Action,
		"description":   e.Description,
		"resource_type": e.ResourceType,
	}

	if e.ResourceID != nil {
		data["resource_id"] = e.ResourceID
	}
	if len(e.Changes) > 0 {
		data["changes"] = e.Changes
	}

	jsonData, _ := canonicalJSON(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// VerifyHash verifies the entry's hash
func (e *Entry) VerifyHash() bool {
	return e.Hash == e.calculateHash()
}

// ListFilter defines filters for listing audit entries
type ListFilter struct {
	ActorID      *types.ID  `json:"actor_id,omitempty"`
	ActorRole    string     `json:"actor_role,omitempty"`
	Action       string     `json:"action,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   *types.ID  `json:"resource_id,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

// VerifyResult is the outcome of an audit chain verification.
type VerifyResult struct {
	Valid       bool       `json:"valid"`
	Checked     int        `json:"checked"`
	BrokenAt    *int64     `json:"broken_at,omitempty"`
	BrokenEntry *types.ID  `json:"broken_entry,omitempty"`
	CheckedAt   time.Time  `json:"checked_at"`
}

// Common audit actions
const (
	// Authentication
	ActionLogin  = "auth.login"
	ActionLogout = "auth.logout"
	ActionSignUp = "auth.signup"

	// Users
	ActionUserUpdated      = "user.updated"
	ActionUserRoleAssigned = "user.role_assigned"
	ActionUserUnassigned   = "user.unassigned"
	ActionUserBanned       = "user.banned"
	ActionUserVerified     = "user.verified"

	// Companies
	ActionCompanyCreated = "company.created"
	ActionCompanyUpdated = "company.updated"
	ActionVehicleAdded   = "vehicle.added"
	ActionVehicleUpdated = "vehicle.updated"
	ActionVehicleRemoved = "vehicle.removed"

	// Claims
	ActionClaimSubmitted = "claim.submitted"
	ActionClaimUpdated   = "claim.updated"
	ActionClaimAssigned  = "claim.assigned"
	ActionClaimDeleted   = "claim.deleted"

	// Tow requests
	ActionTowRequested = "tow.requested"
	ActionTowAccepted  = "tow.accepted"
	ActionTowUpdated   = "tow.updated"
	ActionTowCancelled = "tow.cancelled"

	// Policies
	ActionPolicyRegistered = "policy.registered"
	ActionPolicyActivated  = "policy.activated"
	ActionPolicyRejected   = "policy.rejected"
	ActionPolicyDeleted    = "policy.deleted"

	// Incidents
	ActionIncidentReported = "incident.reported"
	ActionIncidentAssigned = "incident.assigned"
	ActionIncidentResolved = "incident.resolved"
)
