package audit

import (
	"testing"
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

func sampleEntry() *Entry {
	resourceID := types.NewID()
	return NewEntry(
		Actor{ID: types.NewID(), Name: "Admin One", Role: "super_admin"},
		ActionUserRoleAssigned,
		"Assigned bob@x.com as tow_operator",
		"user",
		&resourceID,
		map[string]any{"role": "tow_operator", "company_id": types.NewID().String()},
	)
}

func TestNewEntryHash(t *testing.T) {
	entry := sampleEntry()

	if entry.Hash == "" {
		t.Fatal("entry hash should be set")
	}
	if !entry.VerifyHash() {
		t.Error("fresh entry should verify")
	}
	if entry.Timestamp.Location() != time.UTC {
		t.Error("entry timestamp should be UTC")
	}
}

func TestVerifyHashDetectsTampering(t *testing.T) {
	entry := sampleEntry()

	entry.Description = "Assigned someone else entirely"
	if entry.VerifyHash() {
		t.Error("tampered description should fail verification")
	}
}

func TestVerifyHashDetectsChangesTampering(t *testing.T) {
	entry := sampleEntry()

	entry.Changes["role"] = "super_admin"
	if entry.VerifyHash() {
		t.Error("tampered changes should fail verification")
	}
}

func TestHashIncludesPrevHash(t *testing.T) {
	entry := sampleEntry()
	unlinked := entry.Hash

	entry.PrevHash = "abc123"
	entry.Hash = entry.calculateHash()

	if entry.Hash == unlinked {
		t.Error("linking into the chain must change the hash")
	}
	if !entry.VerifyHash() {
		t.Error("re-linked entry should verify")
	}
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	value := map[string]any{
		"b": 2,
		"a": map[string]any{"y": []any{1, "two"}, "x": nil},
		"c": "three",
	}

	first, err := canonicalJSON(value)
	if err != nil {
		t.Fatalf("canonicalJSON failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		again, err := canonicalJSON(value)
		if err != nil {
			t.Fatalf("canonicalJSON failed: %v", err)
		}
		if string(first) != string(again) {
			t.Fatalf("canonical form not deterministic: %s vs %s", first, again)
		}
	}

	want := `{"a":{"x":null,"y":[1,"two"]},"b":2,"c":"three"}`
	if string(first) != want {
		t.Errorf("expected %s, got %s", want, first)
	}
}

func TestEntryWithoutOptionalFields(t *testing.T) {
	entry := NewEntry(
		Actor{ID: types.NewID(), Name: "System", Role: "system"},
		ActionLogin,
		"",
		"session",
		nil,
		nil,
	)

	if !entry.VerifyHash() {
		t.Error("entry without resource or changes should verify")
	}
}

func TestActionLabels(t *testing.T) {
	tests := []struct {
		action   string
		expected string
	}{
		{ActionSignUp, "auth.signup"},
		{ActionUserRoleAssigned, "user.role_assigned"},
		{ActionUserUnassigned, "user.unassigned"},
		{ActionUserBanned, "user.banned"},
		{ActionClaimSubmitted, "claim.submitted"},
		{ActionTowAccepted, "tow.accepted"},
		{ActionPolicyDeleted, "policy.deleted"},
		{ActionIncidentResolved, "incident.resolved"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.action != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, tt.action)
			}
		})
	}
}
