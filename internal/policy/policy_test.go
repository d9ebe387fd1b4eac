package policy

import (
	"context"
	"fmt"
	"testing"

	"github.com/linkaid/platform/internal/adapters/insurer"
	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/types"
)

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
	}{
		{StatusPending, true},
		{StatusActive, true},
		{StatusRejected, true},
		{Status("expired"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("Status(%q).Valid() = %t, want %t", tt.status, got, tt.valid)
		}
	}
}

func TestRegisterPolicyRequestValidate(t *testing.T) {
	valid := RegisterPolicyRequest{PolicyNumber: "RS-2026-001234"}
	if details := valid.Validate(); details != nil {
		t.Fatalf("expected valid request, got %v", details)
	}

	if details := (RegisterPolicyRequest{}).Validate(); details["policy_number"] == "" {
		t.Error("expected policy_number error")
	}
}

// stubCarrier fakes the carrier back office for activation checks.
type stubCarrier struct {
	connected bool
	records   map[string]*insurer.PolicyRecord
}

func (s *stubCarrier) FetchPolicy(ctx context.Context, number string) (*insurer.PolicyRecord, error) {
	record, ok := s.records[number]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", number)
	}
	return record, nil
}

func (s *stubCarrier) VerifyCoverage(ctx context.Context, number, coverage string) (bool, error) {
	return false, nil
}

func (s *stubCarrier) SubscribeDecisions(ctx context.Context, handler insurer.DecisionHandler) error {
	return nil
}

func (s *stubCarrier) SourceSystem() string  { return "stub" }
func (s *stubCarrier) SourceCarrier() string { return "stub" }
func (s *stubCarrier) IsConnected() bool     { return s.connected }

func (s *stubCarrier) Start(ctx context.Context) error  { return nil }
func (s *stubCarrier) Stop(ctx context.Context) error   { return nil }
func (s *stubCarrier) Health(ctx context.Context) error { return nil }

func TestVerifyWithCarrier(t *testing.T) {
	carrier := &stubCarrier{
		connected: true,
		records: map[string]*insurer.PolicyRecord{
			"RS-2026-001234": {PolicyNumber: "RS-2026-001234", Status: "active"},
			"RS-2026-009999": {PolicyNumber: "RS-2026-009999", Status: "lapsed"},
		},
	}
	h := &Handler{carrier: carrier}

	if err := h.verifyWithCarrier(context.Background(), "RS-2026-001234"); err != nil {
		t.Errorf("active carrier record should pass, got %v", err)
	}

	err := h.verifyWithCarrier(context.Background(), "RS-0000-000000")
	if appErr, ok := err.(*errors.AppError); !ok || appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("unknown policy number should fail validation, got %v", err)
	}

	err = h.verifyWithCarrier(context.Background(), "RS-2026-009999")
	if appErr, ok := err.(*errors.AppError); !ok || appErr.Code != "CONFLICT" {
		t.Errorf("lapsed carrier record should conflict, got %v", err)
	}

	disconnected := &Handler{carrier: &stubCarrier{connected: false}}
	if err := disconnected.verifyWithCarrier(context.Background(), "anything"); err != nil {
		t.Errorf("disconnected carrier must not block activation, got %v", err)
	}

	unconfigured := &Handler{}
	if err := unconfigured.verifyWithCarrier(context.Background(), "anything"); err != nil {
		t.Errorf("missing carrier must not block activation, got %v", err)
	}
}

func TestCanSee(t *testing.T) {
	holderID := types.NewID()
	companyID := types.NewID()

	policy := &Policy{HolderID: holderID, CompanyID: &companyID}
	unbooked := &Policy{HolderID: holderID}

	tests := []struct {
		name string
		user *auth.User
		p    *Policy
		want bool
	}{
		{"super admin", &auth.User{Role: platformauth.RoleSuperAdmin}, policy, true},
		{"holder", &auth.User{ID: holderID, Role: platformauth.RoleCivilian}, policy, true},
		{"other civilian", &auth.User{ID: types.NewID(), Role: platformauth.RoleCivilian}, policy, false},
		{"booking insurer", &auth.User{Role: platformauth.RoleInsurer, CompanyID: companyID}, policy, true},
		{"other insurer", &auth.User{Role: platformauth.RoleInsurer, CompanyID: types.NewID()}, policy, false},
		{"insurer without booking", &auth.User{Role: platformauth.RoleInsurer, CompanyID: companyID}, unbooked, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canSee(tt.user, tt.p); got != tt.want {
				t.Errorf("canSee() = %t, want %t", got, tt.want)
			}
		})
	}
}
