package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSignUpRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     SignUpRequest
		wantErr []string
	}{
		{
			name: "valid request",
			req: SignUpRequest{
				Username: "bob123",
				FullName: "Bob Petrov",
				Email:    "bob@example.com",
				Password: "1234",
			},
		},
		{
			name: "username too short",
			req: SignUpRequest{
				Username: "bo",
				FullName: "Bob Petrov",
				Email:    "bob@example.com",
				Password: "1234",
			},
			wantErr: []string{"username"},
		},
		{
			name: "password too short",
			req: SignUpRequest{
				Username: "bob123",
				FullName: "Bob Petrov",
				Email:    "bob@example.com",
				Password: "123",
			},
			wantErr: []string{"password"},
		},
		{
			name: "email without at sign",
			req: SignUpRequest{
				Username: "bob123",
				FullName: "Bob Petrov",
				Email:    "bob.example.com",
				Password: "1234",
			},
			wantErr: []string{"email"},
		},
		{
			name: "email with at sign at the edge",
			req: SignUpRequest{
				Username: "bob123",
				FullName: "Bob Petrov",
				Email:    "@example.com",
				Password: "1234",
			},
			wantErr: []string{"email"},
		},
		{
			name:    "everything missing",
			req:     SignUpRequest{},
			wantErr: []string{"username", "email", "password", "full_name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := tt.req.Validate()
			if len(tt.wantErr) == 0 {
				if details != nil {
					t.Fatalf("expected valid request, got %v", details)
				}
				return
			}
			if len(details) != len(tt.wantErr) {
				t.Fatalf("expected %d field errors, got %v", len(tt.wantErr), details)
			}
			for _, field := range tt.wantErr {
				if _, ok := details[field]; !ok {
					t.Errorf("expected error for field %q, got %v", field, details)
				}
			}
		})
	}
}

func TestSignUpRejectsInvalidBody(t *testing.T) {
	h := &Handler{}

	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.SignUp(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSignUpRejectsValidationFailure(t *testing.T) {
	h := &Handler{}

	body, _ := json.Marshal(SignUpRequest{Username: "x", Email: "nope", Password: "1"})
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.SignUp(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", resp.Code)
	}
	if _, ok := resp.Details["username"]; !ok {
		t.Error("expected username detail in validation response")
	}
}
