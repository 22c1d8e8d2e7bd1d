package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"plate-service/internal/model"
)

func TestParse(t *testing.T) {
	parser := NewParser("secret")
	principal := model.Principal{UserID: uuid.New(), Role: model.UserRoleOfficer}
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	token, err := parser.Issue(principal, valid)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := parser.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.UserID != principal.UserID || got.Role != model.UserRoleOfficer {
		t.Errorf("principal = %+v, want %+v", got, principal)
	}
}

func TestParseRejects(t *testing.T) {
	parser := NewParser("secret")
	user := uuid.New()
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	expired, _ := parser.Issue(model.Principal{UserID: user, Role: model.UserRoleAdmin},
		jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})
	noExpiry, _ := parser.Issue(model.Principal{UserID: user, Role: model.UserRoleAdmin}, jwt.RegisteredClaims{})
	badRole, _ := parser.Issue(model.Principal{UserID: user, Role: "JANITOR"}, jwt.RegisteredClaims{ExpiresAt: future})
	otherSecret, _ := NewParser("other").Issue(model.Principal{UserID: user, Role: model.UserRoleAdmin},
		jwt.RegisteredClaims{ExpiresAt: future})
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "someone", ExpiresAt: future},
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "expired", token: expired},
		{name: "no expiry", token: noExpiry},
		{name: "unknown role", token: badRole},
		{name: "wrong secret", token: otherSecret},
		{name: "subject not uuid", token: badSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestPrincipalPermissions(t *testing.T) {
	tests := []struct {
		role     model.UserRole
		registry bool
		record   bool
		process  bool
	}{
		{role: model.UserRoleAdmin, registry: true, record: true, process: true},
		{role: model.UserRoleOfficer, registry: false, record: true, process: true},
		{role: model.UserRoleOperator, registry: true, record: true, process: false},
		{role: model.UserRoleViewer, registry: false, record: false, process: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			p := model.Principal{Role: tt.role}
			if p.CanManageRegistry() != tt.registry || p.CanRecordViolations() != tt.record || p.CanProcessViolations() != tt.process {
				t.Errorf("unexpected permissions for %s", tt.role)
			}
		})
	}
}
