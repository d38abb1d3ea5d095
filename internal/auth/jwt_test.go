package auth

import (
	"testing"
	"time"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

var admin = &model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens("test-secret-key", 0)

	token, issued, err := tokens.Issue(admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if issued.ID == "" {
		t.Fatal("expected a JTI")
	}

	claims, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if claims.UserID != 1 {
		t.Errorf("expected user_id 1, got %d", claims.UserID)
	}
	if claims.Username != "admin" {
		t.Errorf("expected username 'admin', got %q", claims.Username)
	}
	if !claims.IsAdmin() {
		t.Errorf("expected admin role, got %q", claims.Role)
	}
	if claims.ID != issued.ID {
		t.Errorf("expected JTI %q, got %q", issued.ID, claims.ID)
	}
}

func TestUniqueJTI(t *testing.T) {
	tokens := NewTokens("secret", 0)
	_, a, _ := tokens.Issue(admin)
	_, b, _ := tokens.Issue(admin)
	if a.ID == b.ID {
		t.Error("expected distinct JTIs")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, _ := NewTokens("secret1", 0).Issue(admin)

	if _, err := NewTokens("secret2", 0).Verify(token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestVerifyInvalid(t *testing.T) {
	if _, err := NewTokens("secret", 0).Verify("not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: 1,
		Role:   model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokens("secret", 0).Verify(token); err == nil {
		t.Error("expected HS512 token to be rejected")
	}
}

func TestExpiredToken(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	issuedAt := time.Now()
	tokens.now = func() time.Time { return issuedAt }

	token, _, err := tokens.Issue(admin)
	if err != nil {
		t.Fatal(err)
	}

	tokens.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, err := tokens.Verify(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestTokenExpiry(t *testing.T) {
	tokens := NewTokens("test", 0)
	token, _, _ := tokens.Issue(&model.User{ID: 2, Username: "w", Role: model.RoleWorker})
	claims, err := tokens.Verify(token)
	if err != nil {
		t.Fatal(err)
	}

	diff := time.Now().Add(DefaultTTL).Sub(claims.ExpiresAt.Time)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}
