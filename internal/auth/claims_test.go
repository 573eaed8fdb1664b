package auth

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testAccount() *Account {
	return &Account{
		ID:        "usr-001",
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		RoleCode:  "EMPLOYEE",
		RoleName:  "Employee",
	}
}

func TestNewSigner_ShortKey(t *testing.T) {
	_, err := NewSigner("too-short", "orgadmin", "orgadmin-clients", time.Minute)
	if !errors.Is(err, ErrConfigurationFault) {
		t.Errorf("NewSigner() error = %v, want ErrConfigurationFault", err)
	}
}

func TestSigner_IssueAndParse(t *testing.T) {
	s := testSigner(t)

	token, expires, err := s.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	diff := time.Until(expires) - 15*time.Minute
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default lifetime should be ~15 minutes, got diff %v", diff)
	}

	claims, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		field, got, want string
	}{
		{"Subject", claims.Subject, "usr-001"},
		{"Username", claims.Username, "jdoe"},
		{"Email", claims.Email, "jdoe@example.com"},
		{"Role", string(claims.Role), "EMPLOYEE"},
		{"RoleName", claims.RoleName, "Employee"},
		{"FirstName", claims.FirstName, "Jane"},
		{"LastName", claims.LastName, "Doe"},
		{"Issuer", claims.Issuer, "orgadmin"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "orgadmin-clients" {
		t.Errorf("Audience = %v", claims.Audience)
	}
}

func TestSigner_ParseRejects(t *testing.T) {
	s := testSigner(t)
	token, _, err := s.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other, err := NewSigner("a-completely-different-signing-key-0123", "orgadmin", "orgadmin-clients", 0)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	wrongIssuer, err := NewSigner(testSecret, "someone-else", "orgadmin-clients", 0)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	wrongAudience, err := NewSigner(testSecret, "orgadmin", "another-app", 0)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	tests := []struct {
		name   string
		signer *Signer
		token  string
	}{
		{"wrong key", other, token},
		{"wrong issuer", wrongIssuer, token},
		{"wrong audience", wrongAudience, token},
		{"empty", s, ""},
		{"malformed", s, "abc.def"},
		{"garbage", s, "not-a-valid-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.signer.Parse(tt.token)
			if !errors.Is(err, ErrInvalidCredential) {
				t.Errorf("Parse() error = %v, want ErrInvalidCredential", err)
			}
		})
	}
}

func TestSigner_ParseExpired(t *testing.T) {
	s := testSigner(t)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := s.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	s.now = time.Now
	if _, err := s.Parse(token); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Errorf("Parse(expired) error = %v, want ErrAccessTokenInvalid", err)
	}
}

func TestSigner_ParseRejectsNoneAlgorithm(t *testing.T) {
	s := testSigner(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr-001",
			Issuer:    "orgadmin",
			Audience:  jwt.ClaimStrings{"orgadmin-clients"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleSysAdmin,
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := s.Parse(unsigned); err == nil {
		t.Error("Parse() should reject alg=none")
	}
}

func TestSigner_ParseRequiresRole(t *testing.T) {
	s := testSigner(t)
	account := testAccount()
	account.RoleCode = ""

	token, _, err := s.Issue(account)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := s.Parse(token); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Errorf("Parse() error = %v, want ErrAccessTokenInvalid", err)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("refresh token is not base64url: %v", err)
	}
	if len(decoded) != 64 {
		t.Errorf("refresh token entropy = %d bytes, want 64", len(decoded))
	}

	raw2, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if raw == raw2 {
		t.Error("two refresh tokens should be unique")
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("abc")
	if len(h1) != 64 {
		t.Errorf("HashToken() length = %d, want 64", len(h1))
	}
	if h1 != HashToken("abc") {
		t.Error("HashToken() should be deterministic")
	}
	if h1 == HashToken("abd") {
		t.Error("different inputs should hash differently")
	}
}
