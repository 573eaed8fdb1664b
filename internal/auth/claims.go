package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// MinSigningKeyLength is the minimum HS256 key length in bytes.
	MinSigningKeyLength = 32

	// DefaultAccessTokenTTL applies when the configured lifetime is not positive.
	DefaultAccessTokenTTL = 15 * time.Minute

	// refreshTokenBytes is the entropy of an opaque refresh credential.
	refreshTokenBytes = 64
)

// Claims is the access credential payload.
type Claims struct {
	jwt.RegisteredClaims
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Role      RoleCode `json:"role"`
	RoleName  string   `json:"role_name,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
}

// Signer issues and verifies HS256 access credentials.
// Verification never touches storage.
type Signer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewSigner validates the key and returns a Signer.
func NewSigner(secret, issuer, audience string, ttl time.Duration) (*Signer, error) {
	if len(secret) < MinSigningKeyLength {
		return nil, ErrSigningKeyTooShort
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &Signer{
		key:      []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// TTL returns the access credential lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue signs an access credential for the account. The account must carry
// its joined role code and name.
func (s *Signer) Issue(account *Account) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Username:  account.Username,
		Email:     account.Email,
		Role:      account.RoleCode,
		RoleName:  account.RoleName,
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates signature, algorithm, expiry, issuer and audience and
// returns the claims. Any failure wraps ErrAccessTokenInvalid.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccessTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrAccessTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrAccessTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrAccessTokenInvalid)
	}

	return claims, nil
}

// GenerateRefreshToken creates an opaque refresh credential (512-bit,
// base64url without padding). The raw value goes to the client; only
// HashToken(raw) is stored.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
