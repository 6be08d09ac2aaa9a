package utils // package utils provides the identity token service

import (
	"errors"  // sentinel for rejected tokens
	"strings" // email normalisation
	"time"    // expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned by Verify for any token that must not be
// trusted: bad signature, wrong algorithm, expired, or missing the email
// claim.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp.  Access tokens are presented in the Authorization header as
// "Bearer <token>" when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims carries the identity asserted by a token.  The email is the only
// application claim; role is always looked up from the store so that a
// promotion takes effect without re-issuing tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 identity tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a TokenService signing with secret.  Tokens live
// for ttlMin minutes.
func NewTokenService(secret string, ttlMin int) *TokenService {
	if ttlMin <= 0 {
		ttlMin = 60
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    time.Duration(ttlMin) * time.Minute,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue builds and signs a token for email.  The JWT carries the email,
// issued at (iat) and expiration (exp) claims.
func (s *TokenService) Issue(email string) (AccessToken, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email: strings.ToLower(strings.TrimSpace(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify parses raw, checks signature and expiry, and returns the email
// claim.  Every failure is reported as ErrInvalidToken.
func (s *TokenService) Verify(raw string) (string, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}
