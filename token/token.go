// Package token provides the JWT functionality behind the DeliciousFood
// authentication endpoints: minting access and refresh tokens for a user and
// validating presented ones.
package token

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/dao"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var Issuer = "deliciousfood"

// Type selects which kind of token to mint. Refresh tokens live longer than
// access tokens; the remember-me variant lives longer still.
type Type int

const (
	Access Type = iota
	Refresh
	RefreshRemember
)

func (t Type) String() string {
	switch t {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	case RefreshRemember:
		return "refresh"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Claims is the validated content of a token.
type Claims struct {
	UserID    int
	Login     string
	Policy    dao.Policy
	TokenType string
	ExpiresAt time.Time
}

type jwtClaims struct {
	Login     string `json:"login"`
	Policy    int    `json:"policy"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Provider mints and validates tokens with one shared secret.
type Provider struct {
	Secret      []byte
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RememberTTL time.Duration
}

// Generate mints a token of the given type for the user, signed with HS512.
func (p Provider) Generate(user *dao.User, tt Type) (string, error) {
	var ttl time.Duration
	switch tt {
	case Access:
		ttl = p.AccessTTL
	case Refresh:
		ttl = p.RefreshTTL
	case RefreshRemember:
		ttl = p.RememberTTL
	default:
		return "", fmt.Errorf("unknown token type: %v", tt)
	}

	now := time.Now()
	claims := jwtClaims{
		Login:     user.Login,
		Policy:    int(user.PolicyMask),
		TokenType: tt.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.Itoa(user.ID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := tok.SignedString(p.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a presented token and returns its claims. Any failure -
// bad signature, wrong issuer, expiry - is reported as an error matching
// ErrUnauthorized.
func (p Provider) Parse(tok string) (Claims, error) {
	var claims jwtClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (interface{}, error) {
		return p.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer(Issuer), jwt.WithLeeway(time.Minute))
	if err != nil {
		return Claims{}, deliciousfood.NewError("invalid token", err, deliciousfood.ErrUnauthorized)
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return Claims{}, deliciousfood.NewError("invalid token subject", err, deliciousfood.ErrUnauthorized)
	}

	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return Claims{
		UserID:    userID,
		Login:     claims.Login,
		Policy:    dao.Policy(claims.Policy),
		TokenType: claims.TokenType,
		ExpiresAt: expires,
	}, nil
}

// Get extracts the bearer token from a request's Authorization header. The
// scheme is matched case-insensitively.
func Get(req *http.Request) (string, error) {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if header == "" {
		return "", fmt.Errorf("no authorization header present")
	}

	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}

	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}
	return tok, nil
}
