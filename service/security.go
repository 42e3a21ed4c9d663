package service

import (
	"context"
	"strings"

	"github.com/AUrban/DeliciousFood/dao"
	"golang.org/x/crypto/bcrypt"
)

// Session is the identity of the logged-in caller, extracted from the access
// token by the auth middleware and carried in the request context.
type Session struct {
	UserID     int
	Login      string
	PolicyMask dao.Policy
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying the given session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// PolicyValidator answers whether the logged-in caller's policy mask grants a
// permission.
type PolicyValidator struct{}

// PolicyIntersects returns whether the two masks share at least one policy.
func (PolicyValidator) PolicyIntersects(left, right dao.Policy) bool {
	return left.Intersects(right)
}

// UserPolicyIntersects returns whether the session in ctx holds at least one
// of the policies in mask. A missing session never intersects.
func (v PolicyValidator) UserPolicyIntersects(ctx context.Context, mask dao.Policy) bool {
	sess, ok := SessionFrom(ctx)
	if !ok {
		return false
	}
	return v.PolicyIntersects(sess.PolicyMask, mask)
}

const passwordSpecials = "#?!@$%^&*-"

const passwordComplexityMessage = "Password must have at least one upper case, one lower case, one digit, one special character, at least 6 characters!"

// SecurityProvider performs the security operations around user passwords.
type SecurityProvider struct{}

// HashPassword returns the bcrypt hash of the given password.
func (SecurityProvider) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword returns whether password matches the stored bcrypt hash.
func (SecurityProvider) VerifyPassword(password string, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

// CheckPasswordComplexity returns an empty string if the password is complex
// enough, or a message describing the requirements otherwise. A password must
// have at least six characters including one upper-case letter, one
// lower-case letter, one digit, and one special character.
func (SecurityProvider) CheckPasswordComplexity(password string) string {
	if len(password) < 6 {
		return passwordComplexityMessage
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasUpper = true
		case ch >= 'a' && ch <= 'z':
			hasLower = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, ch):
			hasSpecial = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return passwordComplexityMessage
	}
	return ""
}
