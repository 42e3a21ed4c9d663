package api

import (
	"context"
	"net/http"

	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/service"
	"github.com/AUrban/DeliciousFood/token"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// requestScope attaches the per-request infrastructure to the context: a
// fresh unit-of-work storage slot and a request id for log correlation.
func (api *API) requestScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		ctx = db.WithStorage(ctx, db.NewStorage())
		ctx = context.WithValue(ctx, requestIDKey{}, uuid.New())
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requestID returns the id attached to the request by requestScope.
func requestID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(requestIDKey{}).(uuid.UUID)
	return id
}

// requireAuth validates the bearer access token and attaches the caller's
// session to the context. Requests without a valid access token get a 401.
func (api *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tok, err := token.Get(req)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		claims, err := api.tokens.Parse(tok)
		if err != nil || claims.TokenType != token.Access.String() {
			writeUnauthorized(w)
			return
		}

		sess := service.Session{
			UserID:     claims.UserID,
			Login:      claims.Login,
			PolicyMask: claims.Policy,
		}
		next.ServeHTTP(w, req.WithContext(service.WithSession(req.Context(), sess)))
	})
}

// requirePolicy rejects callers whose session does not hold at least one of
// the policies in mask.
func (api *API) requirePolicy(mask dao.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !api.policy.UserPolicyIntersects(req.Context(), mask) {
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
