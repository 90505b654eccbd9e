package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_service/internal/delivery/http/response"
	"github.com/Pesokrava/review_service/internal/domain"
)

type userCtxKey struct{}

// Identity headers set by the gateway after authentication. This service
// never validates credentials itself; it consumes the authenticated user.
const (
	headerUserID    = "X-User-Id"
	headerUserName  = "X-User-Name"
	headerUserRoles = "X-User-Roles"
	headerUserState = "X-User-Active"
)

// Identity extracts the authenticated user from gateway headers and puts it
// on the request context. Requests without identity pass through
// unauthenticated; RequireUser gates the endpoints that need one.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get(headerUserID)
			if rawID == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(rawID)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "Invalid identity header")
				return
			}

			user := &domain.User{
				ID:       id,
				Username: r.Header.Get(headerUserName),
				Active:   r.Header.Get(headerUserState) != "false",
			}
			if roles := r.Header.Get(headerUserRoles); roles != "" {
				for _, role := range strings.Split(roles, ",") {
					user.Roles = append(user.Roles, strings.TrimSpace(role))
				}
			}

			ctx := context.WithValue(r.Context(), userCtxKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user attached by Identity
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(*domain.User)
	return user, ok
}

// RequireUser rejects unauthenticated requests
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireModerator rejects requests from users without a moderation role.
// The domain service re-validates the role; this keeps obvious misuse out
// of the service layer entirely.
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !user.IsModerator() {
			response.ErrorCode(w, http.StatusForbidden, domain.CodeNotModerator, "Moderator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
