package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"timesheets/internal/domain/auth"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// EmployeeResolver maps an identity to its employee record when the token
// does not carry the employee id.
type EmployeeResolver interface {
	EmployeeIDByUserID(ctx context.Context, userID string) (string, error)
}

func Auth(secret string, resolver EmployeeResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user := auth.UserContext{
				UserID:     claims.UserID,
				EmployeeID: claims.EmployeeID,
				RoleName:   claims.RoleName,
			}
			if user.EmployeeID == "" && resolver != nil {
				employeeID, err := resolver.EmployeeIDByUserID(r.Context(), user.UserID)
				if err != nil {
					slog.Warn("employee lookup failed", "userId", user.UserID, "err", err)
				}
				user.EmployeeID = employeeID
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}
