package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	jwttoken "arsenal/internal/jwt_token"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/httputil"
	"arsenal/pkg/requestcontext"
)

// JWTValidator defines the interface for validating operator tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and puts the
// operator (and vendor, when present) into the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			operator, err := id.ParseUserID(claims.OperatorID)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}
			ctx = requestcontext.WithActorID(ctx, operator)
			if claims.VendorID != "" {
				if vendor, err := id.ParseVendorID(claims.VendorID); err == nil {
					ctx = requestcontext.WithVendorID(ctx, vendor)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
