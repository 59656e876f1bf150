package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pdfworks/api/auth"
	"pdfworks/api/dto"
)

const OwnerIDKey contextKey = "owner_id"

// Auth validates the bearer token and places the authenticated owner ID
// into the request context. Handlers downstream trust that ID.
func Auth(tokens *auth.TokenManager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := GetTraceID(r.Context())

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, traceID)
				return
			}

			userID, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.Warn("Rejected token",
					zap.String("trace_id", traceID),
					zap.Error(err),
				)
				unauthorized(w, traceID)
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetOwnerID(ctx context.Context) string {
	if ownerID, ok := ctx.Value(OwnerIDKey).(string); ok {
		return ownerID
	}
	return ""
}

func unauthorized(w http.ResponseWriter, traceID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   "Authentication required",
		TraceID: traceID,
	})
}
