package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

type ctxKey string

const (
	principalKey ctxKey = "principal"
	operatorKey  ctxKey = "operator"
)

// RequestLogger logs one line per request and carries chi's request id into
// the logging context. Must run after middleware.RequestID.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if id := middleware.GetReqID(ctx); id != "" {
				ctx = logging.WithRequestID(ctx, id)
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []logging.Field{
				logging.F("method", r.Method),
				logging.F("path", r.URL.Path),
				logging.F("status", ww.Status()),
				logging.F("bytes", ww.BytesWritten()),
				logging.F("duration", time.Since(start)),
			}
			reqLog := log.WithContext(ctx)
			switch {
			case ww.Status() >= 500:
				reqLog.Error("request", fields...)
			case ww.Status() >= 400:
				reqLog.Warn("request", fields...)
			default:
				reqLog.Debug("request", fields...)
			}
		})
	}
}

// RequireAuth verifies the bearer token with the identity lookup and stores
// both the raw principal and the resolved operator in the request context.
// With a nil lookup every request passes without an operator.
func RequireAuth(identity meeting.IdentityLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			principal := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			ref, err := identity.Resolve(r.Context(), principal)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			ctx = context.WithValue(ctx, operatorKey, ref)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFrom(ctx context.Context) string {
	p, _ := ctx.Value(principalKey).(string)
	return p
}

func operatorFrom(ctx context.Context) (meeting.EmployeeRef, bool) {
	ref, ok := ctx.Value(operatorKey).(meeting.EmployeeRef)
	return ref, ok
}
