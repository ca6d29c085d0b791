package router

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abilimap/client-core-go/internal/auth"
	"github.com/abilimap/client-core-go/internal/issue"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				// 30 days
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticated guards a handler behind a bearer token, attaching the
// verified claims to the request context.
func Authenticated(svc *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := svc.VerifyToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	}
}

// AdminOnly additionally requires the token's admin claim.
func AdminOnly(svc *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return Authenticated(svc, func(w http.ResponseWriter, r *http.Request) {
		if claims := auth.ClaimsFromContext(r.Context()); claims == nil || !claims.Admin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

// RegisterRoutes mounts HTTP handlers on the standard library's http.ServeMux
// using method-qualified patterns.
func RegisterRoutes(logger *zap.SugaredLogger, authSvc *auth.Service, issueSvc *issue.Service) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /abilimap-api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// auth routes
	authHandler := auth.NewHandler(authSvc, logger)
	mux.HandleFunc("POST /abilimap-api/auth/sign-up", authHandler.SignUp)
	mux.HandleFunc("POST /abilimap-api/auth/sign-in", authHandler.SignIn)
	mux.HandleFunc("POST /abilimap-api/auth/sign-out", authHandler.SignOut)
	mux.HandleFunc("DELETE /abilimap-api/auth/account", authHandler.DeleteAccount)
	mux.HandleFunc("POST /abilimap-api/auth/verify", AdminOnly(authSvc, authHandler.VerifyEmail))

	// issue routes; a reporter lists only their own issues (email comes from
	// token claims), status listing and lifecycle updates are admin-only
	issueHandler := issue.NewHandler(issueSvc, logger)
	mux.HandleFunc("POST /abilimap-api/issues", issueHandler.Submit)
	mux.HandleFunc("GET /abilimap-api/issues/{id}", issueHandler.Get)
	mux.HandleFunc("GET /abilimap-api/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "" {
			AdminOnly(authSvc, issueHandler.ListByStatus)(w, r)
			return
		}
		Authenticated(authSvc, issueHandler.ListMine)(w, r)
	})
	mux.HandleFunc("PATCH /abilimap-api/issues/{id}/status", AdminOnly(authSvc, issueHandler.UpdateStatus))

	// wrap with security headers middleware then logging middleware
	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
	return handler
}
