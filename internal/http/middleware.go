package http

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	rateLimitMessage = "You're opening pages a bit too quickly. Please wait a moment and try again."
	landingTag       = "landing"
)

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := uuid.NewString()
		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

func (s *Server) authMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := strings.TrimSpace(ctx.Header("Authorization"))
		if header == "" {
			next(ctx)
			return
		}

		viewerID, err := s.auth.viewerID(header)
		if err != nil {
			if s.logger != nil {
				fields := logrus.Fields{"method": ctx.Method()}
				if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
					fields["request_id"] = requestID
				}
				s.logger.WithError(err).WithFields(fields).Warn("rejected bearer token")
			}
			s.writeError(ctx, stdhttp.StatusUnauthorized, "invalid bearer token")
			return
		}

		goCtx := context.WithValue(ctx.Context(), viewerContextKey, viewerID)
		ctx = huma.WithContext(ctx, goCtx)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetUser(sentry.User{ID: strconv.FormatInt(viewerID, 10)})
		}

		next(ctx)
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.rateLimiter == nil {
			next(ctx)
			return
		}

		req, _ := humago.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		key := "ip:" + clientIPFromRequest(req)
		if viewerID := ViewerIDFromContext(ctx.Context()); viewerID > 0 {
			key = "viewer:" + strconv.FormatInt(viewerID, 10)
		}
		if s.rateLimiter.Allow(key) {
			next(ctx)
			return
		}

		if s.logger != nil {
			fields := logrus.Fields{
				"client": key,
				"path":   req.URL.Path,
			}
			if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithError(eris.New("rate limit exceeded")).WithFields(fields).Warn("request rate limited")
		}

		ctx.SetHeader("Retry-After", "1")
		s.writeError(ctx, stdhttp.StatusTooManyRequests, rateLimitMessage)
	}
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.logger == nil {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}

		fields := logrus.Fields{
			"method":      ctx.Method(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		}

		if op := ctx.Operation(); op != nil {
			fields["route"] = op.Path
		}

		if req, _ := humago.Unwrap(ctx); req != nil {
			fields["path"] = req.URL.Path
			fields["remote_addr"] = req.RemoteAddr
		}

		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			fields["request_id"] = requestID
		}
		if viewerID := ViewerIDFromContext(ctx.Context()); viewerID > 0 {
			fields["viewer_id"] = viewerID
		}

		entry := s.logger.WithFields(fields)
		if status >= 500 {
			entry.Error("request failed")
		} else {
			entry.Info("request completed")
		}
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("panic: %v", v)
				}

				s.recordError(ctx.Context(), err, "panic recovered", nil)

				if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
					hub.RecoverWithContext(ctx.Context(), rec)
					hub.Flush(2 * time.Second)
				}

				ctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
				ctx.SetStatus(stdhttp.StatusInternalServerError)
				_, _ = ctx.BodyWriter().Write([]byte("internal server error"))
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(2 * time.Second)

		next(ctx)
	}
}

// writeError answers a request short-circuited by middleware, as an HTML page on landing
// routes and as a problem document everywhere else.
func (s *Server) writeError(ctx huma.Context, status int, message string) {
	if op := ctx.Operation(); op != nil && slices.Contains(op.Tags, landingTag) {
		resp, _ := s.renderErrorResponse(ctx.Context(), status, message)
		ctx.SetHeader("Content-Type", resp.ContentType)
		ctx.SetStatus(status)
		_, _ = ctx.BodyWriter().Write(resp.Body)
		return
	}

	if err := huma.WriteErr(s.api, ctx, status, message); err != nil {
		s.recordError(ctx.Context(), err, "writing error response", logrus.Fields{"status": status})
	}
}

func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		candidate, _, _ := strings.Cut(forwarded, ",")
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}

	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
