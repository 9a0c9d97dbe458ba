package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/db"
	"pagegen/app/internal/http/templates"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	errorFallbackMessage = "We couldn't process your request right now."
	notFoundMessage      = "We couldn't find that page. It may have been moved or removed."
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

type templateView struct {
	Type                 registry.TemplateType `json:"type"`
	Label                string                `json:"label"`
	PathPrefix           string                `json:"pathPrefix"`
	RequiredParams       []string              `json:"requiredParams"`
	RequiresCoBrand      bool                  `json:"requiresCoBrand"`
	RequiresPropertyData bool                  `json:"requiresPropertyData"`
	AllowMultiple        bool                  `json:"allowMultiple"`
}

type templatesOutput struct {
	Body struct {
		Templates []templateView `json:"templates"`
	}
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) registerTemplatesRoute() {
	huma.Get(s.api, "/templates", s.templatesHandler, func(op *huma.Operation) {
		op.Summary = "List page templates"
	})
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	sqlDB, err := db.SQLDB(s.db)
	if err != nil {
		s.recordError(ctx, err, "obtaining sql db", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		s.recordError(ctx, pingErr, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	return resp, nil
}

func (s *Server) templatesHandler(_ context.Context, _ *struct{}) (*templatesOutput, error) {
	out := &templatesOutput{}
	for _, tpl := range s.registry.All() {
		out.Body.Templates = append(out.Body.Templates, templateView{
			Type:                 tpl.Type,
			Label:                tpl.Label,
			PathPrefix:           tpl.PathPrefix,
			RequiredParams:       tpl.RequiredParams,
			RequiresCoBrand:      tpl.RequiresCoBrand,
			RequiresPropertyData: tpl.RequiresPropertyData,
			AllowMultiple:        tpl.AllowMultiple,
		})
	}
	return out, nil
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		op.Tags = append(op.Tags, landingTag)
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

// apiError maps domain errors onto problem responses. Anything unexpected is recorded and
// reported as a 500 without leaking details.
func (s *Server) apiError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	switch {
	case pages.IsValidation(err):
		detail := &huma.ErrorDetail{
			Message:  pages.ValidationReason(err),
			Location: fieldLocation(pages.FieldOf(err)),
		}
		return huma.Error400BadRequest("validation failed", detail)
	case eris.Is(err, pages.ErrDuplicatePage):
		return huma.Error409Conflict("a live page already exists for this owner and template")
	case eris.Is(err, pages.ErrForbidden):
		return huma.Error403Forbidden("access forbidden")
	case eris.Is(err, pages.ErrNotFound):
		return huma.Error404NotFound("page not found")
	}

	s.recordError(ctx, err, message, fields)
	return huma.Error500InternalServerError(errorFallbackMessage)
}

func fieldLocation(field string) string {
	if field == "" {
		return "body"
	}
	return "body." + field
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	component := templates.ErrorPage(templates.ErrorPageData{
		Title:       label,
		StatusLabel: label,
		Message:     message,
		Branding:    s.defaultBrandingView(ctx),
	})

	body, err := renderComponent(ctx, component)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
