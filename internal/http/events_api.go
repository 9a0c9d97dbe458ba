package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/events"
)

type leadCapturedInput struct {
	WebhookSecret string `header:"X-Webhook-Secret"`
	Body          events.LeadCaptured
}

type profileImageChangedInput struct {
	WebhookSecret string `header:"X-Webhook-Secret"`
	Body          events.ProfileImageChanged
}

type acceptedOutput struct {
	Status int
	Body   struct {
		Status string `json:"status"`
	}
}

func (s *Server) registerEventRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "lead-captured",
		Method:        stdhttp.MethodPost,
		Path:          "/events/lead-captured",
		Summary:       "Deliver a captured lead",
		Tags:          []string{"events"},
		DefaultStatus: stdhttp.StatusAccepted,
	}, s.leadCapturedHandler)

	huma.Register(s.api, huma.Operation{
		OperationID:   "profile-image-changed",
		Method:        stdhttp.MethodPost,
		Path:          "/events/profile-image-changed",
		Summary:       "Deliver a profile headshot change",
		Tags:          []string{"events"},
		DefaultStatus: stdhttp.StatusAccepted,
	}, s.profileImageChangedHandler)
}

func (s *Server) leadCapturedHandler(ctx context.Context, input *leadCapturedInput) (*acceptedOutput, error) {
	if !s.validWebhookSecret(input.WebhookSecret) {
		return nil, huma.Error401Unauthorized("invalid webhook secret")
	}

	fields := logrus.Fields{"page_id": input.Body.PageID, "lead_id": input.Body.LeadID}
	if err := s.events.LeadCaptured(ctx, input.Body); err != nil {
		return nil, s.eventError(ctx, err, "handling lead captured event", fields)
	}
	return accepted(), nil
}

func (s *Server) profileImageChangedHandler(ctx context.Context, input *profileImageChangedInput) (*acceptedOutput, error) {
	if !s.validWebhookSecret(input.WebhookSecret) {
		return nil, huma.Error401Unauthorized("invalid webhook secret")
	}

	fields := logrus.Fields{"user_id": input.Body.UserID}
	if err := s.events.ProfileImageChanged(ctx, input.Body); err != nil {
		return nil, s.eventError(ctx, err, "handling profile image event", fields)
	}
	return accepted(), nil
}

// eventError reports malformed events as 400 so senders do not retry them; handler
// failures are 500 and may be redelivered.
func (s *Server) eventError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	if eris.Is(err, events.ErrInvalidEvent) {
		return huma.Error400BadRequest(err.Error())
	}
	return s.apiError(ctx, err, message, fields)
}

func accepted() *acceptedOutput {
	out := &acceptedOutput{Status: stdhttp.StatusAccepted}
	out.Body.Status = "accepted"
	return out
}
