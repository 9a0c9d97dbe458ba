package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// ResendOptions configures the Resend notifier. BaseURL and HTTPClient are optional.
type ResendOptions struct {
	APIKey     string
	From       string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// ResendNotifier emails lead notifications through the Resend API.
type ResendNotifier struct {
	client *resend.Client
	from   string
	logger *logrus.Logger
}

// NewResendNotifier creates a notifier sending from the given address.
func NewResendNotifier(opts ResendOptions) (*ResendNotifier, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, eris.New("resend api key is required")
	}
	if strings.TrimSpace(opts.From) == "" {
		return nil, eris.New("sender address is required")
	}

	client := resend.NewCustomClient(opts.HTTPClient, opts.APIKey)
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, eris.Wrapf(err, "invalid resend base url %q", opts.BaseURL)
		}
		client.BaseURL = base
	}

	return &ResendNotifier{client: client, from: opts.From, logger: opts.Logger}, nil
}

// LeadCaptured sends one email to all recipients. Notifications without recipients are skipped.
func (n *ResendNotifier) LeadCaptured(ctx context.Context, notification Notification) error {
	to := addresses(notification.Recipients)
	if len(to) == 0 {
		n.log(logrus.Fields{"page_id": notification.PageID}).Debug("lead notification has no recipients")
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      to,
		Subject: subject(notification),
		Html:    renderBody(notification),
		Tags:    []resend.Tag{{Name: "kind", Value: "lead_captured"}},
	}

	sent, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		n.log(logrus.Fields{"page_id": notification.PageID, "lead_id": notification.LeadID, "error": err.Error()}).Error("resend send failed")
		return eris.Wrap(err, "sending lead notification")
	}

	n.log(logrus.Fields{
		"page_id":    notification.PageID,
		"lead_id":    notification.LeadID,
		"message_id": sent.Id,
		"recipients": len(to),
	}).Info("lead notification sent")
	return nil
}

func (n *ResendNotifier) log(fields logrus.Fields) *logrus.Entry {
	logger := n.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithFields(fields)
}

// NoopNotifier logs notifications without delivering them.
type NoopNotifier struct {
	logger *logrus.Logger
}

// NewNoopNotifier creates a notifier for development and tests.
func NewNoopNotifier(logger *logrus.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) LeadCaptured(_ context.Context, notification Notification) error {
	if n.logger != nil {
		n.logger.WithFields(logrus.Fields{
			"page_id":    notification.PageID,
			"lead_id":    notification.LeadID,
			"recipients": addresses(notification.Recipients),
		}).Info("lead notification skipped, no mail provider configured")
	}
	return nil
}
