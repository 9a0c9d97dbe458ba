package log

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	sentryFlushTimeout = 2 * time.Second
	redacted           = "[redacted]"
)

// Headers that carry credentials and must not leave the process.
var sensitiveHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Webhook-Secret",
}

// SentrySettings represents the configuration required to bootstrap Sentry.
type SentrySettings struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry wires up Sentry exception logging and connects it to the provided logrus logger.
// Without a DSN it returns a nil hub and a no-op flush.
func InitSentry(logger *logrus.Logger, settings SentrySettings) (*sentry.Hub, func(), error) {
	if settings.DSN == "" {
		return nil, func() {}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		Release:          settings.Release,
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "error initializing sentry client")
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.Scope().SetTag("service", "pagegen")

	hook := sentrylogrus.NewLogHookFromClient([]logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}, client)
	logger.AddHook(hook)

	flush := func() {
		hub.Flush(sentryFlushTimeout)
	}

	return hub, flush, nil
}

// scrubEvent redacts credential headers and cookies from captured requests.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}

	for name := range event.Request.Headers {
		for _, sensitive := range sensitiveHeaders {
			if http.CanonicalHeaderKey(name) == sensitive {
				event.Request.Headers[name] = redacted
			}
		}
	}
	if event.Request.Cookies != "" {
		event.Request.Cookies = redacted
	}

	return event
}
