package analytics

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/pages"
)

// Store increments and reads page counters atomically.
type Store interface {
	Increment(ctx context.Context, pageID string, metric pages.Metric) (int64, error)
	Totals(ctx context.Context, pageIDs []string) (map[string]pages.Totals, error)
}

// Options configures the analytics service.
type Options struct {
	Store     Store
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// Service records page views and conversions.
type Service struct {
	store     Store
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

// NewService constructs the analytics service.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, eris.New("counter store is required")
	}

	return &Service{store: opts.Store, logger: opts.Logger, sentryHub: opts.SentryHub}, nil
}

// RecordView counts one render of the page and returns the new total.
func (s *Service) RecordView(ctx context.Context, pageID string) (int64, error) {
	return s.record(ctx, pageID, pages.MetricViews)
}

// RecordConversion counts one captured lead for the page and returns the new total.
func (s *Service) RecordConversion(ctx context.Context, pageID string) (int64, error) {
	return s.record(ctx, pageID, pages.MetricConversions)
}

// Totals returns counters keyed by page id. Pages without counters are absent.
func (s *Service) Totals(ctx context.Context, pageIDs []string) (map[string]pages.Totals, error) {
	if len(pageIDs) == 0 {
		return map[string]pages.Totals{}, nil
	}

	totals, err := s.store.Totals(ctx, pageIDs)
	if err != nil {
		s.recordError(logrus.Fields{"pages": len(pageIDs)}, err, "reading page counters")
		return nil, eris.Wrap(err, "reading page counters")
	}
	return totals, nil
}

func (s *Service) record(ctx context.Context, pageID string, metric pages.Metric) (int64, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return 0, eris.Wrap(pages.ErrNotFound, "page id is empty")
	}

	total, err := s.store.Increment(ctx, pageID, metric)
	if err != nil {
		if eris.Is(err, pages.ErrNotFound) {
			return 0, err
		}
		s.recordError(logrus.Fields{"page_id": pageID, "metric": metric}, err, "incrementing page counter")
		return 0, eris.Wrapf(err, "incrementing %s for page %s", metric, pageID)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"page_id": pageID,
			"metric":  metric,
			"total":   total,
		}).Debug("page counter incremented")
	}

	return total, nil
}

func (s *Service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
