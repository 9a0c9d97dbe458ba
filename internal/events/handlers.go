package events

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pagegen/app/internal/directory"
	"pagegen/app/internal/notify"
	"pagegen/app/internal/pages"
)

// ImageSyncer updates the representative image of an owner's pages.
type ImageSyncer interface {
	SetImageForOwner(ctx context.Context, ownerID int64, imageRef string) (int64, error)
}

// ConversionRecorder counts conversions.
type ConversionRecorder interface {
	RecordConversion(ctx context.Context, pageID string) (int64, error)
}

// PageReader loads pages.
type PageReader interface {
	Get(ctx context.Context, id string) (*pages.Page, error)
}

// ProfileImageSync re-syncs the image of every live page the user owns.
func ProfileImageSync(syncer ImageSyncer, logger *logrus.Logger) ProfileImageHandler {
	return func(ctx context.Context, event ProfileImageChanged) error {
		updated, err := syncer.SetImageForOwner(ctx, event.UserID, event.HeadshotRef)
		if err != nil {
			return eris.Wrapf(err, "syncing headshot for user %d", event.UserID)
		}
		if logger != nil {
			logger.WithFields(logrus.Fields{"user_id": event.UserID, "pages": updated}).Info("page images synced")
		}
		return nil
	}
}

// RecordConversions counts every captured lead against its page. Leads for pages that no
// longer exist are dropped.
func RecordConversions(recorder ConversionRecorder, logger *logrus.Logger) LeadHandler {
	return func(ctx context.Context, event LeadCaptured) error {
		total, err := recorder.RecordConversion(ctx, event.PageID)
		if err != nil {
			if eris.Is(err, pages.ErrNotFound) {
				if logger != nil {
					logger.WithField("page_id", event.PageID).Warn("lead captured for unknown page, conversion dropped")
				}
				return nil
			}
			return eris.Wrapf(err, "recording conversion for page %s", event.PageID)
		}
		if logger != nil {
			logger.WithFields(logrus.Fields{"page_id": event.PageID, "conversions": total}).Debug("conversion recorded")
		}
		return nil
	}
}

// LeadNotifierOptions configures NotifyLeadRecipients.
type LeadNotifierOptions struct {
	Pages     PageReader
	Directory directory.Directory
	Notifier  notify.Notifier
	PageURL   func(page *pages.Page) string
	Logger    *logrus.Logger
}

// NotifyLeadRecipients emails the page owner and co-brand partner about a captured lead.
// A page whose owner has no profile is skipped. Register it with OnLeadCapturedFollowup.
func NotifyLeadRecipients(opts LeadNotifierOptions) LeadHandler {
	return func(ctx context.Context, event LeadCaptured) error {
		page, err := opts.Pages.Get(ctx, event.PageID)
		if err != nil {
			if eris.Is(err, pages.ErrNotFound) {
				return nil
			}
			return eris.Wrapf(err, "loading page %s for lead notification", event.PageID)
		}

		recipients, err := lookupRecipients(ctx, opts.Directory, page)
		if err != nil {
			if eris.Is(err, directory.ErrProfileNotFound) {
				if opts.Logger != nil {
					opts.Logger.WithFields(logrus.Fields{"page_id": page.ID, "owner_id": page.OwnerID}).Warn("lead owner has no profile, notification skipped")
				}
				return nil
			}
			return err
		}

		notification := notify.Notification{
			PageID:     page.ID,
			PageTitle:  page.Title,
			LeadID:     event.LeadID,
			LeadData:   event.LeadData,
			Recipients: recipients,
		}
		if opts.PageURL != nil {
			notification.PageURL = opts.PageURL(page)
		}

		if err := opts.Notifier.LeadCaptured(ctx, notification); err != nil {
			return eris.Wrapf(err, "notifying lead for page %s", page.ID)
		}
		return nil
	}
}

// lookupRecipients fetches the owner and partner profiles concurrently. A missing partner
// profile is skipped; a missing owner is returned as directory.ErrProfileNotFound.
func lookupRecipients(ctx context.Context, dir directory.Directory, page *pages.Page) ([]notify.Recipient, error) {
	var owner, partner directory.Profile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := dir.GetProfile(gctx, page.OwnerID)
		if err != nil {
			return eris.Wrapf(err, "loading owner %d", page.OwnerID)
		}
		owner = profile
		return nil
	})
	if page.CoBrandPartnerID != nil {
		partnerID := *page.CoBrandPartnerID
		g.Go(func() error {
			profile, err := dir.GetProfile(gctx, partnerID)
			if err != nil {
				if eris.Is(err, directory.ErrProfileNotFound) {
					return nil
				}
				return eris.Wrapf(err, "loading partner %d", partnerID)
			}
			partner = profile
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recipients := []notify.Recipient{{Name: owner.DisplayName(), Email: owner.Email}}
	if partner.UserID != 0 {
		recipients = append(recipients, notify.Recipient{Name: partner.DisplayName(), Email: partner.Email})
	}
	return recipients, nil
}
