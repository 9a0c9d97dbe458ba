package management

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/branding"
	"pagegen/app/internal/pages"
)

// Authorizer decides who may change a page.
type Authorizer interface {
	CanManageCompany(ctx context.Context, portal *pages.Page, actorID int64) bool
	IsAdministrator(ctx context.Context, viewerID int64) bool
}

// Options configures the management service.
type Options struct {
	Repository pages.Repository
	Access     Authorizer
	Logger     *logrus.Logger
	SentryHub  *sentry.Hub
}

// Service changes portal metadata and page lifecycle on behalf of an actor.
type Service struct {
	repo      pages.Repository
	access    Authorizer
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

// NewService constructs the management service.
func NewService(opts Options) (*Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Access == nil {
		return nil, eris.New("authorizer is required")
	}

	return &Service{
		repo:      opts.Repository,
		access:    opts.Access,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
	}, nil
}

// UpdateBranding validates and stores branding overrides on a partner portal.
func (s *Service) UpdateBranding(ctx context.Context, companyID string, actorID int64, overrides branding.Overrides) (*pages.Page, error) {
	return s.updatePortal(ctx, companyID, actorID, "branding updated", func(portal *pages.Page) error {
		overrides = branding.Normalize(overrides)
		if err := branding.Validate(overrides); err != nil {
			return pages.NewFieldError("branding", pages.ErrInvalidBranding, err.Error())
		}
		portal.SetBranding(overrides)
		return nil
	})
}

// AssignLoanOfficers replaces the ordered loan officer list of a portal.
func (s *Service) AssignLoanOfficers(ctx context.Context, companyID string, actorID int64, loanOfficerIDs []int64) (*pages.Page, error) {
	return s.updatePortal(ctx, companyID, actorID, "loan officers assigned", func(portal *pages.Page) error {
		portal.SetLoanOfficers(loanOfficerIDs)
		if len(portal.LoanOfficers()) == 0 {
			return pages.NewFieldError("loanOfficerIds", pages.ErrEmptyAssignment, "")
		}
		return nil
	})
}

// SetGroup links a portal to a directory group. A zero id clears the link.
func (s *Service) SetGroup(ctx context.Context, companyID string, actorID int64, groupID int64) (*pages.Page, error) {
	return s.updatePortal(ctx, companyID, actorID, "group set", func(portal *pages.Page) error {
		if groupID <= 0 {
			portal.GroupID = nil
			return nil
		}
		portal.GroupID = &groupID
		return nil
	})
}

// AddRealtors grants portal access to realtors. Existing entries are kept.
func (s *Service) AddRealtors(ctx context.Context, companyID string, actorID int64, realtorIDs []int64) (*pages.Page, error) {
	return s.updatePortal(ctx, companyID, actorID, "realtors added", func(portal *pages.Page) error {
		portal.SetRealtors(append(portal.Realtors(), realtorIDs...))
		return nil
	})
}

// RemoveRealtors revokes manually granted portal access.
func (s *Service) RemoveRealtors(ctx context.Context, companyID string, actorID int64, realtorIDs []int64) (*pages.Page, error) {
	return s.updatePortal(ctx, companyID, actorID, "realtors removed", func(portal *pages.Page) error {
		remaining := make([]int64, 0, len(portal.Realtors()))
		for _, id := range portal.Realtors() {
			if !pages.ContainsID(realtorIDs, id) {
				remaining = append(remaining, id)
			}
		}
		portal.SetRealtors(remaining)
		return nil
	})
}

// Trash moves a page to the trash. Owners and administrators may trash any page;
// portal managers may also trash their portal.
func (s *Service) Trash(ctx context.Context, pageID string, actorID int64) (*pages.Page, error) {
	page, err := s.load(ctx, pageID)
	if err != nil {
		return nil, s.conceal(ctx, err, pageID, actorID)
	}

	allowed := actorID > 0 && (page.OwnerID == actorID || s.access.IsAdministrator(ctx, actorID))
	if !allowed && page.IsPortal() {
		allowed = s.access.CanManageCompany(ctx, page, actorID)
	}
	if !allowed {
		return nil, eris.Wrapf(pages.ErrForbidden, "actor %d cannot trash page %s", actorID, pageID)
	}

	trashed, err := s.repo.Trash(ctx, page.ID)
	if err != nil {
		if !eris.Is(err, pages.ErrNotFound) {
			s.recordError(logrus.Fields{"page_id": pageID}, err, "trashing page")
		}
		return nil, err
	}

	s.logInfo(logrus.Fields{"page_id": pageID, "actor_id": actorID}, "page trashed")
	return trashed, nil
}

func (s *Service) updatePortal(ctx context.Context, companyID string, actorID int64, action string, mutate func(*pages.Page) error) (*pages.Page, error) {
	portal, err := s.load(ctx, companyID)
	if err == nil && !portal.IsPortal() {
		err = eris.Wrapf(pages.ErrNotFound, "page %s is not a company portal", companyID)
	}
	if err != nil {
		return nil, s.conceal(ctx, err, companyID, actorID)
	}
	if !s.access.CanManageCompany(ctx, portal, actorID) {
		return nil, eris.Wrapf(pages.ErrForbidden, "actor %d cannot manage company %s", actorID, companyID)
	}

	if err := mutate(portal); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateMetadata(ctx, portal); err != nil {
		if !eris.Is(err, pages.ErrNotFound) {
			s.recordError(logrus.Fields{"company_id": companyID}, err, "updating company portal")
		}
		return nil, err
	}

	s.logInfo(logrus.Fields{"company_id": companyID, "actor_id": actorID}, action)
	return portal, nil
}

func (s *Service) load(ctx context.Context, pageID string) (*pages.Page, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, eris.Wrap(pages.ErrNotFound, "page id is empty")
	}

	page, err := s.repo.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if !page.IsLive() {
		return nil, eris.Wrapf(pages.ErrNotFound, "page %s is trashed", pageID)
	}
	return page, nil
}

// conceal reports a missing page as forbidden to everyone but administrators.
func (s *Service) conceal(ctx context.Context, err error, pageID string, actorID int64) error {
	if !eris.Is(err, pages.ErrNotFound) || s.access.IsAdministrator(ctx, actorID) {
		return err
	}
	return eris.Wrapf(pages.ErrForbidden, "actor %d cannot change page %s", actorID, pageID)
}

func (s *Service) logInfo(fields logrus.Fields, message string) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(fields).Info(message)
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
