package listing

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

const scanBatchSize = 200

// AccessChecker decides page visibility.
type AccessChecker interface {
	CanAccess(ctx context.Context, page *pages.Page, viewerID int64) bool
	IsAdministrator(ctx context.Context, viewerID int64) bool
}

// CounterReader returns authoritative counters for pages.
type CounterReader interface {
	Totals(ctx context.Context, pageIDs []string) (map[string]pages.Totals, error)
}

// Summary is the read projection of a page.
type Summary struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	TemplateType     registry.TemplateType `json:"templateType"`
	Status           pages.Status          `json:"status"`
	Slug             string                `json:"slug"`
	URL              string                `json:"url"`
	ViewCount        int64                 `json:"viewCount"`
	ConversionCount  int64                 `json:"conversionCount"`
	OwnerID          int64                 `json:"ownerId"`
	CoBrandPartnerID *int64                `json:"coBrandPartnerId,omitempty"`
	CompanyID        *string               `json:"companyId,omitempty"`
	CompanyName      string                `json:"companyName,omitempty"`
	ImageRef         string                `json:"imageRef,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	ModifiedAt       time.Time             `json:"modifiedAt"`
}

// Result is one page of summaries.
type Result struct {
	Items    []Summary `json:"items"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// Options configures the listing service.
type Options struct {
	Repository    pages.Repository
	Registry      *registry.Registry
	Access        AccessChecker
	Counters      CounterReader
	PublicBaseURL string
	Logger        *logrus.Logger
}

// Service answers read queries over pages.
type Service struct {
	repo     pages.Repository
	registry *registry.Registry
	access   AccessChecker
	counters CounterReader
	baseURL  string
	logger   *logrus.Logger
}

// NewService constructs the listing service.
func NewService(opts Options) (*Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Registry == nil {
		return nil, eris.New("template registry is required")
	}
	if opts.Access == nil {
		return nil, eris.New("access checker is required")
	}

	return &Service{
		repo:     opts.Repository,
		registry: opts.Registry,
		access:   opts.Access,
		counters: opts.Counters,
		baseURL:  strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:   opts.Logger,
	}, nil
}

// GetPage returns a page the viewer may see. Missing pages are reported as forbidden
// to everyone except administrators so that existence does not leak.
func (s *Service) GetPage(ctx context.Context, pageID string, viewerID int64) (Summary, error) {
	page, err := s.repo.Get(ctx, pageID)
	if err == nil && !page.IsLive() {
		err = eris.Wrapf(pages.ErrNotFound, "page %s is trashed", pageID)
	}
	if err != nil {
		if !eris.Is(err, pages.ErrNotFound) {
			return Summary{}, err
		}
		if s.access.IsAdministrator(ctx, viewerID) {
			return Summary{}, err
		}
		return Summary{}, eris.Wrapf(pages.ErrForbidden, "viewer %d cannot read page %s", viewerID, pageID)
	}

	if !s.access.CanAccess(ctx, page, viewerID) {
		return Summary{}, eris.Wrapf(pages.ErrForbidden, "viewer %d cannot read page %s", viewerID, pageID)
	}

	summaries, err := s.summarize(ctx, []pages.Page{*page})
	if err != nil {
		return Summary{}, err
	}
	return summaries[0], nil
}

// ListForOwner lists the owner's live pages, newest first.
func (s *Service) ListForOwner(ctx context.Context, ownerID int64, params PageParams) (Result, error) {
	if ownerID <= 0 {
		return emptyResult(params), nil
	}
	return s.list(ctx, pages.Filter{OwnerID: ownerID}, params)
}

// ListForPartner lists live pages co-branded with the partner, newest first.
func (s *Service) ListForPartner(ctx context.Context, partnerID int64, params PageParams) (Result, error) {
	if partnerID <= 0 {
		return emptyResult(params), nil
	}
	return s.list(ctx, pages.Filter{PartnerID: partnerID}, params)
}

// ListForCompany lists pages linked to a partner portal. Viewers without access to the
// portal receive an empty result.
func (s *Service) ListForCompany(ctx context.Context, companyID string, viewerID int64, params PageParams) (Result, error) {
	portal, err := s.repo.Get(ctx, companyID)
	if err != nil {
		if eris.Is(err, pages.ErrNotFound) {
			return emptyResult(params), nil
		}
		return Result{}, err
	}

	if !portal.IsPortal() || !portal.IsLive() || !s.access.CanAccess(ctx, portal, viewerID) {
		s.logDebug(logrus.Fields{"company_id": companyID, "viewer_id": viewerID}, "company listing hidden from viewer")
		return emptyResult(params), nil
	}

	return s.list(ctx, pages.Filter{CompanyID: portal.ID}, params)
}

// ListCompanies lists the partner portals the viewer can access.
func (s *Service) ListCompanies(ctx context.Context, viewerID int64, params PageParams) (Result, error) {
	filter := pages.Filter{TemplateType: registry.PartnerPortal}
	if s.access.IsAdministrator(ctx, viewerID) {
		return s.list(ctx, filter, params)
	}

	params = params.Normalize()
	if viewerID <= 0 {
		return emptyResult(params), nil
	}

	var visible []pages.Page
	for offset := 0; ; offset += scanBatchSize {
		batch, total, err := s.repo.List(ctx, filter, offset, scanBatchSize)
		if err != nil {
			return Result{}, eris.Wrap(err, "listing partner portals")
		}
		for i := range batch {
			if s.access.CanAccess(ctx, &batch[i], viewerID) {
				visible = append(visible, batch[i])
			}
		}
		if int64(offset+len(batch)) >= total || len(batch) == 0 {
			break
		}
	}

	start := min(params.Offset(), len(visible))
	end := min(start+params.PerPage, len(visible))

	items, err := s.summarize(ctx, visible[start:end])
	if err != nil {
		return Result{}, err
	}
	return Result{Items: items, PageInfo: NewPageInfo(params, len(visible))}, nil
}

// Summarize projects a single page, overlaying its counters.
func (s *Service) Summarize(ctx context.Context, page *pages.Page) (Summary, error) {
	if page == nil {
		return Summary{}, eris.New("page is nil")
	}
	summaries, err := s.summarize(ctx, []pages.Page{*page})
	if err != nil {
		return Summary{}, err
	}
	return summaries[0], nil
}

// URL returns the public address of a page.
func (s *Service) URL(page *pages.Page) string {
	return s.baseURL + s.registry.PathPrefix(page.TemplateType) + "/" + page.Slug
}

func (s *Service) list(ctx context.Context, filter pages.Filter, params PageParams) (Result, error) {
	params = params.Normalize()

	rows, total, err := s.repo.List(ctx, filter, params.Offset(), params.PerPage)
	if err != nil {
		return Result{}, eris.Wrap(err, "listing pages")
	}

	items, err := s.summarize(ctx, rows)
	if err != nil {
		return Result{}, err
	}
	return Result{Items: items, PageInfo: NewPageInfo(params, int(total))}, nil
}

func (s *Service) summarize(ctx context.Context, rows []pages.Page) ([]Summary, error) {
	items := make([]Summary, 0, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	var totals map[string]pages.Totals
	if s.counters != nil {
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		var err error
		totals, err = s.counters.Totals(ctx, ids)
		if err != nil {
			return nil, eris.Wrap(err, "loading page counters")
		}
	}

	for i := range rows {
		page := &rows[i]
		summary := Summary{
			ID:               page.ID,
			Title:            page.Title,
			TemplateType:     page.TemplateType,
			Status:           page.Status,
			Slug:             page.Slug,
			URL:              s.URL(page),
			ViewCount:        page.ViewCount,
			ConversionCount:  page.ConversionCount,
			OwnerID:          page.OwnerID,
			CoBrandPartnerID: page.CoBrandPartnerID,
			CompanyID:        page.CompanyID,
			CompanyName:      page.CompanyName,
			ImageRef:         page.ImageRef,
			CreatedAt:        page.CreatedAt,
			ModifiedAt:       page.ModifiedAt,
		}
		if counts, ok := totals[page.ID]; ok {
			summary.ViewCount = counts.Views
			summary.ConversionCount = counts.Conversions
		}
		items = append(items, summary)
	}

	return items, nil
}

func (s *Service) logDebug(fields logrus.Fields, message string) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(fields).Debug(message)
}

func emptyResult(params PageParams) Result {
	params = params.Normalize()
	return Result{Items: []Summary{}, PageInfo: NewPageInfo(params, 0)}
}
