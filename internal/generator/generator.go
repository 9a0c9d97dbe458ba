package generator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/directory"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

const (
	defaultDirectoryTimeout = 3 * time.Second
	fallbackSeed            = "page"
)

// Request carries the inputs of a page generation. OwnerID is optional: when zero the creator's
// assigned loan officer owns the page, falling back to the creator.
type Request struct {
	TemplateType     registry.TemplateType
	OwnerID          int64
	CreatorID        int64
	CoBrandPartnerID int64
	PropertyData     *pages.PropertyData
	SlugSeed         string
	CompanyName      string
	CompanyID        string
	Status           pages.Status
}

// Options wires the generator dependencies.
type Options struct {
	Registry         *registry.Registry
	Repository       pages.Repository
	Directory        directory.Directory
	DirectoryTimeout time.Duration
	Logger           *logrus.Logger
	SentryHub        *sentry.Hub
}

// Generator validates generation requests and creates pages.
type Generator struct {
	registry  *registry.Registry
	repo      pages.Repository
	directory directory.Directory
	timeout   time.Duration
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

// New constructs a generator.
func New(opts Options) (*Generator, error) {
	if opts.Registry == nil {
		return nil, eris.New("template registry is required")
	}
	if opts.Repository == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Directory == nil {
		return nil, eris.New("profile directory is required")
	}

	timeout := opts.DirectoryTimeout
	if timeout <= 0 {
		timeout = defaultDirectoryTimeout
	}

	return &Generator{
		registry:  opts.Registry,
		repo:      opts.Repository,
		directory: opts.Directory,
		timeout:   timeout,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
	}, nil
}

// Generate validates the request in order (template, owner, partner, property data, duplicate),
// resolves a slug and persists a published page.
func (g *Generator) Generate(ctx context.Context, req Request) (*pages.Page, error) {
	tpl, err := g.registry.Lookup(req.TemplateType)
	if err != nil {
		return nil, pages.NewFieldError("templateType", pages.ErrUnknownTemplate, string(req.TemplateType))
	}

	ownerID := g.resolveOwnerID(ctx, req)
	if ownerID <= 0 {
		return nil, pages.NewFieldError("ownerId", pages.ErrOwnerNotFound, "no owner or creator supplied")
	}

	owner, err := g.lookupProfile(ctx, ownerID)
	if err != nil {
		g.logWarn(logrus.Fields{"owner_id": ownerID, "error": err.Error()}, "owner lookup failed")
		return nil, pages.NewFieldError("ownerId", pages.ErrOwnerNotFound, strconv.FormatInt(ownerID, 10))
	}

	var partner *directory.Profile
	switch {
	case tpl.RequiresCoBrand && req.CoBrandPartnerID <= 0:
		return nil, pages.NewFieldError("coBrandPartnerId", pages.ErrMissingPartner, "required for "+string(tpl.Type))
	case tpl.RequiresCoBrand:
		profile, err := g.lookupProfile(ctx, req.CoBrandPartnerID)
		if err != nil {
			g.logWarn(logrus.Fields{"partner_id": req.CoBrandPartnerID, "error": err.Error()}, "partner lookup failed")
			return nil, pages.NewFieldError("coBrandPartnerId", pages.ErrMissingPartner, "partner not found")
		}
		partner = &profile
	case req.CoBrandPartnerID > 0:
		return nil, pages.NewFieldError("coBrandPartnerId", pages.ErrMissingPartner, "forbidden for "+string(tpl.Type))
	}

	var property pages.PropertyData
	if tpl.RequiresPropertyData {
		if req.PropertyData == nil || strings.TrimSpace(req.PropertyData.Address) == "" {
			return nil, pages.NewFieldError("propertyData.address", pages.ErrMissingPropertyData, "required for "+string(tpl.Type))
		}
		property = *req.PropertyData
		property.Address = strings.TrimSpace(property.Address)
	}

	companyName := strings.TrimSpace(req.CompanyName)
	if tpl.IsPortal() && companyName == "" {
		return nil, pages.NewFieldError("companyName", pages.ErrMissingCompanyName, "required for "+string(tpl.Type))
	}

	if !tpl.AllowMultiple {
		existing, err := g.repo.FindLive(ctx, ownerID, tpl.Type)
		if err != nil {
			g.recordError(logrus.Fields{"owner_id": ownerID, "template": tpl.Type}, err, "checking for live page")
			return nil, eris.Wrap(err, "checking for live page")
		}
		if existing != nil {
			return nil, eris.Wrapf(pages.ErrDuplicatePage, "owner %d already has a live %s page", ownerID, tpl.Type)
		}
	}

	var companyID *string
	if id := strings.TrimSpace(req.CompanyID); id != "" && !tpl.IsPortal() {
		company, err := g.repo.Get(ctx, id)
		if err != nil {
			if eris.Is(err, pages.ErrNotFound) {
				return nil, pages.NewFieldError("companyId", pages.ErrNotFound, id)
			}
			return nil, eris.Wrap(err, "loading company portal")
		}
		if !company.IsPortal() || !company.IsLive() {
			return nil, pages.NewFieldError("companyId", pages.ErrNotFound, id)
		}
		companyID = &company.ID
	}

	slug, err := g.resolveSlug(ctx, tpl, ownerID, g.slugSeed(tpl, req, owner, partner, property, companyName))
	if err != nil {
		return nil, err
	}

	status := pages.StatusPublished
	if req.Status == pages.StatusDraft {
		status = pages.StatusDraft
	}

	page := &pages.Page{
		TemplateType: tpl.Type,
		Slug:         slug,
		Title:        title(tpl, owner, partner, property, companyName),
		Status:       status,
		OwnerID:      ownerID,
		CompanyID:    companyID,
		ImageRef:     strings.TrimSpace(owner.HeadshotRef),
	}
	if partner != nil {
		partnerID := partner.UserID
		page.CoBrandPartnerID = &partnerID
	}
	if !tpl.AllowMultiple {
		page.SingletonKey = pages.SingletonKeyFor(ownerID, tpl.Type)
	}
	page.SetProperty(property)
	if tpl.IsPortal() {
		page.CompanyName = companyName
		page.SetLoanOfficers([]int64{ownerID})
	}

	if page.ImageRef == "" {
		g.logWarn(logrus.Fields{"owner_id": ownerID}, "owner has no headshot, page created without image")
	}

	if err := g.repo.Create(ctx, page); err != nil {
		if eris.Is(err, pages.ErrDuplicatePage) {
			return nil, err
		}
		g.recordError(logrus.Fields{"owner_id": ownerID, "template": tpl.Type, "slug": slug}, err, "persisting generated page")
		return nil, eris.Wrap(err, "persisting generated page")
	}

	if g.logger != nil {
		g.logger.WithFields(logrus.Fields{
			"page_id":  page.ID,
			"template": page.TemplateType,
			"slug":     page.Slug,
			"owner_id": page.OwnerID,
		}).Info("landing page generated")
	}

	return page, nil
}

func (g *Generator) resolveOwnerID(ctx context.Context, req Request) int64 {
	if req.OwnerID > 0 {
		return req.OwnerID
	}
	if req.CreatorID <= 0 {
		return 0
	}

	creator, err := g.lookupProfile(ctx, req.CreatorID)
	if err == nil && creator.AssignedLoanOfficerID > 0 {
		return creator.AssignedLoanOfficerID
	}
	return req.CreatorID
}

func (g *Generator) lookupProfile(ctx context.Context, userID int64) (directory.Profile, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.directory.GetProfile(lookupCtx, userID)
}

// resolveSlug keeps the candidate unless another owner holds it, in which case the owner id is appended.
// A collision with the same owner is left for the unique index to reject.
func (g *Generator) resolveSlug(ctx context.Context, tpl registry.Template, ownerID int64, seed string) (string, error) {
	candidate := pages.Slugify(seed)
	if candidate == "" {
		candidate = fallbackSeed
	}

	occupant, err := g.repo.FindBySlug(ctx, tpl.Type, candidate)
	if err != nil {
		g.recordError(logrus.Fields{"template": tpl.Type, "slug": candidate}, err, "checking slug availability")
		return "", eris.Wrap(err, "checking slug availability")
	}
	if occupant == nil || occupant.OwnerID == ownerID {
		return candidate, nil
	}

	return candidate + strconv.FormatInt(ownerID, 10), nil
}

func (g *Generator) slugSeed(tpl registry.Template, req Request, owner directory.Profile, partner *directory.Profile, property pages.PropertyData, companyName string) string {
	if seed := strings.TrimSpace(req.SlugSeed); seed != "" {
		return seed
	}

	switch tpl.SlugSeed {
	case registry.SeedCompanyName:
		return companyName
	case registry.SeedPropertyAddress:
		return property.Address
	case registry.SeedCoBrandNames:
		if partner != nil {
			return owner.FirstName + " " + partner.FirstName
		}
		return owner.FirstName
	default:
		return owner.FirstName
	}
}

func title(tpl registry.Template, owner directory.Profile, partner *directory.Profile, property pages.PropertyData, companyName string) string {
	switch {
	case tpl.IsPortal():
		return companyName
	case tpl.RequiresPropertyData:
		return property.Address
	case partner != nil:
		return owner.DisplayName() + " & " + partner.DisplayName()
	default:
		return owner.DisplayName()
	}
}

func (g *Generator) logWarn(fields logrus.Fields, message string) {
	if g.logger == nil {
		return
	}
	g.logger.WithFields(fields).Warn(message)
}

func (g *Generator) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if g.logger != nil {
		entry := g.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if g.sentryHub != nil {
		g.sentryHub.CaptureException(err)
	}
}
