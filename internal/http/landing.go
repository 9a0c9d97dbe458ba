package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pagegen/app/internal/assets"
	"pagegen/app/internal/branding"
	"pagegen/app/internal/directory"
	"pagegen/app/internal/http/templates"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

const teamLookupLimit = 4

type landingInput struct {
	Slug string `path:"slug"`
}

func (s *Server) registerLandingRoutes() {
	for _, tpl := range s.registry.All() {
		huma.Get(s.api, tpl.PathPrefix+"/{slug}", s.landingHandler(tpl), htmlOperation(
			"Render "+strings.ToLower(tpl.Label)+" page",
			stdhttp.StatusNotFound,
			stdhttp.StatusInternalServerError,
		))
	}
}

func (s *Server) landingHandler(tpl registry.Template) func(context.Context, *landingInput) (*htmlResponse, error) {
	return func(ctx context.Context, input *landingInput) (*htmlResponse, error) {
		slug := strings.TrimSpace(input.Slug)
		fields := logrus.Fields{"template": tpl.Type, "slug": slug}

		page, err := s.repository.FindBySlug(ctx, tpl.Type, slug)
		if err != nil {
			s.recordError(ctx, err, "loading landing page", fields)
			return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
		}
		if page == nil || !page.IsLive() {
			return s.renderErrorResponse(ctx, stdhttp.StatusNotFound, notFoundMessage)
		}

		// Drafts and portals the viewer cannot access render exactly like missing pages.
		viewerID := ViewerIDFromContext(ctx)
		draft := page.Status == pages.StatusDraft
		if (draft || page.IsPortal()) && !s.access.CanAccess(ctx, page, viewerID) {
			return s.renderErrorResponse(ctx, stdhttp.StatusNotFound, notFoundMessage)
		}

		data := s.landingData(ctx, tpl, page)
		body, err := renderComponent(ctx, templates.LandingPage(data))
		if err != nil {
			s.recordError(ctx, err, "rendering landing page", fields)
			return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
		}

		if !draft {
			if _, err := s.counters.RecordView(ctx, page.ID); err != nil {
				s.recordError(ctx, err, "recording landing page view", fields)
			}
		}

		return newHTMLResponse(stdhttp.StatusOK, body), nil
	}
}

func (s *Server) landingData(ctx context.Context, tpl registry.Template, page *pages.Page) templates.LandingPageData {
	data := templates.LandingPageData{
		PageID:        page.ID,
		Title:         page.Title,
		TemplateType:  string(page.TemplateType),
		TemplateLabel: tpl.Label,
		Draft:         page.Status == pages.StatusDraft,
		CompanyName:   page.CompanyName,
		Branding:      s.pageBranding(ctx, page),
	}
	if s.baseURL != "" {
		data.CanonicalURL = s.baseURL + tpl.PathPrefix + "/" + page.Slug
	}

	if owner, ok := s.contact(ctx, page.OwnerID); ok {
		data.Owner = owner
	}
	if data.Owner.HeadshotURL == "" {
		data.Owner.HeadshotURL = s.assetURL(ctx, page.ImageRef, assets.SizeMedium)
	}
	if page.CoBrandPartnerID != nil {
		if partner, ok := s.contact(ctx, *page.CoBrandPartnerID); ok {
			data.Partner = &partner
		}
	}
	if page.IsPortal() {
		data.Team = s.team(ctx, page.LoanOfficers())
	}

	if tpl.RequiresPropertyData {
		data.Property = s.propertyView(ctx, page)
	}

	return data
}

// pageBranding resolves portal overrides for portals and for pages linked to a live portal.
func (s *Server) pageBranding(ctx context.Context, page *pages.Page) templates.BrandingView {
	var overrides *branding.Overrides
	switch {
	case page.IsPortal():
		o := page.Branding()
		overrides = &o
	case page.CompanyID != nil:
		portal, err := s.loadPortal(ctx, *page.CompanyID)
		if err == nil {
			o := portal.Branding()
			overrides = &o
		} else if s.logger != nil {
			s.logger.WithError(err).WithField("company_id", *page.CompanyID).Debug("linked company unavailable; using default branding")
		}
	}

	return s.brandingView(ctx, branding.Resolve(overrides, s.branding))
}

func (s *Server) defaultBrandingView(ctx context.Context) templates.BrandingView {
	return s.brandingView(ctx, branding.Resolve(nil, s.branding))
}

func (s *Server) brandingView(ctx context.Context, resolved branding.Resolved) templates.BrandingView {
	view := templates.BrandingView{
		PrimaryColor:   resolved.PrimaryColor,
		SecondaryColor: resolved.SecondaryColor,
		LogoURL:        s.assetURL(ctx, resolved.LogoRef, assets.SizeFull),
		BackgroundKind: string(resolved.BackgroundKind),
		ButtonRadius:   resolved.ButtonRadius,
		ButtonGradient: resolved.ButtonGradient,
	}
	if resolved.BackgroundKind != branding.BackgroundGradient {
		view.BackgroundURL = s.assetURL(ctx, resolved.BackgroundRef, assets.SizeFull)
		if view.BackgroundURL == "" {
			view.BackgroundKind = string(branding.BackgroundGradient)
		}
	}
	return view
}

func (s *Server) contact(ctx context.Context, userID int64) (templates.ContactView, bool) {
	profile, err := s.directory.GetProfile(ctx, userID)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("profile unavailable for landing page")
		}
		return templates.ContactView{}, false
	}
	return s.contactView(ctx, profile), true
}

func (s *Server) contactView(ctx context.Context, profile directory.Profile) templates.ContactView {
	return templates.ContactView{
		Name:        profile.DisplayName(),
		JobTitle:    profile.JobTitle,
		Email:       profile.Email,
		Phone:       profile.Phone,
		HeadshotURL: s.assetURL(ctx, profile.HeadshotRef, assets.SizeMedium),
	}
}

// team looks up portal loan officers concurrently, keeping assignment order and skipping
// profiles that cannot be resolved.
func (s *Server) team(ctx context.Context, loanOfficerIDs []int64) []templates.ContactView {
	if len(loanOfficerIDs) == 0 {
		return nil
	}

	members := make([]*templates.ContactView, len(loanOfficerIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(teamLookupLimit)
	for i, id := range loanOfficerIDs {
		group.Go(func() error {
			if member, ok := s.contact(groupCtx, id); ok {
				members[i] = &member
			}
			return nil
		})
	}
	_ = group.Wait()

	team := make([]templates.ContactView, 0, len(members))
	for _, member := range members {
		if member != nil {
			team = append(team, *member)
		}
	}
	return team
}

func (s *Server) propertyView(ctx context.Context, page *pages.Page) *templates.PropertyView {
	property := page.Property()
	view := &templates.PropertyView{Address: property.Address}

	if property.Price > 0 {
		view.PriceLabel = "$" + groupThousands(property.Price)
	}
	if property.Beds > 0 {
		view.Facts = append(view.Facts, formatQuantity(property.Beds, "bed"))
	}
	if property.Baths > 0 {
		view.Facts = append(view.Facts, formatQuantity(property.Baths, "bath"))
	}
	if property.Sqft > 0 {
		view.Facts = append(view.Facts, groupThousands(property.Sqft)+" sq ft")
	}

	if strings.TrimSpace(property.Description) != "" {
		html, err := templates.Markdown(property.Description)
		if err != nil {
			s.recordError(ctx, err, "rendering property description", logrus.Fields{"page_id": page.ID})
		} else {
			view.DescriptionHTML = html
		}
	}

	return view
}

func formatQuantity(value float64, unit string) string {
	label := strconv.FormatFloat(value, 'f', -1, 64)
	if value != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%s %s", label, unit)
}

func groupThousands(value int64) string {
	digits := strconv.FormatInt(value, 10)
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
