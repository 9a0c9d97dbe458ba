package http

import (
	"bytes"
	"context"
	"mime"
	stdhttp "net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/assets"
	"pagegen/app/internal/branding"
	"pagegen/app/internal/listing"
	"pagegen/app/internal/pages"
)

const maxAssetBytes = 5 << 20

type ownerPagesInput struct {
	OwnerID int64 `path:"ownerId"`
	Page    int   `query:"page" default:"1"`
	PerPage int   `query:"per_page" default:"20"`
}

type partnerPagesInput struct {
	PartnerID int64 `path:"partnerId"`
	Page      int   `query:"page" default:"1"`
	PerPage   int   `query:"per_page" default:"20"`
}

type companyPagesInput struct {
	CompanyID string `path:"companyId"`
	Page      int    `query:"page" default:"1"`
	PerPage   int    `query:"per_page" default:"20"`
}

type companiesInput struct {
	Page    int `query:"page" default:"1"`
	PerPage int `query:"per_page" default:"20"`
}

type companyInput struct {
	CompanyID string `path:"companyId"`
}

type updateBrandingInput struct {
	CompanyID string `path:"companyId"`
	Body      branding.Overrides
}

type loanOfficersInput struct {
	CompanyID string `path:"companyId"`
	Body      struct {
		LoanOfficerIDs []int64 `json:"loanOfficerIds"`
	}
}

type groupInput struct {
	CompanyID string `path:"companyId"`
	Body      struct {
		GroupID int64 `json:"groupId" doc:"Zero unlinks the group"`
	}
}

type realtorsInput struct {
	CompanyID string `path:"companyId"`
	Body      struct {
		RealtorIDs []int64 `json:"realtorIds"`
	}
}

type uploadAssetInput struct {
	CompanyID   string `path:"companyId"`
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

type listOutput struct {
	Body listing.Result
}

type brandingBody struct {
	PrimaryColor   string                  `json:"primaryColor"`
	SecondaryColor string                  `json:"secondaryColor"`
	LogoRef        string                  `json:"logoRef,omitempty"`
	LogoURL        string                  `json:"logoUrl,omitempty"`
	BackgroundRef  string                  `json:"backgroundRef,omitempty"`
	BackgroundURL  string                  `json:"backgroundUrl,omitempty"`
	BackgroundKind branding.BackgroundKind `json:"backgroundKind"`
	ButtonStyle    branding.ButtonStyle    `json:"buttonStyle"`
	ButtonRadius   string                  `json:"buttonRadius"`
	ButtonGradient bool                    `json:"buttonGradient"`
	Overrides      branding.Overrides      `json:"overrides"`
}

type brandingOutput struct {
	Body brandingBody
}

type assetOutput struct {
	Body struct {
		Ref string `json:"ref"`
		URL string `json:"url,omitempty"`
	}
}

func (s *Server) registerListingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-owner-pages",
		Method:      stdhttp.MethodGet,
		Path:        "/owners/{ownerId}/pages",
		Summary:     "List an owner's pages",
		Tags:        []string{"listing"},
	}, s.ownerPagesHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-partner-pages",
		Method:      stdhttp.MethodGet,
		Path:        "/partners/{partnerId}/pages",
		Summary:     "List pages co-branded with a partner",
		Tags:        []string{"listing"},
	}, s.partnerPagesHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-company-pages",
		Method:      stdhttp.MethodGet,
		Path:        "/companies/{companyId}/pages",
		Summary:     "List pages linked to a partner company",
		Tags:        []string{"listing"},
	}, s.companyPagesHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-companies",
		Method:      stdhttp.MethodGet,
		Path:        "/companies",
		Summary:     "List partner companies visible to the caller",
		Tags:        []string{"listing"},
	}, s.companiesHandler)
}

func (s *Server) registerCompanyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-company-branding",
		Method:      stdhttp.MethodGet,
		Path:        "/companies/{companyId}/branding",
		Summary:     "Resolve a partner company's branding",
		Tags:        []string{"companies"},
	}, s.getBrandingHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-company-branding",
		Method:      stdhttp.MethodPut,
		Path:        "/companies/{companyId}/branding",
		Summary:     "Replace a partner company's branding overrides",
		Tags:        []string{"companies"},
	}, s.updateBrandingHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "assign-loan-officers",
		Method:      stdhttp.MethodPut,
		Path:        "/companies/{companyId}/loan-officers",
		Summary:     "Replace a partner company's loan officers",
		Tags:        []string{"companies"},
	}, s.assignLoanOfficersHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-company-group",
		Method:      stdhttp.MethodPut,
		Path:        "/companies/{companyId}/group",
		Summary:     "Link a partner company to a group",
		Tags:        []string{"companies"},
	}, s.setGroupHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "add-company-realtors",
		Method:      stdhttp.MethodPost,
		Path:        "/companies/{companyId}/realtors",
		Summary:     "Add realtors to a partner company",
		Tags:        []string{"companies"},
	}, s.addRealtorsHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-company-realtors",
		Method:      stdhttp.MethodDelete,
		Path:        "/companies/{companyId}/realtors",
		Summary:     "Remove realtors from a partner company",
		Tags:        []string{"companies"},
	}, s.removeRealtorsHandler)

	huma.Register(s.api, huma.Operation{
		OperationID:   "upload-company-asset",
		Method:        stdhttp.MethodPost,
		Path:          "/companies/{companyId}/assets",
		Summary:       "Upload a branding image",
		Tags:          []string{"companies"},
		DefaultStatus: stdhttp.StatusCreated,
		MaxBodyBytes:  maxAssetBytes,
	}, s.uploadAssetHandler)
}

func (s *Server) ownerPagesHandler(ctx context.Context, input *ownerPagesInput) (*listOutput, error) {
	if err := s.requireSelfOrAdministrator(ctx, input.OwnerID); err != nil {
		return nil, err
	}

	result, err := s.listing.ListForOwner(ctx, input.OwnerID, listing.PageParams{Page: input.Page, PerPage: input.PerPage})
	if err != nil {
		return nil, s.apiError(ctx, err, "listing owner pages", logrus.Fields{"owner_id": input.OwnerID})
	}
	return &listOutput{Body: result}, nil
}

func (s *Server) partnerPagesHandler(ctx context.Context, input *partnerPagesInput) (*listOutput, error) {
	if err := s.requireSelfOrAdministrator(ctx, input.PartnerID); err != nil {
		return nil, err
	}

	result, err := s.listing.ListForPartner(ctx, input.PartnerID, listing.PageParams{Page: input.Page, PerPage: input.PerPage})
	if err != nil {
		return nil, s.apiError(ctx, err, "listing partner pages", logrus.Fields{"partner_id": input.PartnerID})
	}
	return &listOutput{Body: result}, nil
}

func (s *Server) companyPagesHandler(ctx context.Context, input *companyPagesInput) (*listOutput, error) {
	companyID := strings.TrimSpace(input.CompanyID)
	params := listing.PageParams{Page: input.Page, PerPage: input.PerPage}

	result, err := s.listing.ListForCompany(ctx, companyID, ViewerIDFromContext(ctx), params)
	if err != nil {
		return nil, s.apiError(ctx, err, "listing company pages", logrus.Fields{"company_id": companyID})
	}
	return &listOutput{Body: result}, nil
}

func (s *Server) companiesHandler(ctx context.Context, input *companiesInput) (*listOutput, error) {
	params := listing.PageParams{Page: input.Page, PerPage: input.PerPage}

	result, err := s.listing.ListCompanies(ctx, ViewerIDFromContext(ctx), params)
	if err != nil {
		return nil, s.apiError(ctx, err, "listing companies", nil)
	}
	return &listOutput{Body: result}, nil
}

func (s *Server) getBrandingHandler(ctx context.Context, input *companyInput) (*brandingOutput, error) {
	companyID := strings.TrimSpace(input.CompanyID)
	fields := logrus.Fields{"company_id": companyID}

	portal, err := s.authorizePortal(ctx, companyID, ViewerIDFromContext(ctx), s.access.CanAccess)
	if err != nil {
		return nil, s.apiError(ctx, err, "loading company branding", fields)
	}

	overrides := portal.Branding()
	resolved := branding.Resolve(&overrides, s.branding)

	out := &brandingOutput{Body: brandingBody{
		PrimaryColor:   resolved.PrimaryColor,
		SecondaryColor: resolved.SecondaryColor,
		LogoRef:        resolved.LogoRef,
		LogoURL:        s.assetURL(ctx, resolved.LogoRef, assets.SizeFull),
		BackgroundRef:  resolved.BackgroundRef,
		BackgroundKind: resolved.BackgroundKind,
		ButtonStyle:    resolved.ButtonStyle,
		ButtonRadius:   resolved.ButtonRadius,
		ButtonGradient: resolved.ButtonGradient,
		Overrides:      overrides,
	}}
	if resolved.BackgroundKind != branding.BackgroundGradient {
		out.Body.BackgroundURL = s.assetURL(ctx, resolved.BackgroundRef, assets.SizeFull)
	}
	return out, nil
}

func (s *Server) updateBrandingHandler(ctx context.Context, input *updateBrandingInput) (*summaryOutput, error) {
	return s.mutateCompany(ctx, input.CompanyID, "updating company branding", func(companyID string, actorID int64) (*pages.Page, error) {
		return s.management.UpdateBranding(ctx, companyID, actorID, input.Body)
	})
}

func (s *Server) assignLoanOfficersHandler(ctx context.Context, input *loanOfficersInput) (*summaryOutput, error) {
	return s.mutateCompany(ctx, input.CompanyID, "assigning loan officers", func(companyID string, actorID int64) (*pages.Page, error) {
		return s.management.AssignLoanOfficers(ctx, companyID, actorID, input.Body.LoanOfficerIDs)
	})
}

func (s *Server) setGroupHandler(ctx context.Context, input *groupInput) (*summaryOutput, error) {
	return s.mutateCompany(ctx, input.CompanyID, "setting company group", func(companyID string, actorID int64) (*pages.Page, error) {
		return s.management.SetGroup(ctx, companyID, actorID, input.Body.GroupID)
	})
}

func (s *Server) addRealtorsHandler(ctx context.Context, input *realtorsInput) (*summaryOutput, error) {
	return s.mutateCompany(ctx, input.CompanyID, "adding company realtors", func(companyID string, actorID int64) (*pages.Page, error) {
		return s.management.AddRealtors(ctx, companyID, actorID, input.Body.RealtorIDs)
	})
}

func (s *Server) removeRealtorsHandler(ctx context.Context, input *realtorsInput) (*summaryOutput, error) {
	return s.mutateCompany(ctx, input.CompanyID, "removing company realtors", func(companyID string, actorID int64) (*pages.Page, error) {
		return s.management.RemoveRealtors(ctx, companyID, actorID, input.Body.RealtorIDs)
	})
}

func (s *Server) uploadAssetHandler(ctx context.Context, input *uploadAssetInput) (*assetOutput, error) {
	viewerID := ViewerIDFromContext(ctx)
	if viewerID <= 0 {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	if s.assets == nil {
		return nil, huma.Error501NotImplemented("asset uploads are not configured")
	}

	companyID := strings.TrimSpace(input.CompanyID)
	fields := logrus.Fields{"company_id": companyID}

	portal, err := s.authorizePortal(ctx, companyID, viewerID, s.access.CanManageCompany)
	if err != nil {
		return nil, s.apiError(ctx, err, "uploading company asset", fields)
	}
	if len(input.RawBody) == 0 {
		return nil, huma.Error400BadRequest("asset body is empty")
	}

	contentType, _, err := mime.ParseMediaType(input.ContentType)
	if err != nil {
		return nil, huma.Error415UnsupportedMediaType("asset content type is invalid")
	}
	key, err := assets.NewUploadKey(portal.ID, contentType)
	if err != nil {
		return nil, huma.Error415UnsupportedMediaType("only image uploads are accepted")
	}

	if err := s.assets.Put(ctx, key, bytes.NewReader(input.RawBody), int64(len(input.RawBody)), contentType); err != nil {
		if eris.Is(err, assets.ErrReadOnly) {
			return nil, huma.Error501NotImplemented("asset uploads are not configured")
		}
		s.recordError(ctx, err, "storing company asset", fields)
		return nil, huma.Error502BadGateway("asset storage is unavailable")
	}

	out := &assetOutput{}
	out.Body.Ref = key
	out.Body.URL = s.assetURL(ctx, key, assets.SizeFull)
	return out, nil
}

func (s *Server) mutateCompany(ctx context.Context, rawCompanyID, message string, mutate func(companyID string, actorID int64) (*pages.Page, error)) (*summaryOutput, error) {
	viewerID := ViewerIDFromContext(ctx)
	if viewerID <= 0 {
		return nil, huma.Error401Unauthorized("authentication required")
	}

	companyID := strings.TrimSpace(rawCompanyID)
	fields := logrus.Fields{"company_id": companyID, "actor_id": viewerID}

	portal, err := mutate(companyID, viewerID)
	if err != nil {
		return nil, s.apiError(ctx, err, message, fields)
	}

	summary, err := s.listing.Summarize(ctx, portal)
	if err != nil {
		return nil, s.apiError(ctx, err, message, fields)
	}
	return &summaryOutput{Body: summary}, nil
}

func (s *Server) requireSelfOrAdministrator(ctx context.Context, userID int64) error {
	viewerID := ViewerIDFromContext(ctx)
	if viewerID <= 0 {
		return huma.Error401Unauthorized("authentication required")
	}
	if viewerID != userID && !s.access.IsAdministrator(ctx, viewerID) {
		return huma.Error403Forbidden("access forbidden")
	}
	return nil
}

// authorizePortal loads the portal and applies allowed. Non-administrators get ErrForbidden
// for missing portals too, so the response does not reveal whether the company exists.
func (s *Server) authorizePortal(ctx context.Context, companyID string, viewerID int64, allowed func(context.Context, *pages.Page, int64) bool) (*pages.Page, error) {
	portal, err := s.loadPortal(ctx, companyID)
	if err != nil {
		if eris.Is(err, pages.ErrNotFound) && !s.access.IsAdministrator(ctx, viewerID) {
			return nil, eris.Wrapf(pages.ErrForbidden, "viewer %d cannot use company %s", viewerID, companyID)
		}
		return nil, err
	}
	if !allowed(ctx, portal, viewerID) {
		return nil, eris.Wrapf(pages.ErrForbidden, "viewer %d cannot use company %s", viewerID, companyID)
	}
	return portal, nil
}

// loadPortal returns the live partner portal with the given id or a wrapped ErrNotFound.
func (s *Server) loadPortal(ctx context.Context, companyID string) (*pages.Page, error) {
	portal, err := s.repository.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !portal.IsPortal() || !portal.IsLive() {
		return nil, eris.Wrapf(pages.ErrNotFound, "company %s", companyID)
	}
	return portal, nil
}

func (s *Server) assetURL(ctx context.Context, ref string, size assets.Size) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if s.assets == nil {
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			return ref
		}
		return ""
	}
	url, ok := s.assets.ImageURL(ctx, ref, size)
	if !ok {
		return ""
	}
	return url
}
