package http

import (
	"context"
	"crypto/subtle"
	stdhttp "net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/generator"
	"pagegen/app/internal/listing"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

type propertyDataBody struct {
	Address     string  `json:"address,omitempty"`
	Price       int64   `json:"price,omitempty" minimum:"0"`
	Beds        float64 `json:"beds,omitempty" minimum:"0"`
	Baths       float64 `json:"baths,omitempty" minimum:"0"`
	Sqft        int64   `json:"sqft,omitempty" minimum:"0"`
	Description string  `json:"description,omitempty" maxLength:"10000"`
}

type generatePageInput struct {
	Body struct {
		TemplateType     string            `json:"templateType,omitempty" doc:"Registered template type"`
		OwnerID          int64             `json:"ownerId,omitempty" doc:"Defaults to the caller's assigned loan officer, then the caller"`
		CoBrandPartnerID int64             `json:"coBrandPartnerId,omitempty"`
		PropertyData     *propertyDataBody `json:"propertyData,omitempty"`
		SlugSeed         string            `json:"slugSeed,omitempty"`
		CompanyName      string            `json:"companyName,omitempty"`
		CompanyID        string            `json:"companyId,omitempty"`
		Draft            bool              `json:"draft,omitempty"`
	}
}

type pageIDInput struct {
	PageID string `path:"pageId"`
}

type counterInput struct {
	PageID        string `path:"pageId"`
	WebhookSecret string `header:"X-Webhook-Secret"`
}

type summaryOutput struct {
	Body listing.Summary
}

type counterOutput struct {
	Body struct {
		Count int64 `json:"count"`
	}
}

func (s *Server) registerPageRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "generate-page",
		Method:        stdhttp.MethodPost,
		Path:          "/pages",
		Summary:       "Generate a landing page",
		DefaultStatus: stdhttp.StatusCreated,
		Tags:          []string{"pages"},
	}, s.generatePageHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-page",
		Method:      stdhttp.MethodGet,
		Path:        "/pages/{pageId}",
		Summary:     "Read a page",
		Tags:        []string{"pages"},
	}, s.getPageHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "trash-page",
		Method:      stdhttp.MethodDelete,
		Path:        "/pages/{pageId}",
		Summary:     "Move a page to the trash",
		Tags:        []string{"pages"},
	}, s.trashPageHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "record-view",
		Method:      stdhttp.MethodPost,
		Path:        "/pages/{pageId}/views",
		Summary:     "Record a page view",
		Tags:        []string{"analytics"},
	}, s.recordViewHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "record-conversion",
		Method:      stdhttp.MethodPost,
		Path:        "/pages/{pageId}/conversions",
		Summary:     "Record a page conversion",
		Tags:        []string{"analytics"},
	}, s.recordConversionHandler)
}

func (s *Server) generatePageHandler(ctx context.Context, input *generatePageInput) (*summaryOutput, error) {
	viewerID := ViewerIDFromContext(ctx)
	if viewerID <= 0 {
		return nil, huma.Error401Unauthorized("authentication required")
	}

	body := input.Body
	if body.OwnerID > 0 && body.OwnerID != viewerID && !s.access.IsAdministrator(ctx, viewerID) {
		return nil, huma.Error403Forbidden("only administrators may generate pages for another owner")
	}

	req := generator.Request{
		TemplateType:     registry.TemplateType(strings.TrimSpace(body.TemplateType)),
		OwnerID:          body.OwnerID,
		CreatorID:        viewerID,
		CoBrandPartnerID: body.CoBrandPartnerID,
		SlugSeed:         body.SlugSeed,
		CompanyName:      body.CompanyName,
		CompanyID:        strings.TrimSpace(body.CompanyID),
	}
	if body.PropertyData != nil {
		req.PropertyData = &pages.PropertyData{
			Address:     body.PropertyData.Address,
			Price:       body.PropertyData.Price,
			Beds:        body.PropertyData.Beds,
			Baths:       body.PropertyData.Baths,
			Sqft:        body.PropertyData.Sqft,
			Description: body.PropertyData.Description,
		}
	}
	if body.Draft {
		req.Status = pages.StatusDraft
	}

	fields := logrus.Fields{"template": req.TemplateType, "creator_id": viewerID}
	page, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, s.apiError(ctx, err, "generating page", fields)
	}

	summary, err := s.listing.Summarize(ctx, page)
	if err != nil {
		return nil, s.apiError(ctx, err, "summarizing generated page", fields)
	}
	return &summaryOutput{Body: summary}, nil
}

func (s *Server) getPageHandler(ctx context.Context, input *pageIDInput) (*summaryOutput, error) {
	pageID := strings.TrimSpace(input.PageID)
	summary, err := s.listing.GetPage(ctx, pageID, ViewerIDFromContext(ctx))
	if err != nil {
		return nil, s.apiError(ctx, err, "reading page", logrus.Fields{"page_id": pageID})
	}
	return &summaryOutput{Body: summary}, nil
}

func (s *Server) trashPageHandler(ctx context.Context, input *pageIDInput) (*summaryOutput, error) {
	viewerID := ViewerIDFromContext(ctx)
	if viewerID <= 0 {
		return nil, huma.Error401Unauthorized("authentication required")
	}

	pageID := strings.TrimSpace(input.PageID)
	fields := logrus.Fields{"page_id": pageID}
	page, err := s.management.Trash(ctx, pageID, viewerID)
	if err != nil {
		return nil, s.apiError(ctx, err, "trashing page", fields)
	}

	summary, err := s.listing.Summarize(ctx, page)
	if err != nil {
		return nil, s.apiError(ctx, err, "summarizing trashed page", fields)
	}
	return &summaryOutput{Body: summary}, nil
}

func (s *Server) recordViewHandler(ctx context.Context, input *pageIDInput) (*counterOutput, error) {
	pageID := strings.TrimSpace(input.PageID)
	count, err := s.counters.RecordView(ctx, pageID)
	if err != nil {
		return nil, s.apiError(ctx, err, "recording page view", logrus.Fields{"page_id": pageID})
	}

	out := &counterOutput{}
	out.Body.Count = count
	return out, nil
}

func (s *Server) recordConversionHandler(ctx context.Context, input *counterInput) (*counterOutput, error) {
	if !s.validWebhookSecret(input.WebhookSecret) {
		return nil, huma.Error401Unauthorized("invalid webhook secret")
	}

	pageID := strings.TrimSpace(input.PageID)
	count, err := s.counters.RecordConversion(ctx, pageID)
	if err != nil {
		return nil, s.apiError(ctx, err, "recording page conversion", logrus.Fields{"page_id": pageID})
	}

	out := &counterOutput{}
	out.Body.Count = count
	return out, nil
}

// validWebhookSecret compares in constant time. An unset secret rejects every call.
func (s *Server) validWebhookSecret(candidate string) bool {
	if s.webhookSecret == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.webhookSecret)) == 1
}
