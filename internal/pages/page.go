package pages

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pagegen/app/internal/branding"
	"pagegen/app/internal/registry"
)

// Status is the publication state of a page.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusTrashed   Status = "trashed"
)

// PropertyData describes the listing shown on an open house page.
type PropertyData struct {
	Address     string  `json:"address"`
	Price       int64   `json:"price,omitempty"`
	Beds        float64 `json:"beds,omitempty"`
	Baths       float64 `json:"baths,omitempty"`
	Sqft        int64   `json:"sqft,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Page is a generated landing page persisted in the database.
type Page struct {
	ID               string                `gorm:"primaryKey;size:36"`
	TemplateType     registry.TemplateType `gorm:"size:32;not null;uniqueIndex:idx_pages_template_slug,priority:1"`
	Slug             string                `gorm:"size:255;not null;uniqueIndex:idx_pages_template_slug,priority:2"`
	Title            string                `gorm:"size:255"`
	Status           Status                `gorm:"size:16;not null;index"`
	OwnerID          int64                 `gorm:"not null;index"`
	CoBrandPartnerID *int64                `gorm:"index"`
	CompanyID        *string               `gorm:"size:36;index"`
	// SingletonKey is set for live pages of non-repeatable templates only.
	SingletonKey *string `gorm:"size:96;uniqueIndex:idx_pages_singleton"`
	ImageRef     string  `gorm:"size:512"`

	ViewCount       int64 `gorm:"not null;default:0"`
	ConversionCount int64 `gorm:"not null;default:0"`

	PropertyData      datatypes.JSONType[PropertyData]       `gorm:"not null"`
	BrandingOverrides datatypes.JSONType[branding.Overrides] `gorm:"not null"`

	CompanyName            string                      `gorm:"size:255"`
	AssignedLoanOfficerIDs datatypes.JSONType[[]int64] `gorm:"not null"`
	GroupID                *int64                      `gorm:"index"`
	ManualRealtorIDs       datatypes.JSONType[[]int64] `gorm:"not null"`

	CreatedAt  time.Time `gorm:"index"`
	ModifiedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}

// BeforeCreate assigns the opaque identifier.
func (p *Page) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsPortal reports whether the page is a partner company portal.
func (p *Page) IsPortal() bool {
	return p.TemplateType == registry.PartnerPortal
}

// IsLive reports whether the page has not been trashed.
func (p *Page) IsLive() bool {
	return p.Status != StatusTrashed
}

// Property returns the open house property data.
func (p *Page) Property() PropertyData {
	return p.PropertyData.Data()
}

// Branding returns the portal branding overrides.
func (p *Page) Branding() branding.Overrides {
	return p.BrandingOverrides.Data()
}

// LoanOfficers returns the ordered assigned loan officer ids of a portal.
func (p *Page) LoanOfficers() []int64 {
	return p.AssignedLoanOfficerIDs.Data()
}

// Realtors returns the manually added realtor ids of a portal.
func (p *Page) Realtors() []int64 {
	return p.ManualRealtorIDs.Data()
}

// SetProperty replaces the open house property data.
func (p *Page) SetProperty(data PropertyData) {
	p.PropertyData = datatypes.NewJSONType(data)
}

// SetBranding replaces the portal branding overrides.
func (p *Page) SetBranding(overrides branding.Overrides) {
	p.BrandingOverrides = datatypes.NewJSONType(overrides)
}

// SetLoanOfficers replaces the assigned loan officers, keeping first-seen order.
func (p *Page) SetLoanOfficers(ids []int64) {
	p.AssignedLoanOfficerIDs = datatypes.NewJSONType(dedupe(ids))
}

// SetRealtors replaces the manual realtor list.
func (p *Page) SetRealtors(ids []int64) {
	p.ManualRealtorIDs = datatypes.NewJSONType(dedupe(ids))
}

// SingletonKeyFor builds the uniqueness key guarding one live page per owner and template.
func SingletonKeyFor(ownerID int64, templateType registry.TemplateType) *string {
	key := fmt.Sprintf("%d:%s", ownerID, templateType)
	return &key
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
