package pages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pagegen/app/internal/registry"
)

// Metric names a page counter.
type Metric string

const (
	MetricViews       Metric = "views"
	MetricConversions Metric = "conversions"
)

func (m Metric) column() (string, error) {
	switch m {
	case MetricViews:
		return "view_count", nil
	case MetricConversions:
		return "conversion_count", nil
	default:
		return "", eris.Errorf("unknown metric: %s", string(m))
	}
}

// Filter narrows a page listing. Zero values are ignored.
type Filter struct {
	OwnerID      int64
	PartnerID    int64
	CompanyID    string
	TemplateType registry.TemplateType
}

// Totals holds the counters of a single page.
type Totals struct {
	Views       int64
	Conversions int64
}

// Repository defines persistence operations for landing pages.
type Repository interface {
	Create(ctx context.Context, page *Page) error
	Get(ctx context.Context, id string) (*Page, error)
	FindBySlug(ctx context.Context, templateType registry.TemplateType, slug string) (*Page, error)
	FindLive(ctx context.Context, ownerID int64, templateType registry.TemplateType) (*Page, error)
	UpdateMetadata(ctx context.Context, page *Page) error
	Trash(ctx context.Context, id string) (*Page, error)
	IncrementCounter(ctx context.Context, id string, metric Metric) (int64, error)
	CounterTotals(ctx context.Context, ids []string) (map[string]Totals, error)
	SetImageForOwner(ctx context.Context, ownerID int64, imageRef string) (int64, error)
	List(ctx context.Context, filter Filter, offset, limit int) ([]Page, int64, error)
}

// GormRepository persists pages using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// Create inserts a new page. Unique index violations surface as ErrDuplicatePage.
func (r *GormRepository) Create(ctx context.Context, page *Page) error {
	if page == nil {
		return eris.New("page is nil")
	}

	page.Slug = strings.TrimSpace(page.Slug)
	if page.Slug == "" {
		return eris.New("page slug is required")
	}
	if page.OwnerID <= 0 {
		return eris.New("page owner is required")
	}

	if err := r.db.WithContext(ctx).Create(page).Error; err != nil {
		fields := logrus.Fields{"slug": page.Slug, "template": page.TemplateType, "owner_id": page.OwnerID}
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicatePage, "creating %s page %s", page.TemplateType, page.Slug)
		}
		r.logError(fields, err, "creating page")
		return eris.Wrapf(err, "creating page: %s", page.Slug)
	}

	return nil
}

// Get returns the page with the given id or ErrNotFound.
func (r *GormRepository) Get(ctx context.Context, id string) (*Page, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, eris.Wrap(ErrNotFound, "page id is empty")
	}

	var page Page
	err := r.db.WithContext(ctx).First(&page, "id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "page %s", trimmed)
		}
		r.logError(logrus.Fields{"page_id": trimmed}, err, "fetching page")
		return nil, eris.Wrapf(err, "fetching page: %s", trimmed)
	}

	return &page, nil
}

// FindBySlug returns the page occupying slug in the template namespace, or nil when the slot is free.
func (r *GormRepository) FindBySlug(ctx context.Context, templateType registry.TemplateType, slug string) (*Page, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.New("slug is required")
	}

	var page Page
	err := r.db.WithContext(ctx).
		Where("template_type = ? AND slug = ?", templateType, trimmed).
		First(&page).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"slug": trimmed, "template": templateType}, err, "fetching page by slug")
		return nil, eris.Wrapf(err, "fetching page by slug: %s", trimmed)
	}

	return &page, nil
}

// FindLive returns the owner's live page for the template, or nil.
func (r *GormRepository) FindLive(ctx context.Context, ownerID int64, templateType registry.TemplateType) (*Page, error) {
	var page Page
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND template_type = ? AND status <> ?", ownerID, templateType, StatusTrashed).
		Order("created_at DESC").
		First(&page).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"owner_id": ownerID, "template": templateType}, err, "fetching live page")
		return nil, eris.Wrapf(err, "fetching live %s page for owner %d", templateType, ownerID)
	}

	return &page, nil
}

// UpdateMetadata persists the mutable portal metadata and status of an existing page.
func (r *GormRepository) UpdateMetadata(ctx context.Context, page *Page) error {
	if page == nil || page.ID == "" {
		return eris.New("page with id is required")
	}

	page.ModifiedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(page).
		Select("title", "status", "image_ref", "branding_overrides", "company_name",
			"assigned_loan_officer_ids", "group_id", "manual_realtor_ids", "modified_at").
		Updates(page)
	if result.Error != nil {
		r.logError(logrus.Fields{"page_id": page.ID}, result.Error, "updating page metadata")
		return eris.Wrapf(result.Error, "updating page metadata: %s", page.ID)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrNotFound, "page %s", page.ID)
	}

	return nil
}

// Trash moves a page to the trash, releasing its slug and singleton slot.
func (r *GormRepository) Trash(ctx context.Context, id string) (*Page, error) {
	var trashed Page
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&trashed, "id = ?", id).Error; err != nil {
			if eris.Is(err, gorm.ErrRecordNotFound) {
				return eris.Wrapf(ErrNotFound, "page %s", id)
			}
			return eris.Wrapf(err, "loading page %s", id)
		}
		if trashed.Status == StatusTrashed {
			return nil
		}

		trashed.Status = StatusTrashed
		trashed.Slug = TrashedSlug(trashed.Slug, trashed.ID)
		trashed.SingletonKey = nil
		trashed.ModifiedAt = time.Now()

		return tx.Model(&trashed).
			Select("status", "slug", "singleton_key", "modified_at").
			Updates(&trashed).Error
	})
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, err
		}
		r.logError(logrus.Fields{"page_id": id}, err, "trashing page")
		return nil, eris.Wrapf(err, "trashing page: %s", id)
	}

	return &trashed, nil
}

// IncrementCounter atomically adds one to the metric and returns the new total.
// Trashed pages are reported as ErrNotFound and keep their counts.
func (r *GormRepository) IncrementCounter(ctx context.Context, id string, metric Metric) (int64, error) {
	column, err := metric.column()
	if err != nil {
		return 0, err
	}

	var total int64
	result := r.db.WithContext(ctx).
		Raw("UPDATE pages SET "+column+" = "+column+" + 1 WHERE id = ? AND status <> ? RETURNING "+column, id, StatusTrashed).
		Scan(&total)
	if result.Error != nil {
		r.logError(logrus.Fields{"page_id": id, "metric": metric}, result.Error, "incrementing page counter")
		return 0, eris.Wrapf(result.Error, "incrementing %s for page %s", metric, id)
	}
	if result.RowsAffected == 0 {
		return 0, eris.Wrapf(ErrNotFound, "page %s", id)
	}

	return total, nil
}

// CounterTotals returns the stored counters of the given pages keyed by id.
func (r *GormRepository) CounterTotals(ctx context.Context, ids []string) (map[string]Totals, error) {
	totals := make(map[string]Totals, len(ids))
	if len(ids) == 0 {
		return totals, nil
	}

	var rows []struct {
		ID              string
		ViewCount       int64
		ConversionCount int64
	}
	err := r.db.WithContext(ctx).
		Model(&Page{}).
		Select("id", "view_count", "conversion_count").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		r.logError(logrus.Fields{"page_count": len(ids)}, err, "reading page counters")
		return nil, eris.Wrap(err, "reading page counters")
	}

	for _, row := range rows {
		totals[row.ID] = Totals{Views: row.ViewCount, Conversions: row.ConversionCount}
	}

	return totals, nil
}

// SetImageForOwner re-syncs the representative image on every live page of the owner.
func (r *GormRepository) SetImageForOwner(ctx context.Context, ownerID int64, imageRef string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&Page{}).
		Where("owner_id = ? AND status <> ?", ownerID, StatusTrashed).
		Updates(map[string]any{"image_ref": imageRef, "modified_at": time.Now()})
	if result.Error != nil {
		r.logError(logrus.Fields{"owner_id": ownerID}, result.Error, "syncing owner image")
		return 0, eris.Wrapf(result.Error, "syncing image for owner %d", ownerID)
	}

	return result.RowsAffected, nil
}

// List returns live pages matching the filter, newest first, with the total match count.
func (r *GormRepository) List(ctx context.Context, filter Filter, offset, limit int) ([]Page, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		r.logError(logrus.Fields{"filter": filter}, err, "counting pages")
		return nil, 0, eris.Wrap(err, "counting pages")
	}

	pages := []Page{}
	if total == 0 {
		return pages, 0, nil
	}

	query := r.filtered(ctx, filter).Order("created_at DESC").Order("id DESC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&pages).Error; err != nil {
		r.logError(logrus.Fields{"filter": filter}, err, "listing pages")
		return nil, 0, eris.Wrap(err, "listing pages")
	}

	return pages, total, nil
}

func (r *GormRepository) filtered(ctx context.Context, filter Filter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&Page{}).Where("status <> ?", StatusTrashed)
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.PartnerID != 0 {
		query = query.Where("co_brand_partner_id = ?", filter.PartnerID)
	}
	if filter.CompanyID != "" {
		query = query.Where("company_id = ?", filter.CompanyID)
	}
	if filter.TemplateType != "" {
		query = query.Where("template_type = ?", filter.TemplateType)
	}
	return query
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
