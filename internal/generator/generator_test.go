package generator

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/db"
	"pagegen/app/internal/directory"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error when registry is missing")
	}
	if _, err := New(Options{Registry: registry.Default()}); err == nil {
		t.Fatalf("expected error when repository is missing")
	}
}

func TestGenerateBioLinkUsesFirstNameSlugAndHeadshot(t *testing.T) {
	t.Parallel()

	gen, _, dir := setupGenerator(t)

	page, err := gen.Generate(context.Background(), Request{TemplateType: registry.BioLink, OwnerID: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if page.Slug != "jane" {
		t.Fatalf("expected slug jane, got %q", page.Slug)
	}
	if page.Title != "Jane Doe" {
		t.Fatalf("expected display name title, got %q", page.Title)
	}
	if page.ImageRef != "headshots/jane.jpg" {
		t.Fatalf("expected owner headshot, got %q", page.ImageRef)
	}
	if page.Status != pages.StatusPublished {
		t.Fatalf("expected published status, got %q", page.Status)
	}
	if page.ViewCount != 0 || page.ConversionCount != 0 {
		t.Fatalf("expected zero counters")
	}
	if dir.calls.Load() == 0 {
		t.Fatalf("expected directory to be consulted")
	}
}

func TestGenerateAppendsOwnerIDWhenSlugHeldByAnotherOwner(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)
	ctx := context.Background()

	if _, err := gen.Generate(ctx, Request{TemplateType: registry.BioLink, OwnerID: 1}); err != nil {
		t.Fatalf("first Generate returned error: %v", err)
	}

	page, err := gen.Generate(ctx, Request{TemplateType: registry.BioLink, OwnerID: 99})
	if err != nil {
		t.Fatalf("second Generate returned error: %v", err)
	}
	if page.Slug != "jane99" {
		t.Fatalf("expected slug jane99, got %q", page.Slug)
	}
}

func TestGenerateRejectsSecondLivePageForSingletonTemplate(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)
	ctx := context.Background()

	if _, err := gen.Generate(ctx, Request{TemplateType: registry.BioLink, OwnerID: 1}); err != nil {
		t.Fatalf("first Generate returned error: %v", err)
	}

	_, err := gen.Generate(ctx, Request{TemplateType: registry.BioLink, OwnerID: 1, SlugSeed: "Jane Two"})
	if !eris.Is(err, pages.ErrDuplicatePage) {
		t.Fatalf("expected ErrDuplicatePage, got %v", err)
	}
}

func TestGenerateConcurrentSingletonCreatesExactlyOnePage(t *testing.T) {
	t.Parallel()

	gen, repo, _ := setupGenerator(t)
	ctx := context.Background()

	const attempts = 4
	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		duplicates atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.Generate(ctx, Request{TemplateType: registry.BioLink, OwnerID: 1})
			switch {
			case err == nil:
				successes.Add(1)
			case eris.Is(err, pages.ErrDuplicatePage):
				duplicates.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 || duplicates.Load() != attempts-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d/%d", attempts-1, successes.Load(), duplicates.Load())
	}

	_, total, err := repo.List(ctx, pages.Filter{OwnerID: 1}, 0, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly one stored page, got %d", total)
	}
}

func TestGenerateTrashedPageAllowsRegeneration(t *testing.T) {
	t.Parallel()

	gen, repo, _ := setupGenerator(t)
	ctx := context.Background()

	first, err := gen.Generate(ctx, Request{TemplateType: registry.BioLink, OwnerID: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if _, err := repo.Trash(ctx, first.ID); err != nil {
		t.Fatalf("Trash returned error: %v", err)
	}

	second, err := gen.Generate(ctx, Request{TemplateType: registry.BioLink, OwnerID: 1})
	if err != nil {
		t.Fatalf("regenerate returned error: %v", err)
	}
	if second.Slug != "jane" {
		t.Fatalf("expected released slug to be reused, got %q", second.Slug)
	}
}

func TestGenerateOpenHouse(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)

	page, err := gen.Generate(context.Background(), Request{
		TemplateType:     registry.OpenHouse,
		OwnerID:          1,
		CoBrandPartnerID: 2,
		PropertyData:     &pages.PropertyData{Address: "12 Oak St", Price: 450000, Beds: 3},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if page.Slug != "12-oak-st" {
		t.Fatalf("expected slug from address, got %q", page.Slug)
	}
	if page.Title != "12 Oak St" {
		t.Fatalf("expected address title, got %q", page.Title)
	}
	if page.CoBrandPartnerID == nil || *page.CoBrandPartnerID != 2 {
		t.Fatalf("expected partner 2, got %v", page.CoBrandPartnerID)
	}
	if page.Property().Price != 450000 {
		t.Fatalf("expected property data to be stored, got %+v", page.Property())
	}
	if page.SingletonKey != nil {
		t.Fatalf("expected repeatable template to have no singleton key")
	}
}

func TestGeneratePreQualCoBrandSlug(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)
	ctx := context.Background()

	page, err := gen.Generate(ctx, Request{TemplateType: registry.PreQual, OwnerID: 1, CoBrandPartnerID: 2})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if page.Slug != "jane-bob" {
		t.Fatalf("expected slug jane-bob, got %q", page.Slug)
	}
	if page.Title != "Jane Doe & Bob Realtor" {
		t.Fatalf("unexpected title %q", page.Title)
	}

	_, err = gen.Generate(ctx, Request{TemplateType: registry.PreQual, OwnerID: 1, CoBrandPartnerID: 2})
	if !eris.Is(err, pages.ErrDuplicatePage) {
		t.Fatalf("expected ErrDuplicatePage for repeated pair, got %v", err)
	}
}

func TestGenerateValidationOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		req   Request
		err   error
		field string
	}{
		{
			name:  "unknown template wins over everything",
			req:   Request{TemplateType: "brochure", OwnerID: 404},
			err:   pages.ErrUnknownTemplate,
			field: "templateType",
		},
		{
			name:  "owner checked before partner",
			req:   Request{TemplateType: registry.OpenHouse, OwnerID: 404},
			err:   pages.ErrOwnerNotFound,
			field: "ownerId",
		},
		{
			name:  "no owner or creator",
			req:   Request{TemplateType: registry.BioLink},
			err:   pages.ErrOwnerNotFound,
			field: "ownerId",
		},
		{
			name:  "partner checked before property data",
			req:   Request{TemplateType: registry.OpenHouse, OwnerID: 1},
			err:   pages.ErrMissingPartner,
			field: "coBrandPartnerId",
		},
		{
			name:  "unknown partner",
			req:   Request{TemplateType: registry.PreQual, OwnerID: 1, CoBrandPartnerID: 404},
			err:   pages.ErrMissingPartner,
			field: "coBrandPartnerId",
		},
		{
			name:  "partner forbidden on solo template",
			req:   Request{TemplateType: registry.BioLink, OwnerID: 1, CoBrandPartnerID: 2},
			err:   pages.ErrMissingPartner,
			field: "coBrandPartnerId",
		},
		{
			name:  "property address required",
			req:   Request{TemplateType: registry.OpenHouse, OwnerID: 1, CoBrandPartnerID: 2, PropertyData: &pages.PropertyData{Address: "  "}},
			err:   pages.ErrMissingPropertyData,
			field: "propertyData.address",
		},
		{
			name:  "portal company name required",
			req:   Request{TemplateType: registry.PartnerPortal, OwnerID: 1},
			err:   pages.ErrMissingCompanyName,
			field: "companyName",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gen, _, _ := setupGenerator(t)

			_, err := gen.Generate(context.Background(), tc.req)
			if !eris.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if !pages.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if field := pages.FieldOf(err); field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, field)
			}
		})
	}
}

func TestGenerateResolvesOwnerFromCreator(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)
	ctx := context.Background()

	// Bob is a realtor assigned to Jane.
	page, err := gen.Generate(ctx, Request{TemplateType: registry.Calculator, CreatorID: 2})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if page.OwnerID != 1 {
		t.Fatalf("expected assigned loan officer to own the page, got %d", page.OwnerID)
	}

	page, err = gen.Generate(ctx, Request{TemplateType: registry.Calculator, CreatorID: 3})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if page.OwnerID != 3 {
		t.Fatalf("expected creator to own the page, got %d", page.OwnerID)
	}
}

func TestGeneratePortalAssignsOwnerAsLoanOfficer(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)

	page, err := gen.Generate(context.Background(), Request{
		TemplateType: registry.PartnerPortal,
		OwnerID:      1,
		CompanyName:  "Acme Realty",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if page.Slug != "acme-realty" || page.Title != "Acme Realty" || page.CompanyName != "Acme Realty" {
		t.Fatalf("unexpected portal page: slug=%q title=%q company=%q", page.Slug, page.Title, page.CompanyName)
	}
	if officers := page.LoanOfficers(); len(officers) != 1 || officers[0] != 1 {
		t.Fatalf("expected owner as loan officer, got %v", officers)
	}
}

func TestGenerateLinksCompanyPortal(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)
	ctx := context.Background()

	portal, err := gen.Generate(ctx, Request{TemplateType: registry.PartnerPortal, OwnerID: 1, CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("Generate portal returned error: %v", err)
	}

	page, err := gen.Generate(ctx, Request{TemplateType: registry.Valuation, OwnerID: 1, CompanyID: portal.ID})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if page.CompanyID == nil || *page.CompanyID != portal.ID {
		t.Fatalf("expected company link, got %v", page.CompanyID)
	}

	_, err = gen.Generate(ctx, Request{TemplateType: registry.MortgageRateQuote, OwnerID: 1, CompanyID: "missing"})
	if !eris.Is(err, pages.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown company, got %v", err)
	}
}

func TestGenerateWithoutHeadshotStillSucceeds(t *testing.T) {
	t.Parallel()

	gen, _, _ := setupGenerator(t)

	page, err := gen.Generate(context.Background(), Request{TemplateType: registry.BioLink, OwnerID: 3, Status: pages.StatusDraft})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if page.ImageRef != "" {
		t.Fatalf("expected empty image, got %q", page.ImageRef)
	}
	if page.Status != pages.StatusDraft {
		t.Fatalf("expected draft status, got %q", page.Status)
	}
}

func TestGenerateAppliesDirectoryTimeout(t *testing.T) {
	t.Parallel()

	gen, _, dir := setupGenerator(t)
	gen.timeout = 20 * time.Millisecond
	dir.delay = time.Second

	_, err := gen.Generate(context.Background(), Request{TemplateType: registry.BioLink, OwnerID: 1})
	if !eris.Is(err, pages.ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound on slow directory, got %v", err)
	}
}

type stubDirectory struct {
	profiles map[int64]directory.Profile
	delay    time.Duration
	calls    atomic.Int32
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{profiles: map[int64]directory.Profile{
		1:  {UserID: 1, FirstName: "Jane", LastName: "Doe", HeadshotRef: "headshots/jane.jpg"},
		2:  {UserID: 2, FirstName: "Bob", LastName: "Realtor", AssignedLoanOfficerID: 1},
		3:  {UserID: 3, FirstName: "Sam", LastName: "Solo"},
		99: {UserID: 99, FirstName: "Jane", LastName: "Other"},
	}}
}

func (d *stubDirectory) GetProfile(ctx context.Context, userID int64) (directory.Profile, error) {
	d.calls.Add(1)
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return directory.Profile{}, eris.Wrap(ctx.Err(), "profile lookup")
		}
	}
	profile, ok := d.profiles[userID]
	if !ok {
		return directory.Profile{}, directory.ErrProfileNotFound
	}
	return profile, nil
}

func (d *stubDirectory) IsAdministrator(context.Context, int64) (bool, error) {
	return false, nil
}

func (d *stubDirectory) IsGroupMember(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func setupGenerator(t *testing.T) (*Generator, *pages.GormRepository, *stubDirectory) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pages.db")
	database, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(database)
	})

	logger := silentLogger()
	if err := pages.Migrate(context.Background(), database, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := pages.NewRepository(database, logger)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	dir := newStubDirectory()
	gen, err := New(Options{
		Registry:   registry.Default(),
		Repository: repo,
		Directory:  dir,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	return gen, repo, dir
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
