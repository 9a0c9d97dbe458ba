package listing

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/access"
	"pagegen/app/internal/db"
	"pagegen/app/internal/directory"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

const (
	adminID   = int64(1000)
	ownerID   = int64(1)
	partnerID = int64(2)
	realtorID = int64(3)
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewService(Options{}); err == nil {
		t.Fatalf("expected error when repository is missing")
	}
}

func TestListForOwnerOrdersNewestFirstAndSkipsTrash(t *testing.T) {
	t.Parallel()

	env := setupListing(t)
	ctx := context.Background()

	older := env.create(t, &pages.Page{TemplateType: registry.BioLink, Slug: "jane", OwnerID: ownerID}, 3*time.Hour)
	newer := env.create(t, &pages.Page{TemplateType: registry.Calculator, Slug: "jane", OwnerID: ownerID}, time.Hour)
	trashed := env.create(t, &pages.Page{TemplateType: registry.Valuation, Slug: "jane", OwnerID: ownerID}, 2*time.Hour)
	env.create(t, &pages.Page{TemplateType: registry.BioLink, Slug: "other", OwnerID: 77}, 0)

	if _, err := env.repo.Trash(ctx, trashed.ID); err != nil {
		t.Fatalf("Trash returned error: %v", err)
	}

	result, err := env.service.ListForOwner(ctx, ownerID, PageParams{})
	if err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}

	if got := ids(result.Items); len(got) != 2 || got[0] != newer.ID || got[1] != older.ID {
		t.Fatalf("expected [newer older], got %v", got)
	}
	if result.PageInfo != (PageInfo{Page: 1, PerPage: DefaultPerPage, Total: 2, TotalPages: 1}) {
		t.Fatalf("unexpected page info %+v", result.PageInfo)
	}
	if result.Items[0].URL != "https://pages.example.com/calculator/jane" {
		t.Fatalf("unexpected url %q", result.Items[0].URL)
	}
}

func TestListForOwnerPaginates(t *testing.T) {
	t.Parallel()

	env := setupListing(t)
	ctx := context.Background()

	templates := []registry.TemplateType{registry.BioLink, registry.Calculator, registry.Valuation, registry.MortgageRateQuote, registry.MortgageLoanApp}
	for i, tpl := range templates {
		env.create(t, &pages.Page{TemplateType: tpl, Slug: "jane", OwnerID: ownerID}, time.Duration(len(templates)-i)*time.Minute)
	}

	result, err := env.service.ListForOwner(ctx, ownerID, PageParams{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}

	if len(result.Items) != 2 || result.Items[0].TemplateType != registry.Valuation || result.Items[1].TemplateType != registry.Calculator {
		t.Fatalf("unexpected second page %+v", result.Items)
	}
	if result.PageInfo.Total != 5 || result.PageInfo.TotalPages != 3 {
		t.Fatalf("unexpected page info %+v", result.PageInfo)
	}

	beyond, err := env.service.ListForOwner(ctx, ownerID, PageParams{Page: 9, PerPage: 2})
	if err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}
	if beyond.Items == nil || len(beyond.Items) != 0 {
		t.Fatalf("expected empty page past the end, got %v", beyond.Items)
	}
}

func TestListEmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	env := setupListing(t)

	result, err := env.service.ListForPartner(context.Background(), 404, PageParams{PerPage: 500})
	if err != nil {
		t.Fatalf("ListForPartner returned error: %v", err)
	}
	if result.Items == nil || len(result.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %v", result.Items)
	}
	if result.PageInfo.PerPage != MaxPerPage {
		t.Fatalf("expected per page to be capped at %d, got %d", MaxPerPage, result.PageInfo.PerPage)
	}
}

func TestListForPartnerFiltersByCoBrand(t *testing.T) {
	t.Parallel()

	env := setupListing(t)
	partner := partnerID

	cobranded := env.create(t, &pages.Page{TemplateType: registry.PreQual, Slug: "jane-bob", OwnerID: ownerID, CoBrandPartnerID: &partner}, 0)
	env.create(t, &pages.Page{TemplateType: registry.BioLink, Slug: "jane", OwnerID: ownerID}, 0)

	result, err := env.service.ListForPartner(context.Background(), partnerID, PageParams{})
	if err != nil {
		t.Fatalf("ListForPartner returned error: %v", err)
	}
	if got := ids(result.Items); len(got) != 1 || got[0] != cobranded.ID {
		t.Fatalf("expected only the co-branded page, got %v", got)
	}
}

func TestListForCompanyRespectsPortalAccess(t *testing.T) {
	t.Parallel()

	env := setupListing(t)
	ctx := context.Background()

	portal := &pages.Page{TemplateType: registry.PartnerPortal, Slug: "acme", OwnerID: ownerID, CompanyName: "Acme"}
	portal.SetLoanOfficers([]int64{ownerID})
	portal.SetRealtors([]int64{realtorID})
	env.create(t, portal, 0)

	companyID := portal.ID
	linked := env.create(t, &pages.Page{TemplateType: registry.Valuation, Slug: "jane", OwnerID: ownerID, CompanyID: &companyID}, 0)

	for _, viewer := range []int64{ownerID, realtorID, adminID} {
		result, err := env.service.ListForCompany(ctx, portal.ID, viewer, PageParams{})
		if err != nil {
			t.Fatalf("ListForCompany returned error: %v", err)
		}
		if got := ids(result.Items); len(got) != 1 || got[0] != linked.ID {
			t.Fatalf("viewer %d: expected linked page, got %v", viewer, got)
		}
	}

	for _, viewer := range []int64{0, 55} {
		result, err := env.service.ListForCompany(ctx, portal.ID, viewer, PageParams{})
		if err != nil {
			t.Fatalf("ListForCompany returned error: %v", err)
		}
		if len(result.Items) != 0 {
			t.Fatalf("viewer %d: expected empty list, got %v", viewer, ids(result.Items))
		}
	}

	missing, err := env.service.ListForCompany(ctx, "missing", adminID, PageParams{})
	if err != nil || len(missing.Items) != 0 {
		t.Fatalf("expected empty list for unknown company, got %v (%v)", missing.Items, err)
	}
}

func TestListCompaniesFiltersByAccess(t *testing.T) {
	t.Parallel()

	env := setupListing(t)
	ctx := context.Background()

	visible := &pages.Page{TemplateType: registry.PartnerPortal, Slug: "acme", OwnerID: ownerID, CompanyName: "Acme"}
	visible.SetRealtors([]int64{realtorID})
	env.create(t, visible, 0)
	env.create(t, &pages.Page{TemplateType: registry.PartnerPortal, Slug: "globex", OwnerID: 77, CompanyName: "Globex"}, 0)

	result, err := env.service.ListCompanies(ctx, realtorID, PageParams{})
	if err != nil {
		t.Fatalf("ListCompanies returned error: %v", err)
	}
	if got := ids(result.Items); len(got) != 1 || got[0] != visible.ID {
		t.Fatalf("expected only acme for realtor, got %v", got)
	}

	all, err := env.service.ListCompanies(ctx, adminID, PageParams{})
	if err != nil {
		t.Fatalf("ListCompanies returned error: %v", err)
	}
	if all.PageInfo.Total != 2 {
		t.Fatalf("expected admin to see both portals, got %d", all.PageInfo.Total)
	}

	anonymous, err := env.service.ListCompanies(ctx, 0, PageParams{})
	if err != nil || len(anonymous.Items) != 0 {
		t.Fatalf("expected anonymous viewer to see nothing, got %v (%v)", anonymous.Items, err)
	}
}

func TestGetPageHidesExistenceFromNonAdministrators(t *testing.T) {
	t.Parallel()

	env := setupListing(t)
	ctx := context.Background()

	page := env.create(t, &pages.Page{TemplateType: registry.BioLink, Slug: "jane", OwnerID: ownerID}, 0)

	summary, err := env.service.GetPage(ctx, page.ID, ownerID)
	if err != nil {
		t.Fatalf("GetPage returned error: %v", err)
	}
	if summary.ID != page.ID {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if _, err := env.service.GetPage(ctx, page.ID, 55); !eris.Is(err, pages.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
	if _, err := env.service.GetPage(ctx, "missing", 55); !eris.Is(err, pages.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for missing page and stranger, got %v", err)
	}
	if _, err := env.service.GetPage(ctx, "missing", adminID); !eris.Is(err, pages.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for administrator, got %v", err)
	}
}

func TestSummariesOverlayCounterTotals(t *testing.T) {
	t.Parallel()

	env := setupListing(t)
	page := env.create(t, &pages.Page{TemplateType: registry.BioLink, Slug: "jane", OwnerID: ownerID}, 0)
	env.counters.totals[page.ID] = pages.Totals{Views: 12, Conversions: 3}

	result, err := env.service.ListForOwner(context.Background(), ownerID, PageParams{})
	if err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}
	if result.Items[0].ViewCount != 12 || result.Items[0].ConversionCount != 3 {
		t.Fatalf("expected overlaid counters, got %+v", result.Items[0])
	}
}

func TestNewPageInfo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		params PageParams
		total  int
		want   PageInfo
	}{
		{PageParams{}, 0, PageInfo{Page: 1, PerPage: 20, Total: 0, TotalPages: 1}},
		{PageParams{Page: 2, PerPage: 10}, 25, PageInfo{Page: 2, PerPage: 10, Total: 25, TotalPages: 3}},
		{PageParams{Page: -3, PerPage: 1000}, 150, PageInfo{Page: 1, PerPage: 100, Total: 150, TotalPages: 2}},
	}

	for _, tc := range cases {
		if got := NewPageInfo(tc.params, tc.total); got != tc.want {
			t.Errorf("NewPageInfo(%+v, %d) = %+v, want %+v", tc.params, tc.total, got, tc.want)
		}
	}
}

type listingEnv struct {
	repo     *pages.GormRepository
	service  *Service
	counters *stubCounters
	now      time.Time
}

func (e *listingEnv) create(t *testing.T, page *pages.Page, age time.Duration) *pages.Page {
	t.Helper()

	if page.Status == "" {
		page.Status = pages.StatusPublished
	}
	page.CreatedAt = e.now.Add(-age)
	if err := e.repo.Create(context.Background(), page); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return page
}

type stubCounters struct {
	totals map[string]pages.Totals
}

func (s *stubCounters) Totals(_ context.Context, ids []string) (map[string]pages.Totals, error) {
	out := make(map[string]pages.Totals, len(ids))
	for _, id := range ids {
		if totals, ok := s.totals[id]; ok {
			out[id] = totals
		}
	}
	return out, nil
}

type stubDirectory struct{}

func (stubDirectory) GetProfile(_ context.Context, userID int64) (directory.Profile, error) {
	return directory.Profile{UserID: userID}, nil
}

func (stubDirectory) IsAdministrator(_ context.Context, userID int64) (bool, error) {
	return userID == adminID, nil
}

func (stubDirectory) IsGroupMember(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func setupListing(t *testing.T) *listingEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "listing.db")
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

	resolver, err := access.NewResolver(stubDirectory{}, logger)
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	counters := &stubCounters{totals: map[string]pages.Totals{}}
	service, err := NewService(Options{
		Repository:    repo,
		Registry:      registry.Default(),
		Access:        resolver,
		Counters:      counters,
		PublicBaseURL: "https://pages.example.com/",
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	return &listingEnv{repo: repo, service: service, counters: counters, now: time.Now().UTC()}
}

func ids(items []Summary) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
