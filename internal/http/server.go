package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pagegen/app/internal/assets"
	"pagegen/app/internal/branding"
	"pagegen/app/internal/directory"
	"pagegen/app/internal/events"
	"pagegen/app/internal/generator"
	"pagegen/app/internal/listing"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

// PageGenerator creates landing pages.
type PageGenerator interface {
	Generate(ctx context.Context, req generator.Request) (*pages.Page, error)
}

// PageQueries answers read queries over pages.
type PageQueries interface {
	GetPage(ctx context.Context, pageID string, viewerID int64) (listing.Summary, error)
	ListForOwner(ctx context.Context, ownerID int64, params listing.PageParams) (listing.Result, error)
	ListForPartner(ctx context.Context, partnerID int64, params listing.PageParams) (listing.Result, error)
	ListForCompany(ctx context.Context, companyID string, viewerID int64, params listing.PageParams) (listing.Result, error)
	ListCompanies(ctx context.Context, viewerID int64, params listing.PageParams) (listing.Result, error)
	Summarize(ctx context.Context, page *pages.Page) (listing.Summary, error)
}

// CompanyManager mutates partner portals and trashes pages.
type CompanyManager interface {
	UpdateBranding(ctx context.Context, companyID string, actorID int64, overrides branding.Overrides) (*pages.Page, error)
	AssignLoanOfficers(ctx context.Context, companyID string, actorID int64, loanOfficerIDs []int64) (*pages.Page, error)
	SetGroup(ctx context.Context, companyID string, actorID int64, groupID int64) (*pages.Page, error)
	AddRealtors(ctx context.Context, companyID string, actorID int64, realtorIDs []int64) (*pages.Page, error)
	RemoveRealtors(ctx context.Context, companyID string, actorID int64, realtorIDs []int64) (*pages.Page, error)
	Trash(ctx context.Context, pageID string, actorID int64) (*pages.Page, error)
}

// Counters records page views and conversions.
type Counters interface {
	RecordView(ctx context.Context, pageID string) (int64, error)
	RecordConversion(ctx context.Context, pageID string) (int64, error)
}

// AccessResolver answers visibility and management questions.
type AccessResolver interface {
	CanAccess(ctx context.Context, page *pages.Page, viewerID int64) bool
	CanManageCompany(ctx context.Context, portal *pages.Page, actorID int64) bool
	IsAdministrator(ctx context.Context, viewerID int64) bool
}

// EventSink receives events delivered over webhooks.
type EventSink interface {
	LeadCaptured(ctx context.Context, event events.LeadCaptured) error
	ProfileImageChanged(ctx context.Context, event events.ProfileImageChanged) error
}

// Options configures the HTTP server wiring.
type Options struct {
	Generator     PageGenerator
	Listing       PageQueries
	Management    CompanyManager
	Counters      Counters
	Access        AccessResolver
	Events        EventSink
	Repository    pages.Repository
	Directory     directory.Directory
	Registry      *registry.Registry
	Assets        assets.Store
	Branding      branding.Defaults
	PublicBaseURL string
	Auth          AuthSettings
	WebhookSecret string
	Database      *gorm.DB
	Logger        *logrus.Logger
	SentryHub     *sentry.Hub
	RateLimiter   RateLimiterSettings
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma and templ components.
type Server struct {
	api           huma.API
	mux           *stdhttp.ServeMux
	generator     PageGenerator
	listing       PageQueries
	management    CompanyManager
	counters      Counters
	access        AccessResolver
	events        EventSink
	repository    pages.Repository
	directory     directory.Directory
	registry      *registry.Registry
	assets        assets.Store
	branding      branding.Defaults
	baseURL       string
	auth          *authenticator
	webhookSecret string
	logger        *logrus.Logger
	sentry        *sentry.Hub
	db            *gorm.DB
	rateLimiter   *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Generator == nil:
		return nil, eris.New("page generator is required")
	case opts.Listing == nil:
		return nil, eris.New("listing service is required")
	case opts.Management == nil:
		return nil, eris.New("management service is required")
	case opts.Counters == nil:
		return nil, eris.New("analytics counters are required")
	case opts.Access == nil:
		return nil, eris.New("access resolver is required")
	case opts.Events == nil:
		return nil, eris.New("event sink is required")
	case opts.Repository == nil:
		return nil, eris.New("page repository is required")
	case opts.Directory == nil:
		return nil, eris.New("profile directory is required")
	case opts.Registry == nil:
		return nil, eris.New("template registry is required")
	case opts.Database == nil:
		return nil, eris.New("database is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Landing Pages", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:           api,
		mux:           mux,
		generator:     opts.Generator,
		listing:       opts.Listing,
		management:    opts.Management,
		counters:      opts.Counters,
		access:        opts.Access,
		events:        opts.Events,
		repository:    opts.Repository,
		directory:     opts.Directory,
		registry:      opts.Registry,
		assets:        opts.Assets,
		branding:      opts.Branding,
		baseURL:       opts.PublicBaseURL,
		auth:          newAuthenticator(opts.Auth),
		webhookSecret: opts.WebhookSecret,
		logger:        opts.Logger,
		sentry:        opts.SentryHub,
		db:            opts.Database,
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	if !srv.auth.enabled() && srv.logger != nil {
		srv.logger.Warn("JWT secret not configured; every request is served anonymously")
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.authMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerPageRoutes()
	s.registerListingRoutes()
	s.registerCompanyRoutes()
	s.registerEventRoutes()
	s.registerTemplatesRoute()
	s.registerHealthRoute()
	s.registerLandingRoutes()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
