package access

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagegen/app/internal/directory"
	"pagegen/app/internal/pages"
)

// Grant names the rule that allowed a viewer in.
type Grant string

const (
	GrantAdministrator Grant = "administrator"
	GrantOwner         Grant = "owner"
	GrantLoanOfficer   Grant = "assigned_loan_officer"
	GrantGroupMember   Grant = "group_member"
	GrantRealtor       Grant = "manual_realtor"
)

// Context is the input every predicate evaluates.
type Context struct {
	Page     *pages.Page
	ViewerID int64
}

// Predicate is a single access rule. Errors deny.
type Predicate struct {
	Grant Grant
	Match func(ctx context.Context, in Context) (bool, error)
}

// Resolver evaluates predicates in order; the first match wins.
type Resolver struct {
	directory  directory.Directory
	predicates []Predicate
	logger     *logrus.Logger
}

// NewResolver builds the resolver with the standard rule chain.
func NewResolver(dir directory.Directory, logger *logrus.Logger) (*Resolver, error) {
	if dir == nil {
		return nil, eris.New("profile directory is required")
	}

	return &Resolver{
		directory: dir,
		logger:    logger,
		predicates: []Predicate{
			AdministratorPredicate(dir),
			OwnerPredicate(),
			LoanOfficerPredicate(),
			GroupMemberPredicate(dir),
			RealtorPredicate(),
		},
	}, nil
}

// CanAccess reports whether the viewer may see the page.
func (r *Resolver) CanAccess(ctx context.Context, page *pages.Page, viewerID int64) bool {
	_, ok := r.Explain(ctx, page, viewerID)
	return ok
}

// Explain returns the first grant matching the viewer.
func (r *Resolver) Explain(ctx context.Context, page *pages.Page, viewerID int64) (Grant, bool) {
	if page == nil || viewerID <= 0 {
		return "", false
	}

	in := Context{Page: page, ViewerID: viewerID}
	for _, predicate := range r.predicates {
		ok, err := predicate.Match(ctx, in)
		if err != nil {
			r.logDenied(predicate.Grant, in, err)
			continue
		}
		if ok {
			return predicate.Grant, true
		}
	}

	return "", false
}

// CanManageCompany reports whether the actor may administer the portal: administrators and assigned loan officers only.
func (r *Resolver) CanManageCompany(ctx context.Context, portal *pages.Page, actorID int64) bool {
	if portal == nil || !portal.IsPortal() || actorID <= 0 {
		return false
	}
	if r.IsAdministrator(ctx, actorID) {
		return true
	}
	return pages.ContainsID(portal.LoanOfficers(), actorID)
}

// IsAdministrator reports whether the viewer is a site administrator. Lookup failures deny.
func (r *Resolver) IsAdministrator(ctx context.Context, viewerID int64) bool {
	if viewerID <= 0 {
		return false
	}
	ok, err := r.directory.IsAdministrator(ctx, viewerID)
	if err != nil {
		r.logDenied(GrantAdministrator, Context{ViewerID: viewerID}, err)
		return false
	}
	return ok
}

func (r *Resolver) logDenied(grant Grant, in Context, err error) {
	if r.logger == nil {
		return
	}
	fields := logrus.Fields{"grant": grant, "viewer_id": in.ViewerID, "error": err.Error()}
	if in.Page != nil {
		fields["page_id"] = in.Page.ID
	}
	r.logger.WithFields(fields).Warn("access predicate failed, denying")
}
