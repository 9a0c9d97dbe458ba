package access

import (
	"context"

	"pagegen/app/internal/directory"
	"pagegen/app/internal/pages"
)

// AdministratorPredicate grants site administrators access to every page.
func AdministratorPredicate(dir directory.Directory) Predicate {
	return Predicate{
		Grant: GrantAdministrator,
		Match: func(ctx context.Context, in Context) (bool, error) {
			return dir.IsAdministrator(ctx, in.ViewerID)
		},
	}
}

// OwnerPredicate grants the page owner access.
func OwnerPredicate() Predicate {
	return Predicate{
		Grant: GrantOwner,
		Match: func(_ context.Context, in Context) (bool, error) {
			return in.Page.OwnerID == in.ViewerID, nil
		},
	}
}

// LoanOfficerPredicate grants loan officers assigned to a portal.
func LoanOfficerPredicate() Predicate {
	return Predicate{
		Grant: GrantLoanOfficer,
		Match: func(_ context.Context, in Context) (bool, error) {
			if !in.Page.IsPortal() {
				return false, nil
			}
			return pages.ContainsID(in.Page.LoanOfficers(), in.ViewerID), nil
		},
	}
}

// GroupMemberPredicate grants members of the portal's group.
func GroupMemberPredicate(dir directory.Directory) Predicate {
	return Predicate{
		Grant: GrantGroupMember,
		Match: func(ctx context.Context, in Context) (bool, error) {
			if !in.Page.IsPortal() || in.Page.GroupID == nil || *in.Page.GroupID <= 0 {
				return false, nil
			}
			return dir.IsGroupMember(ctx, *in.Page.GroupID, in.ViewerID)
		},
	}
}

// RealtorPredicate grants realtors added to the portal by hand.
func RealtorPredicate() Predicate {
	return Predicate{
		Grant: GrantRealtor,
		Match: func(_ context.Context, in Context) (bool, error) {
			if !in.Page.IsPortal() {
				return false, nil
			}
			return pages.ContainsID(in.Page.Realtors(), in.ViewerID), nil
		},
	}
}
