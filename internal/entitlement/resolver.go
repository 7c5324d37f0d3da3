package entitlement

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
)

// DenyReason explains an access denial without leaking detail to clients.
type DenyReason string

const (
	DenyUnauthenticated DenyReason = "unauthenticated"
	DenyUnknownUser     DenyReason = "unknown_user"
	DenyNotPurchased    DenyReason = "not_purchased"
)

// Decision is the resolver output: either granted, or denied with a reason.
type Decision struct {
	Granted bool
	Reason  DenyReason
	User    *models.User
}

// UserLookup resolves external account identifiers to local users.
type UserLookup interface {
	FindByAccountID(ctx context.Context, accountID string) (*models.User, error)
}

// PurchaseChecker answers whether a buyer holds a completed purchase
// containing the product.
type PurchaseChecker interface {
	HasCompletedPurchase(ctx context.Context, buyerID, productID uuid.UUID) (bool, error)
}

// Resolver decides whether a caller may access a product's content key.
type Resolver interface {
	Authorize(ctx context.Context, accountID string, product *models.Product, class enums.KeyClass) (*Decision, error)
}

type resolver struct {
	users     UserLookup
	purchases PurchaseChecker
}

// NewResolver wires entitlement dependencies.
func NewResolver(users UserLookup, purchases PurchaseChecker) (Resolver, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user lookup required")
	}
	if purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchase checker required")
	}
	return &resolver{users: users, purchases: purchases}, nil
}

// Authorize applies the access rules in a fixed order: public classes are
// always granted, protected classes require a resolved user, creators get
// self-access before any purchase lookup, and everyone else needs a
// completed purchase containing the product.
func (r *resolver) Authorize(ctx context.Context, accountID string, product *models.Product, class enums.KeyClass) (*Decision, error) {
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product required")
	}
	if !class.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid key class")
	}

	if class.IsPublic() {
		return &Decision{Granted: true}, nil
	}

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return &Decision{Granted: false, Reason: DenyUnauthenticated}, nil
	}

	user, err := r.users.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve account")
	}
	if user == nil {
		return &Decision{Granted: false, Reason: DenyUnknownUser}, nil
	}

	if user.ID == product.CreatorID {
		return &Decision{Granted: true, User: user}, nil
	}

	purchased, err := r.purchases.HasCompletedPurchase(ctx, user.ID, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
	}
	if !purchased {
		return &Decision{Granted: false, Reason: DenyNotPurchased, User: user}, nil
	}
	return &Decision{Granted: true, User: user}, nil
}
