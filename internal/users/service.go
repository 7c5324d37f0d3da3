package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundcrate/backend/pkg/db/models"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
)

// Service defines identity resolution operations.
type Service interface {
	// Resolve returns the local user for an external account, creating the
	// row on first authenticated interaction.
	Resolve(ctx context.Context, accountID string) (*models.User, error)
	// Lookup returns the local user for an external account without
	// creating one.
	Lookup(ctx context.Context, accountID string) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	// Profile returns the user together with the attributes derived from
	// other tables, such as the creator flag.
	Profile(ctx context.Context, id uuid.UUID) (*Profile, error)
}

// AuthorshipCounter answers how many products a user has authored. The
// creator flag is derived from it, never stored.
type AuthorshipCounter interface {
	CountByCreator(ctx context.Context, creatorID uuid.UUID) (int64, error)
}

// Profile is a user row plus its derived attributes.
type Profile struct {
	models.User
	IsCreator bool
}

type service struct {
	repo       Repository
	authorship AuthorshipCounter
}

// NewService wires users dependencies.
func NewService(repo Repository, authorship AuthorshipCounter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if authorship == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "authorship counter required")
	}
	return &service{repo: repo, authorship: authorship}, nil
}

func (s *service) Resolve(ctx context.Context, accountID string) (*models.User, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}

	existing, err := s.repo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user by account")
	}
	if existing != nil {
		_ = s.repo.TouchLastSeen(ctx, existing.ID, time.Now().UTC())
		return existing, nil
	}

	user := &models.User{
		ID:          uuid.New(),
		AccountID:   accountID,
		DisplayName: accountID,
		IsActive:    true,
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	// Re-read in case a concurrent request won the insert race.
	created, err := s.repo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload user")
	}
	if created == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user missing after upsert")
	}
	return created, nil
}

func (s *service) Lookup(ctx context.Context, accountID string) (*models.User, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	user, err := s.repo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user by account")
	}
	return user, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (s *service) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	authored, err := s.authorship.CountByCreator(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count authored products")
	}
	return &Profile{User: *user, IsCreator: authored > 0}, nil
}
