package catalog

import (
	"context"
	"strings"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
)

// Classification binds a content key to its owning product and access class.
type Classification struct {
	Product *models.Product
	Class   enums.KeyClass
	Key     string
}

// Service resolves content keys to their product and key class.
type Service interface {
	Classify(ctx context.Context, key string) (*Classification, error)
}

type service struct {
	repo Repository
}

// NewService wires catalog dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Classify(ctx context.Context, key string) (*Classification, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content key required")
	}

	rows, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up content key")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}

	// Public classes win when a key is cataloged twice, so corrupted data
	// can never force an entitlement check onto a public file.
	chosen := rows[0]
	for _, row := range rows[1:] {
		if row.Class.IsPublic() && !chosen.Class.IsPublic() {
			chosen = row
		}
	}

	product, err := s.repo.FindProduct(ctx, chosen.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for key")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}

	return &Classification{
		Product: product,
		Class:   chosen.Class,
		Key:     key,
	}, nil
}
