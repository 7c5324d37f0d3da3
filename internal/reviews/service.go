package reviews

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/soundcrate/backend/pkg/db"
	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/outbox"
	"github.com/soundcrate/backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type purchaseChecker interface {
	HasCompletedPurchase(ctx context.Context, buyerID, productID uuid.UUID) (bool, error)
}

// CreateInput is a rating, optionally with a comment, from a buyer.
type CreateInput struct {
	ProductID uuid.UUID
	AuthorID  uuid.UUID
	Rating    int
	Comment   string
}

// Service defines review operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.Review, error)
}

type service struct {
	repo      Repository
	products  productLoader
	purchases purchaseChecker
	tx        txRunner
	outbox    outboxPublisher
}

// NewService wires review dependencies.
func NewService(repo Repository, products productLoader, purchases purchaseChecker, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reviews repository required")
	}
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product loader required")
	}
	if purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchase checker required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{
		repo:      repo,
		products:  products,
		purchases: purchases,
		tx:        tx,
		outbox:    publisher,
	}, nil
}

// Create stores the review and queues the creator-facing events. One review
// per (product, author) pair; only buyers with a completed purchase may rate.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Review, error) {
	if input.AuthorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "author identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.CreatorID == input.AuthorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creators cannot review their own products")
	}

	purchased, err := s.purchases.HasCompletedPurchase(ctx, input.AuthorID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
	}
	if !purchased {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can review a product")
	}

	review := &models.Review{
		ID:        uuid.New(),
		ProductID: input.ProductID,
		AuthorID:  input.AuthorID,
		Rating:    input.Rating,
	}
	comment := strings.TrimSpace(input.Comment)
	if comment != "" {
		review.Comment = &comment
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByProductAndAuthor(ctx, input.ProductID, input.AuthorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
		}

		if err := repo.Create(ctx, review); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_reviews_product_author") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}

		now := time.Now().UTC()
		ratingEvent := outbox.DomainEvent{
			EventType:     enums.EventRatingReceived,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         &outbox.ActorRef{UserID: input.AuthorID},
			Version:       1,
			OccurredAt:    now,
			Data: payloads.RatingReceivedEvent{
				ReviewID:  review.ID,
				ProductID: product.ID,
				CreatorID: product.CreatorID,
				AuthorID:  input.AuthorID,
				Rating:    input.Rating,
			},
		}
		if err := s.outbox.Emit(ctx, tx, ratingEvent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue rating event")
		}

		if review.Comment != nil {
			commentEvent := outbox.DomainEvent{
				EventType:     enums.EventCommentReceived,
				AggregateType: enums.AggregateReview,
				AggregateID:   review.ID,
				Actor:         &outbox.ActorRef{UserID: input.AuthorID},
				Version:       1,
				OccurredAt:    now,
				Data: payloads.CommentReceivedEvent{
					ReviewID:  review.ID,
					ProductID: product.ID,
					CreatorID: product.CreatorID,
					AuthorID:  input.AuthorID,
					Comment:   *review.Comment,
				},
			}
			if err := s.outbox.Emit(ctx, tx, commentEvent); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue comment event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.Review, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	rows, err := s.repo.ListByProduct(ctx, productID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return rows, nil
}
