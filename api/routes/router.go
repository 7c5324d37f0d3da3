package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundcrate/backend/api/controllers"
	"github.com/soundcrate/backend/api/middleware"
	deliverysvc "github.com/soundcrate/backend/internal/delivery"
	"github.com/soundcrate/backend/internal/notifications"
	"github.com/soundcrate/backend/internal/products"
	"github.com/soundcrate/backend/internal/purchases"
	"github.com/soundcrate/backend/internal/reviews"
	"github.com/soundcrate/backend/internal/users"
	"github.com/soundcrate/backend/pkg/config"
	"github.com/soundcrate/backend/pkg/db"
	"github.com/soundcrate/backend/pkg/logger"
	"github.com/soundcrate/backend/pkg/redis"
	"github.com/soundcrate/backend/pkg/storage/gcs"
)

// identityAdapter narrows the users service to what auth middleware needs.
type identityAdapter struct {
	users users.Service
}

func (a identityAdapter) Resolve(ctx context.Context, accountID string) (string, error) {
	user, err := a.users.Resolve(ctx, accountID)
	if err != nil {
		return "", err
	}
	return user.ID.String(), nil
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	usersService users.Service,
	productsService products.Service,
	purchasesService purchases.Service,
	notificationsService notifications.Service,
	reviewsService reviews.Service,
	deliveryService deliverysvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	resolver := identityAdapter{users: usersService}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, gcsClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Content routes. Files accept an optional identity so the gate can
		// distinguish unauthenticated from unentitled; images are public.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/files/*", controllers.DeliverFile(deliveryService, logg))
		})
		r.Get("/images/*", controllers.DeliverImage(deliveryService, logg))

		// Public catalog browsing.
		r.Get("/products", controllers.ListProducts(productsService, logg))
		r.Get("/products/{productId}", controllers.GetProduct(productsService, logg))
		r.Get("/products/{productId}/reviews", controllers.ListReviews(reviewsService, logg))

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, resolver, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Get("/ping", controllers.PrivatePing())
			r.Get("/users/me", controllers.Me(usersService, logg))
			r.Post("/uploads/*", controllers.UploadFile(deliveryService, logg))

			r.Post("/products", controllers.CreateProduct(productsService, logg))
			r.Patch("/products/{productId}", controllers.UpdateProduct(productsService, logg))
			r.Delete("/products/{productId}", controllers.DeleteProduct(productsService, logg))
			r.Post("/products/{productId}/reviews", controllers.CreateReview(reviewsService, logg))

			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", controllers.ListPurchases(purchasesService, logg))
				r.Post("/", controllers.CreatePurchase(purchasesService, cfg.Purchases.PendingTTL, logg))
				r.Get("/{purchaseId}", controllers.GetPurchase(purchasesService, logg))
				r.Post("/{purchaseId}/confirm", controllers.ConfirmPurchase(purchasesService, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			})
		})
	})

	return r
}
