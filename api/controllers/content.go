package controllers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soundcrate/backend/api/middleware"
	"github.com/soundcrate/backend/api/responses"
	deliverysvc "github.com/soundcrate/backend/internal/delivery"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/logger"
)

// DeliverFile streams a content key through the entitlement gate. Identity
// is optional at the routing layer; the service decides whether the key
// class requires it.
func DeliverFile(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		key := chi.URLParam(r, "*")
		accountID := middleware.AccountIDFromContext(r.Context())

		content, err := svc.DeliverFile(r.Context(), accountID, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		streamContent(r, w, logg, content)
	}
}

// DeliverImage streams public-class keys with no identity requirement.
func DeliverImage(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		key := chi.URLParam(r, "*")
		content, err := svc.DeliverImage(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		streamContent(r, w, logg, content)
	}
}

// UploadFile stores a new blob for the authenticated user and returns the
// key a product can bind afterwards.
func UploadFile(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		uid, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filename := chi.URLParam(r, "*")
		contentType := r.Header.Get("Content-Type")

		key, err := svc.AcceptUpload(r.Context(), uid, filename, contentType, r.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"key": key})
	}
}

func streamContent(r *http.Request, w http.ResponseWriter, logg *logger.Logger, content *deliverysvc.Content) {
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.ContentType)
	if content.Disposition != "" {
		w.Header().Set("Content-Disposition", content.Disposition)
	}
	if content.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.ContentLength, 10))
	}

	if _, err := io.Copy(w, content.Body); err != nil && logg != nil {
		// Headers are already out; all we can do is record the broken stream.
		logg.Error(r.Context(), "content stream interrupted", err)
	}
}
