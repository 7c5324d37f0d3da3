package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/soundcrate/backend/internal/catalog"
	"github.com/soundcrate/backend/internal/entitlement"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/logger"
	"github.com/soundcrate/backend/pkg/metrics"
	"github.com/soundcrate/backend/pkg/storage/gcs"
)

// imageContentTypes maps a key's extension to the response content type.
// Anything unrecognized is served as JPEG.
var imageContentTypes = map[string]string{
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".avif": "image/avif",
}

const defaultImageContentType = "image/jpeg"

// Content is a granted delivery: the byte stream plus the headers the
// transport layer should set.
type Content struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	Disposition   string
	Class         enums.KeyClass
}

// Service gates and streams catalog content.
type Service interface {
	// DeliverFile serves a key through the entitlement gate. Digital keys
	// require a granted decision; public keys pass through.
	DeliverFile(ctx context.Context, accountID, key string) (*Content, error)
	// DeliverImage serves public-class keys without requiring identity.
	DeliverImage(ctx context.Context, key string) (*Content, error)
	// AcceptUpload stores a new blob under the uploader's namespace and
	// returns the key a product can later bind.
	AcceptUpload(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (string, error)
}

type blobStore interface {
	Download(ctx context.Context, bucket, key string) (*gcs.Object, error)
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

type service struct {
	catalog  catalog.Service
	resolver entitlement.Resolver
	store    blobStore
	bucket   string
	logg     *logger.Logger
	metrics  *metrics.DeliveryMetrics
}

// NewService wires the delivery gate.
func NewService(catalogSvc catalog.Service, resolver entitlement.Resolver, store blobStore, bucket string, logg *logger.Logger, deliveryMetrics *metrics.DeliveryMetrics) (Service, error) {
	if catalogSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog service required")
	}
	if resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "entitlement resolver required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "blob store required")
	}
	return &service{
		catalog:  catalogSvc,
		resolver: resolver,
		store:    store,
		bucket:   bucket,
		logg:     logg,
		metrics:  deliveryMetrics,
	}, nil
}

func (s *service) DeliverFile(ctx context.Context, accountID, key string) (*Content, error) {
	classified, err := s.catalog.Classify(ctx, key)
	if err != nil {
		s.countDecision("unknown", "not_found")
		return nil, err
	}

	decision, err := s.resolver.Authorize(ctx, accountID, classified.Product, classified.Class)
	if err != nil {
		s.countDecision(string(classified.Class), "error")
		return nil, err
	}
	if !decision.Granted {
		s.countDecision(string(classified.Class), string(decision.Reason))
		switch decision.Reason {
		case entitlement.DenyUnauthenticated, entitlement.DenyUnknownUser:
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
		default:
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "content not purchased")
		}
	}

	content, err := s.fetch(ctx, classified.Key, classified.Class)
	if err != nil {
		return nil, err
	}
	content.ContentType = "application/octet-stream"
	content.Disposition = fmt.Sprintf("inline; filename=%q", dispositionFilename(classified.Key))
	s.countDecision(string(classified.Class), "granted")
	return content, nil
}

func (s *service) DeliverImage(ctx context.Context, key string) (*Content, error) {
	classified, err := s.catalog.Classify(ctx, key)
	if err != nil {
		s.countDecision("unknown", "not_found")
		return nil, err
	}
	// The image route serves public classes only. A digital key requested
	// here goes through the same gate as the file route, so a missing
	// identity is rejected rather than leaking gated bytes.
	if classified.Class == enums.KeyClassDigital {
		s.countDecision(string(classified.Class), string(entitlement.DenyUnauthenticated))
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	content, err := s.fetch(ctx, classified.Key, classified.Class)
	if err != nil {
		return nil, err
	}
	content.ContentType = imageContentType(classified.Key)
	s.countDecision(string(classified.Class), "granted")
	return content, nil
}

// AcceptUpload writes the blob as "<userID>/<id>_<filename>". The random id
// keeps repeat uploads of the same filename from overwriting each other.
func (s *service) AcceptUpload(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (string, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "filename required")
	}
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "filename must not contain path segments")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s_%s", userID, uuid.NewString(), filename)
	if err := s.store.Upload(ctx, s.bucket, key, contentType, body); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store upload")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"key":     key,
			"user_id": userID.String(),
		})
		s.logg.Info(logCtx, "blob uploaded")
	}
	return key, nil
}

func (s *service) fetch(ctx context.Context, key string, class enums.KeyClass) (*Content, error) {
	object, err := s.store.Download(ctx, s.bucket, key)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotFound) {
			// The catalog references an object the store no longer has.
			// The client gets a plain 404; operators get the real story.
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"key":   key,
					"class": string(class),
				})
				s.logg.Warn(logCtx, "catalog references missing blob object")
			}
			s.countDecision(string(class), "dangling_reference")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
		}
		s.countDecision(string(class), "store_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch object")
	}

	content := &Content{
		Body:          object.Body,
		ContentLength: object.ContentLength,
		Class:         class,
	}
	if s.metrics != nil && object.ContentLength > 0 {
		s.metrics.AddBytes(string(class), object.ContentLength)
	}
	return content, nil
}

// dispositionFilename recovers the original filename from a composed key.
// Keys are written as "<prefix>_<originalFilename>", so the filename is
// everything after the last underscore.
func dispositionFilename(key string) string {
	if idx := strings.LastIndex(key, "_"); idx >= 0 && idx < len(key)-1 {
		return key[idx+1:]
	}
	return key
}

func imageContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := imageContentTypes[ext]; ok {
		return ct
	}
	return defaultImageContentType
}

func (s *service) countDecision(class, outcome string) {
	if s.metrics != nil {
		s.metrics.IncDecision(class, outcome)
	}
}
