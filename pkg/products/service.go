// Package products implements the product listing, moderation and detail
// workflows on top of the products API.
//
// The API only offers the whole collection, so both the grid and the detail
// page read it in full. Moderation is addressed by name upstream while the
// dashboard addresses products by uuid; Approve and Decline resolve one to
// the other and refuse when the name is not unique.
package products

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admin/pkg/audit"
	"github.com/ekaya-inc/ekaya-admin/pkg/logging"
	"github.com/ekaya-inc/ekaya-admin/pkg/metrics"
	"github.com/ekaya-inc/ekaya-admin/pkg/models"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

var (
	// ErrFetchFailed wraps any failure to obtain the product collection.
	ErrFetchFailed = errors.New("failed to fetch products")
	// ErrInvalidStatus is returned for a status outside PENDING/PUBLISHED/DECLINED.
	ErrInvalidStatus = errors.New("invalid product status")
	// ErrTransitionNotAllowed is returned when approving or declining a product that is not PENDING.
	ErrTransitionNotAllowed = errors.New("only pending products can be approved or declined")
	// ErrAmbiguousName is returned when another product shares the target's name,
	// so the name-addressed status endpoint cannot tell them apart.
	ErrAmbiguousName = errors.New("product name is not unique")
)

// API is the subset of the products API client used here.
type API interface {
	ListProducts(ctx context.Context, sess session.Session) ([]models.Product, error)
	UpdateProductStatus(ctx context.Context, sess session.Session, name string, status models.ProductStatus) error
}

// Listing is one fetch of the product collection. On failure Products is
// empty and Err is set; partial results are never returned.
type Listing struct {
	Products []models.Product
	Err      error
	// Seq is the fetch's sequence number on the Board.
	Seq uint64
}

// Transition is the outcome of an approve or decline.
type Transition struct {
	// Product is the target as it was before the request, zero if it could not be resolved.
	Product models.Product
	Status  models.ProductStatus
	Err     error
	// Listing is the refetch issued after the request, whatever its outcome.
	Listing Listing
}

// Service defines the product operations used by the dashboard.
type Service interface {
	// List fetches the collection and applies it to the caller's board.
	List(ctx context.Context, key string, sess session.Session) Listing
	// SetStatus requests a status change for the product with the given name.
	SetStatus(ctx context.Context, sess session.Session, name string, status models.ProductStatus) error
	// Approve publishes a pending product and refreshes the listing.
	Approve(ctx context.Context, key string, sess session.Session, uuid string) Transition
	// Decline declines a pending product and refreshes the listing.
	Decline(ctx context.Context, key string, sess session.Session, uuid string) Transition
	// GetByUUID returns one product, apperrors.ErrNotFound if absent or
	// ErrFetchFailed if the collection could not be read.
	GetByUUID(ctx context.Context, key string, sess session.Session, uuid string) (*models.Product, error)
	// Forget drops the caller's board.
	Forget(key string)
}

type service struct {
	api     API
	board   *Board
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewService creates a product service.
func NewService(api API, board *Board, auditor *audit.SecurityAuditor, logger *zap.Logger) Service {
	return &service{
		api:     api,
		board:   board,
		auditor: auditor,
		logger:  logger.Named("products"),
	}
}

func (s *service) List(ctx context.Context, key string, sess session.Session) Listing {
	seq := s.board.Begin()

	listing := Listing{Products: []models.Product{}}
	items, err := s.api.ListProducts(ctx, sess)
	if err != nil {
		s.logger.Warn("Failed to list products", zap.String("error", logging.SanitizeError(err)))
		listing.Err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
	} else {
		listing.Products = items
	}

	current, applied := s.board.Apply(key, seq, listing)
	if !applied {
		s.logger.Debug("Discarded stale product listing",
			zap.Uint64("seq", seq),
			zap.Uint64("current_seq", current.Seq))
	}
	return current
}

func (s *service) SetStatus(ctx context.Context, sess session.Session, name string, status models.ProductStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.api.UpdateProductStatus(ctx, sess, name, status); err != nil {
		return fmt.Errorf("failed to set status of %q to %s: %w", name, status, err)
	}
	return nil
}

func (s *service) Approve(ctx context.Context, key string, sess session.Session, uuid string) Transition {
	return s.transition(ctx, key, sess, uuid, ActionApprove)
}

func (s *service) Decline(ctx context.Context, key string, sess session.Session, uuid string) Transition {
	return s.transition(ctx, key, sess, uuid, ActionDecline)
}

func (s *service) transition(ctx context.Context, key string, sess session.Session, uuid string, action Action) Transition {
	to, _ := TargetStatus(action)
	t := Transition{Status: to}

	// A failed listing is never resolved against; the API may have recovered.
	listing, ok := s.board.Current(key)
	if !ok || listing.Err != nil {
		listing = s.List(ctx, key, sess)
	}

	product, err := resolveTarget(listing, uuid)
	if err == nil {
		t.Product = product
		err = s.SetStatus(ctx, sess, product.Name, to)
	}
	t.Err = err

	if !errors.Is(err, ErrFetchFailed) && !errors.Is(err, apperrors.ErrNotFound) {
		details := audit.TransitionDetails{
			ProductUUID: uuid,
			ProductName: product.Name,
			ToStatus:    string(to),
		}
		if err != nil {
			details.Error = logging.SanitizeError(err)
		}
		s.auditor.LogStatusTransition(ctx, actorFor(sess), details)
		metrics.RecordStatusTransition(string(to), err == nil)
	}

	// No local state was changed, so resyncing with the server is all that is needed.
	t.Listing = s.List(ctx, key, sess)
	return t
}

func (s *service) GetByUUID(ctx context.Context, key string, sess session.Session, uuid string) (*models.Product, error) {
	listing := s.List(ctx, key, sess)
	if listing.Err != nil {
		return nil, listing.Err
	}
	p, ok := findByUUID(listing.Products, uuid)
	if !ok {
		return nil, fmt.Errorf("product %q: %w", uuid, apperrors.ErrNotFound)
	}
	return &p, nil
}

func (s *service) Forget(key string) {
	s.board.Forget(key)
}

// resolveTarget finds the product to moderate and checks it may be moderated.
func resolveTarget(listing Listing, uuid string) (models.Product, error) {
	if listing.Err != nil {
		return models.Product{}, listing.Err
	}
	p, ok := findByUUID(listing.Products, uuid)
	if !ok {
		return models.Product{}, fmt.Errorf("product %q: %w", uuid, apperrors.ErrNotFound)
	}
	if p.Status != models.StatusPending {
		return p, fmt.Errorf("%w: %q is %s", ErrTransitionNotAllowed, p.Name, p.Status)
	}
	if p.Name == "" {
		return p, fmt.Errorf("%w: product has no name", ErrAmbiguousName)
	}
	if n := countByName(listing.Products, p.Name); n > 1 {
		return p, fmt.Errorf("%w: %d products are named %q", ErrAmbiguousName, n, p.Name)
	}
	return p, nil
}

func findByUUID(items []models.Product, uuid string) (models.Product, bool) {
	if uuid == "" {
		return models.Product{}, false
	}
	for _, p := range items {
		if p.UUID == uuid {
			return p, true
		}
	}
	return models.Product{}, false
}

func countByName(items []models.Product, name string) int {
	n := 0
	for _, p := range items {
		if p.Name == name {
			n++
		}
	}
	return n
}

func actorFor(sess session.Session) string {
	if id, err := session.ParseIdentity(sess.AccessToken); err == nil {
		return id.Label()
	}
	return ""
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)
