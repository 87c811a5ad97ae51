package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/apiclient"
	"github.com/ekaya-inc/ekaya-admin/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/pkg/logging"
	"github.com/ekaya-inc/ekaya-admin/pkg/models"
	"github.com/ekaya-inc/ekaya-admin/pkg/products"
	"github.com/ekaya-inc/ekaya-admin/pkg/services"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

// Messages shown on the product pages.
const (
	MsgListFailed         = "Failed to load projects. Please try again."
	MsgDetailFailed       = "An error occurred while fetching project details."
	MsgNotFound           = "Project not found."
	MsgActionExpired      = "This action has expired. Please try again."
	MsgNotModeratable     = "Only pending projects can be approved or declined."
	MsgAmbiguousName      = "Cannot update %q: another project has the same name."
	MsgStatusUpdated      = "Status of %q updated to %s."
	MsgStatusFailed       = "Failed to update status to %s."
	MsgSessionUnavailable = "Could not read your session. Please try again."
	MsgSessionRejected    = "The products API rejected your session. Please log out and sign in again."
)

// ProductCard is one entry on the product grid.
type ProductCard struct {
	Product      models.Product
	CanModerate  bool
	ApproveNonce string
	DeclineNonce string
}

// ProductsPage is the data for the grid template.
type ProductsPage struct {
	Page
	Cards []ProductCard
	Error string
}

// DetailPage is the data for the detail template.
type DetailPage struct {
	Page
	Product *models.Product
	Error   string
}

// ProductsHandler serves the product grid, the detail page and the moderation actions.
type ProductsHandler struct {
	pageBuilder
	products products.Service
	store    session.Store
	nonces   services.NonceStore
	render   *Renderer
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(productService products.Service, browsers *auth.BrowserSessions, store session.Store, nonces services.NonceStore, render *Renderer, logger *zap.Logger) *ProductsHandler {
	return &ProductsHandler{
		pageBuilder: pageBuilder{browsers: browsers, logger: logger},
		products:    productService,
		store:       store,
		nonces:      nonces,
		render:      render,
	}
}

// RegisterRoutes registers the products handler's routes on the given mux.
func (h *ProductsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.Handle("GET /{$}", authMiddleware.Protect(h.List))
	mux.Handle("GET /products/{uuid}", authMiddleware.Protect(h.Detail))
	mux.Handle("POST /products/{uuid}/approve", authMiddleware.Protect(h.Approve))
	mux.Handle("POST /products/{uuid}/decline", authMiddleware.Protect(h.Decline))
}

// List handles GET /
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	key := auth.BrowserKeyFromContext(r.Context())
	sess, ok := h.session(w, r, key)
	if !ok {
		return
	}

	listing := h.products.List(r.Context(), key, sess)

	data := ProductsPage{Page: h.page(w, r, "Projects", sess)}
	if listing.Err != nil {
		switch {
		case errors.Is(listing.Err, apperrors.ErrUnauthenticated):
			data.Error = MsgSessionRejected
		case errors.Is(listing.Err, apiclient.ErrUnreachable):
			data.Error = MsgListFailed + " The products API is unreachable."
		default:
			data.Error = MsgListFailed
		}
	}

	data.Cards = make([]ProductCard, 0, len(listing.Products))
	for _, p := range listing.Products {
		card := ProductCard{Product: p, CanModerate: products.CanModerate(p)}
		if card.CanModerate {
			card.ApproveNonce = h.nonces.Generate(services.ActionApprove, key, p.UUID)
			card.DeclineNonce = h.nonces.Generate(services.ActionDecline, key, p.UUID)
		}
		data.Cards = append(data.Cards, card)
	}

	h.render.Render(w, http.StatusOK, PageProducts, data)
}

// Detail handles GET /products/{uuid}
func (h *ProductsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	key := auth.BrowserKeyFromContext(r.Context())
	sess, ok := h.session(w, r, key)
	if !ok {
		return
	}

	uuid := r.PathValue("uuid")
	product, err := h.products.GetByUUID(r.Context(), key, sess, uuid)

	data := DetailPage{Page: h.page(w, r, "Project", sess), Product: product}
	status := http.StatusOK

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		data.Error = MsgNotFound
		status = http.StatusNotFound
	case err != nil:
		h.logger.Warn("Failed to fetch project detail",
			zap.String("uuid", uuid),
			zap.String("error", logging.SanitizeError(err)))
		data.Error = MsgDetailFailed
		status = http.StatusBadGateway
	default:
		data.Title = product.Name
	}

	h.render.Render(w, status, PageDetail, data)
}

// Approve handles POST /products/{uuid}/approve
func (h *ProductsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, products.ActionApprove)
}

// Decline handles POST /products/{uuid}/decline
func (h *ProductsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, products.ActionDecline)
}

// moderate runs an approve or decline and sends the browser back to the grid,
// which re-renders from the listing refreshed by the transition.
func (h *ProductsHandler) moderate(w http.ResponseWriter, r *http.Request, action products.Action) {
	key := auth.BrowserKeyFromContext(r.Context())
	uuid := r.PathValue("uuid")

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	if !h.nonces.Validate(r.PostForm.Get("nonce"), string(action), key, uuid) {
		h.flash(w, r, auth.FlashError, MsgActionExpired)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	sess, ok := h.session(w, r, key)
	if !ok {
		return
	}

	var t products.Transition
	switch action {
	case products.ActionApprove:
		t = h.products.Approve(r.Context(), key, sess, uuid)
	default:
		t = h.products.Decline(r.Context(), key, sess, uuid)
	}

	kind, msg := transitionFlash(t)
	h.flash(w, r, kind, msg)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func transitionFlash(t products.Transition) (auth.FlashKind, string) {
	switch {
	case t.Err == nil:
		return auth.FlashSuccess, fmt.Sprintf(MsgStatusUpdated, t.Product.Name, t.Status)
	case errors.Is(t.Err, products.ErrTransitionNotAllowed):
		return auth.FlashError, MsgNotModeratable
	case errors.Is(t.Err, products.ErrAmbiguousName):
		return auth.FlashError, fmt.Sprintf(MsgAmbiguousName, t.Product.Name)
	case errors.Is(t.Err, apperrors.ErrNotFound):
		return auth.FlashError, MsgNotFound
	default:
		return auth.FlashError, fmt.Sprintf(MsgStatusFailed, t.Status)
	}
}

// session reads the browser's tokens, writing an error page when the store fails.
func (h *ProductsHandler) session(w http.ResponseWriter, r *http.Request, key string) (session.Session, bool) {
	sess, err := h.store.Read(r.Context(), key)
	if err != nil {
		h.logger.Error("Failed to read session", zap.String("error", logging.SanitizeError(err)))
		http.Error(w, MsgSessionUnavailable, http.StatusServiceUnavailable)
		return session.Session{}, false
	}
	return sess, true
}
