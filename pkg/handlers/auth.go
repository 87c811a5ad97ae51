package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/pkg/authflow"
	"github.com/ekaya-inc/ekaya-admin/pkg/logging"
	"github.com/ekaya-inc/ekaya-admin/pkg/products"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

// LoginPage is the data for the login template.
type LoginPage struct {
	Page
	Email       string
	FieldErrors map[string]string
	Message     string
	MessageKind auth.FlashKind
	Succeeded   bool
	RedirectTo  string
}

// AuthHandler serves the login screen and the logout action.
type AuthHandler struct {
	pageBuilder
	flow     *authflow.Flow
	products products.Service
	store    session.Store
	render   *Renderer
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(flow *authflow.Flow, productService products.Service, browsers *auth.BrowserSessions, store session.Store, render *Renderer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		pageBuilder: pageBuilder{browsers: browsers, logger: logger},
		flow:        flow,
		products:    productService,
		store:       store,
		render:      render,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
// loginLimit wraps POST /login; pass nil to leave it unthrottled.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, loginLimit func(http.Handler) http.Handler) {
	submit := authMiddleware.IdentifyBrowser(http.HandlerFunc(h.SubmitLogin))
	if loginLimit != nil {
		submit = loginLimit(submit)
	}

	mux.Handle("GET /login", authMiddleware.IdentifyBrowser(http.HandlerFunc(h.LoginForm)))
	mux.Handle("POST /login", submit)
	mux.Handle("POST /logout", authMiddleware.IdentifyBrowser(http.HandlerFunc(h.Logout)))
}

// LoginForm handles GET /login.
// Browsers that already hold a token go straight to the dashboard.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	key := auth.BrowserKeyFromContext(r.Context())

	ok, err := h.store.IsAuthenticated(r.Context(), key)
	if err != nil {
		h.logger.Warn("Failed to check session", zap.String("error", logging.SanitizeError(err)))
	}
	if ok {
		http.Redirect(w, r, authflow.HomePath, http.StatusSeeOther)
		return
	}

	data := LoginPage{Page: h.page(w, r, "Login", session.Session{})}
	if h.flow.State(key) == authflow.StateSubmitting {
		// Reloaded while a submission from this browser is still in flight.
		data.Message = authflow.MsgLoginInProgress
		data.MessageKind = auth.FlashSuccess
	}
	h.render.Render(w, http.StatusOK, PageLogin, data)
}

// SubmitLogin handles POST /login.
func (h *AuthHandler) SubmitLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	key := auth.BrowserKeyFromContext(r.Context())
	creds := authflow.Credentials{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}

	result := h.flow.Login(r.Context(), key, creds)
	if result.State == authflow.StateSuccess {
		result = h.rekey(w, r, key, result)
	}

	data := LoginPage{
		Page:        h.page(w, r, "Login", session.Session{}),
		Email:       creds.Email,
		FieldErrors: result.FieldErrors,
		Message:     result.Message,
		MessageKind: auth.FlashError,
	}

	switch result.State {
	case authflow.StateSuccess:
		if result.RedirectAfter <= 0 {
			http.Redirect(w, r, result.RedirectTo, http.StatusSeeOther)
			return
		}
		seconds := int(math.Ceil(result.RedirectAfter.Seconds()))
		w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", seconds, result.RedirectTo))
		data.MessageKind = auth.FlashSuccess
		data.Succeeded = true
		data.RedirectTo = result.RedirectTo
		h.render.Render(w, http.StatusOK, PageLogin, data)

	case authflow.StateSubmitting:
		h.render.Render(w, http.StatusConflict, PageLogin, data)

	case authflow.StateIdle:
		h.render.Render(w, http.StatusUnprocessableEntity, PageLogin, data)

	default:
		if result.Err != nil {
			h.logger.Debug("Login failed", zap.String("error", logging.SanitizeError(result.Err)))
		}
		h.render.Render(w, http.StatusOK, PageLogin, data)
	}
}

// rekey issues the browser a new key and moves the freshly stored tokens to it.
func (h *AuthHandler) rekey(w http.ResponseWriter, r *http.Request, oldKey string, result authflow.Result) authflow.Result {
	newKey, err := h.browsers.Rotate(w, r)
	if err == nil {
		err = h.flow.Rekey(r.Context(), oldKey, newKey)
	}
	h.products.Forget(oldKey)
	if err == nil {
		return result
	}

	h.logger.Error("Failed to rotate browser key after login", zap.String("error", logging.SanitizeError(err)))
	if clearErr := h.store.Clear(r.Context(), oldKey); clearErr != nil {
		h.logger.Warn("Failed to clear pre-login session", zap.String("error", logging.SanitizeError(clearErr)))
	}
	return authflow.Result{State: authflow.StateFailure, Message: authflow.MsgSessionSaveError, Err: err}
}

// Logout handles POST /logout.
// The browser's tokens are cleared and its key rotated whatever the API says.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	key := auth.BrowserKeyFromContext(r.Context())

	result := h.flow.Logout(r.Context(), key)
	h.products.Forget(key)

	if _, err := h.browsers.Rotate(w, r); err != nil {
		h.logger.Warn("Failed to rotate browser key", zap.Error(err))
	}

	http.Redirect(w, r, result.RedirectTo, http.StatusSeeOther)
}
