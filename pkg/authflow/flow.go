// Package authflow implements the dashboard's login and logout lifecycle.
//
// A login moves a browser from Idle to Submitting and ends in Success or
// Failure. The network call races a timer; whichever finishes first decides
// the outcome, and only the winning branch may touch the token store. A late
// login response after a timeout is therefore discarded.
//
// Logout always clears the browser's tokens, whether or not the API was reached.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/apiclient"
	"github.com/ekaya-inc/ekaya-admin/pkg/audit"
	"github.com/ekaya-inc/ekaya-admin/pkg/logging"
	"github.com/ekaya-inc/ekaya-admin/pkg/metrics"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

// State is a browser's position in the login state machine.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// User-facing messages.
const (
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordRequired = "Password is required"
	MsgLoginSucceeded   = "Login successful! Redirecting..."
	MsgInvalidLogin     = "Invalid email or password."
	MsgLoginTimedOut    = "Login request timed out. Please try again."
	MsgNetworkError     = "Network error. Please check your connection and try again."
	MsgLoginInProgress  = "A login attempt is already in progress."
	MsgSessionSaveError = "Could not save your session. Please try again."
)

// Redirect targets.
const (
	HomePath  = "/"
	LoginPath = "/login"
)

// Defaults used when the caller passes zero durations.
const (
	DefaultLoginTimeout  = 10 * time.Second
	DefaultRedirectDelay = time.Second
)

// ErrLoginInProgress is reported when a browser submits while already Submitting.
var ErrLoginInProgress = errors.New("login already in progress")

// Authenticator is the subset of the API client the flow needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResult, error)
	Logout(ctx context.Context, sess session.Session) error
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Result is what the login page renders.
type Result struct {
	State State
	// Message is the banner text; empty when only field errors apply.
	Message string
	// FieldErrors maps "email"/"password" to a message. Set only for validation failures.
	FieldErrors map[string]string
	// RedirectTo is set on Success (HomePath) and after logout (LoginPath).
	RedirectTo string
	// RedirectAfter is how long to show Message before following RedirectTo.
	RedirectAfter time.Duration
	// Err is the underlying cause for logging; never shown to the user.
	Err error
}

// Config tunes the flow.
type Config struct {
	LoginTimeout  time.Duration
	RedirectDelay time.Duration
}

// Flow runs logins and logouts against the API and the token store.
type Flow struct {
	api      Authenticator
	store    session.Store
	auditor  *audit.SecurityAuditor
	validate *validator.Validate
	cfg      Config
	logger   *zap.Logger

	mu         sync.Mutex
	submitting map[string]struct{}
}

// New creates a Flow.
func New(api Authenticator, store session.Store, auditor *audit.SecurityAuditor, cfg Config, logger *zap.Logger) *Flow {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	if cfg.RedirectDelay < 0 {
		cfg.RedirectDelay = DefaultRedirectDelay
	}
	return &Flow{
		api:        api,
		store:      store,
		auditor:    auditor,
		validate:   validator.New(),
		cfg:        cfg,
		logger:     logger.Named("authflow"),
		submitting: make(map[string]struct{}),
	}
}

// State returns Submitting while a login for key is in flight, otherwise Idle.
func (f *Flow) State(key string) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.submitting[key]; ok {
		return StateSubmitting
	}
	return StateIdle
}

// ValidateCredentials checks the form locally. It returns nil when the input may be submitted.
func (f *Flow) ValidateCredentials(c Credentials) map[string]string {
	err := f.validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"email": MsgInvalidEmail}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Email":
			fields["email"] = MsgInvalidEmail
		case "Password":
			fields["password"] = MsgPasswordRequired
		}
	}
	return fields
}

type loginOutcome struct {
	result *apiclient.LoginResult
	err    error
}

// Login validates the credentials, submits them, and on success stores the
// returned tokens under key.
func (f *Flow) Login(ctx context.Context, key string, c Credentials) Result {
	if fields := f.ValidateCredentials(c); fields != nil {
		metrics.RecordLoginAttempt(metrics.LoginInvalid)
		return Result{State: StateIdle, FieldErrors: fields}
	}

	if !f.begin(key) {
		return Result{State: StateSubmitting, Message: MsgLoginInProgress, Err: ErrLoginInProgress}
	}
	defer f.finish(key)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the losing call can always deliver and exit.
	done := make(chan loginOutcome, 1)
	go func() {
		res, err := f.api.Login(callCtx, c.Email, c.Password)
		done <- loginOutcome{result: res, err: err}
	}()

	timer := time.NewTimer(f.cfg.LoginTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		// The call keeps running until cancel; its result is never read.
		f.logger.Info("Login timed out", zap.Duration("timeout", f.cfg.LoginTimeout))
		f.auditor.LogLoginTimedOut(ctx, c.Email, f.cfg.LoginTimeout)
		metrics.RecordLoginAttempt(metrics.LoginTimedOut)
		return Result{State: StateFailure, Message: MsgLoginTimedOut, Err: context.DeadlineExceeded}

	case <-ctx.Done():
		metrics.RecordLoginAttempt(metrics.LoginNetwork)
		return Result{State: StateFailure, Message: MsgNetworkError, Err: ctx.Err()}

	case out := <-done:
		return f.complete(ctx, key, c.Email, out)
	}
}

func (f *Flow) complete(ctx context.Context, key, email string, out loginOutcome) Result {
	if out.err != nil {
		f.logger.Warn("Login request failed", zap.String("error", logging.SanitizeError(out.err)))
		f.auditor.LogLoginFailed(ctx, email, "network_error")
		metrics.RecordLoginAttempt(metrics.LoginNetwork)
		return Result{State: StateFailure, Message: MsgNetworkError, Err: out.err}
	}

	res := out.result
	if res == nil || !res.Accepted {
		msg := MsgInvalidLogin
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		f.auditor.LogLoginFailed(ctx, email, "rejected")
		metrics.RecordLoginAttempt(metrics.LoginRejected)
		return Result{State: StateFailure, Message: msg}
	}

	if res.Tokens != nil {
		sess := session.Session{
			AccessToken:  res.Tokens.Token,
			RefreshToken: res.Tokens.RefreshToken,
		}
		if err := f.store.Save(ctx, key, sess); err != nil {
			f.logger.Error("Failed to save session", zap.String("error", logging.SanitizeError(err)))
			metrics.RecordLoginAttempt(metrics.LoginStoreError)
			return Result{State: StateFailure, Message: MsgSessionSaveError, Err: err}
		}
	}

	f.auditor.LogLoginSucceeded(ctx, email)
	metrics.RecordLoginAttempt(metrics.LoginSucceeded)
	return Result{
		State:         StateSuccess,
		Message:       MsgLoginSucceeded,
		RedirectTo:    HomePath,
		RedirectAfter: f.cfg.RedirectDelay,
	}
}

// Logout makes one attempt to end the session upstream, then clears the
// browser's tokens regardless of the outcome and redirects to the login page.
func (f *Flow) Logout(ctx context.Context, key string) (result Result) {
	sess, err := f.store.Read(ctx, key)
	if err != nil {
		f.logger.Warn("Failed to read session before logout", zap.String("error", logging.SanitizeError(err)))
	}

	actor := ""
	if id, idErr := session.ParseIdentity(sess.AccessToken); idErr == nil {
		actor = id.Label()
	}

	var apiErr error
	defer func() {
		// Runs even if ctx was cancelled mid-call.
		if err := f.store.Clear(context.WithoutCancel(ctx), key); err != nil {
			f.logger.Error("Failed to clear session on logout", zap.String("error", logging.SanitizeError(err)))
			result.Err = errors.Join(result.Err, err)
		}
		f.auditor.LogLogout(ctx, actor, apiErr)
		metrics.RecordLogout(apiErr == nil)
	}()

	apiErr = f.api.Logout(ctx, sess)
	if apiErr != nil {
		f.logger.Info("Logout request failed; clearing local session anyway",
			zap.String("error", logging.SanitizeError(apiErr)))
	}

	return Result{State: StateIdle, RedirectTo: LoginPath, Err: apiErr}
}

// Rekey moves the tokens stored under from to to. Called after a successful
// login once the browser has been issued a new key, so a key handed out
// before login never addresses an authenticated session.
func (f *Flow) Rekey(ctx context.Context, from, to string) error {
	sess, err := f.store.Read(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if err := f.store.Save(ctx, to, sess); err != nil {
		return fmt.Errorf("failed to save session under new key: %w", err)
	}
	if err := f.store.Clear(ctx, from); err != nil {
		return fmt.Errorf("failed to clear old session: %w", err)
	}
	return nil
}

func (f *Flow) begin(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.submitting[key]; busy {
		return false
	}
	f.submitting[key] = struct{}{}
	return true
}

func (f *Flow) finish(key string) {
	f.mu.Lock()
	delete(f.submitting, key)
	f.mu.Unlock()
}
