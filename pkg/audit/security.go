// Package audit provides security audit logging for SIEM consumption.
// Sign-ins, sign-outs and moderation decisions are logged as structured
// events under the "security_audit" logger namespace.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	EventLoginSucceeded    SecurityEventType = "login_succeeded"
	EventLoginFailed       SecurityEventType = "login_failed"
	EventLoginTimedOut     SecurityEventType = "login_timed_out"
	EventLogout            SecurityEventType = "logout"
	EventStatusTransition  SecurityEventType = "status_transition"
	EventTransitionRefused SecurityEventType = "status_transition_refused"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	EventID    uuid.UUID         `json:"event_id"`
	Timestamp  time.Time         `json:"timestamp"`
	EventType  SecurityEventType `json:"event_type"`
	BrowserKey string            `json:"browser_key,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	ClientIP   string            `json:"client_ip,omitempty"`
	Details    any               `json:"details,omitempty"`
	Severity   string            `json:"severity"` // info, warning, critical
}

// TransitionDetails describes a moderation decision on a product.
type TransitionDetails struct {
	ProductUUID string `json:"product_uuid"`
	ProductName string `json:"product_name"`
	ToStatus    string `json:"to_status"`
	Error       string `json:"error,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogLoginSucceeded records a successful sign-in for the given email.
func (a *SecurityAuditor) LogLoginSucceeded(ctx context.Context, email string) {
	a.emit("Login succeeded", newEvent(ctx, EventLoginSucceeded, email, "info", nil), zapcore.InfoLevel)
}

// LogLoginFailed records a rejected or unreachable sign-in. reason must not contain credentials.
func (a *SecurityAuditor) LogLoginFailed(ctx context.Context, email, reason string) {
	details := map[string]string{"reason": reason}
	a.emit("Login failed", newEvent(ctx, EventLoginFailed, email, "warning", details), zapcore.WarnLevel)
}

// LogLoginTimedOut records a sign-in abandoned after the login timeout.
func (a *SecurityAuditor) LogLoginTimedOut(ctx context.Context, email string, timeout time.Duration) {
	details := map[string]string{"timeout": timeout.String()}
	a.emit("Login timed out", newEvent(ctx, EventLoginTimedOut, email, "warning", details), zapcore.WarnLevel)
}

// LogLogout records a sign-out. apiErr is the (sanitized) upstream failure, if any;
// local tokens are cleared either way.
func (a *SecurityAuditor) LogLogout(ctx context.Context, actor string, apiErr error) {
	var details map[string]string
	if apiErr != nil {
		details = map[string]string{"api_error": logging.SanitizeError(apiErr)}
	}
	a.emit("Logout", newEvent(ctx, EventLogout, actor, "info", details), zapcore.InfoLevel)
}

// LogStatusTransition records an approve/decline decision and whether the API accepted it.
//
// Example usage:
//
//	auditor.LogStatusTransition(ctx, actor, audit.TransitionDetails{
//	    ProductUUID: "0b9c...",
//	    ProductName: "Alpha",
//	    ToStatus:    "PUBLISHED",
//	})
func (a *SecurityAuditor) LogStatusTransition(ctx context.Context, actor string, details TransitionDetails) {
	if details.Error != "" {
		a.emit("Status transition refused", newEvent(ctx, EventTransitionRefused, actor, "warning", details), zapcore.WarnLevel)
		return
	}
	a.emit("Status transition", newEvent(ctx, EventStatusTransition, actor, "info", details), zapcore.InfoLevel)
}

func newEvent(ctx context.Context, eventType SecurityEventType, actor, severity string, details any) SecurityEvent {
	info := auth.RequestInfoFromContext(ctx)
	return SecurityEvent{
		EventID:    uuid.New(),
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		BrowserKey: info.BrowserKey,
		Actor:      actor,
		ClientIP:   info.ClientIP,
		Details:    details,
		Severity:   severity,
	}
}

func (a *SecurityAuditor) emit(msg string, event SecurityEvent, lvl zapcore.Level) {
	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("browser_key", event.BrowserKey),
		zap.String("actor", event.Actor),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	}

	a.logger.Log(lvl, msg, fields...)
}
