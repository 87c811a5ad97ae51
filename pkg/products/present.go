package products

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ekaya-inc/ekaya-admin/pkg/models"
)

// Action is a moderation control shown on a product card.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

// Actions returns the moderation controls for p. Only PENDING products have any.
func Actions(p models.Product) []Action {
	if p.Status != models.StatusPending {
		return nil
	}
	return []Action{ActionApprove, ActionDecline}
}

// CanModerate reports whether p exposes approve/decline.
func CanModerate(p models.Product) bool {
	return len(Actions(p)) > 0
}

// TargetStatus maps an action to the status it requests.
func TargetStatus(a Action) (models.ProductStatus, bool) {
	switch a {
	case ActionApprove:
		return models.StatusPublished, true
	case ActionDecline:
		return models.StatusDeclined, true
	}
	return "", false
}

// AbbreviateWallet keeps the first head and last tail characters of addr.
// Addresses too short to abbreviate are returned unchanged.
func AbbreviateWallet(addr string, head, tail int) string {
	runes := []rune(addr)
	if len(runes) <= head+tail {
		return addr
	}
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}

// WalletShort is the card form, e.g. "0x1234...abcd".
func WalletShort(addr string) string {
	return AbbreviateWallet(addr, 6, 4)
}

// WalletMedium is the detail page form.
func WalletMedium(addr string) string {
	return AbbreviateWallet(addr, 8, 6)
}

// Initials is the avatar fallback: the first two characters of name, upper-cased.
func Initials(name string) string {
	var b strings.Builder
	for i := 0; i < 2 && name != ""; i++ {
		r, size := utf8.DecodeRuneInString(name)
		b.WriteRune(r)
		name = name[size:]
	}
	return strings.ToUpper(b.String())
}

// StatusClass returns the badge CSS class for a status.
func StatusClass(s models.ProductStatus) string {
	switch s {
	case models.StatusPublished:
		return "badge-published"
	case models.StatusPending:
		return "badge-pending"
	case models.StatusDeclined:
		return "badge-declined"
	default:
		return "badge-neutral"
	}
}

var trackClasses = map[string]string{
	"Defi":      "track-defi",
	"Gaming":    "track-gaming",
	"Ai":        "track-ai",
	"DePin":     "track-depin",
	"Infra":     "track-infra",
	"Consumers": "track-consumers",
}

// TrackClass returns the badge CSS class for a track. Unknown tracks are neutral.
func TrackClass(track string) string {
	if c, ok := trackClasses[track]; ok {
		return c
	}
	return "track-neutral"
}

// StatusLabel returns the text for a status badge; unrecognized values show as "UNKNOWN".
func StatusLabel(s models.ProductStatus) string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return string(s)
}

var dateLayouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"}

// FormatDate renders a milestone date as "Jan 2, 2006". Values in an
// unrecognized format are returned as-is.
func FormatDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return s
}
