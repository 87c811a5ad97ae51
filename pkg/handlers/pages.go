package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

// pageBuilder assembles the layout data shared by every page.
type pageBuilder struct {
	browsers *auth.BrowserSessions
	logger   *zap.Logger
}

// page pops pending flashes, so it must run before anything is written.
func (b *pageBuilder) page(w http.ResponseWriter, r *http.Request, title string, sess session.Session) Page {
	flashes, err := b.browsers.Flashes(w, r)
	if err != nil {
		b.logger.Warn("Failed to read flashes", zap.Error(err))
	}

	p := Page{
		Title:         title,
		Flashes:       flashes,
		Authenticated: sess.IsAuthenticated(),
	}
	if p.Authenticated {
		if id, err := session.ParseIdentity(sess.AccessToken); err == nil {
			p.Identity = id.Label()
		}
	}
	return p
}

func (b *pageBuilder) flash(w http.ResponseWriter, r *http.Request, kind auth.FlashKind, msg string) {
	if err := b.browsers.AddFlash(w, r, auth.Flash{Kind: kind, Message: msg}); err != nil {
		b.logger.Warn("Failed to queue flash", zap.Error(err))
	}
}
