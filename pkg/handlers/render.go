package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/pkg/products"
)

// Page names, one per template under templates/.
const (
	PageLogin    = "login"
	PageProducts = "products"
	PageDetail   = "detail"
)

// Page carries what the layout needs on every page.
type Page struct {
	Title         string
	Flashes       []auth.Flash
	Authenticated bool
	Identity      string
}

var templateFuncs = template.FuncMap{
	"initials":     products.Initials,
	"walletShort":  products.WalletShort,
	"walletMedium": products.WalletMedium,
	"statusClass":  products.StatusClass,
	"statusLabel":  products.StatusLabel,
	"trackClass":   products.TrackClass,
	"formatDate":   products.FormatDate,
}

// Renderer executes the page templates.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

// NewRenderer parses templates/layout.html together with each page from fsys.
func NewRenderer(fsys fs.FS, logger *zap.Logger) (*Renderer, error) {
	r := &Renderer{
		pages:  make(map[string]*template.Template),
		logger: logger.Named("render"),
	}
	for _, page := range []string{PageLogin, PageProducts, PageDetail} {
		t, err := template.New(page).Funcs(templateFuncs).ParseFS(fsys,
			"templates/layout.html",
			"templates/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		r.pages[page] = t
	}
	return r, nil
}

// Render writes page with the given status. The page is fully rendered before
// anything is written, so a template error still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := r.pages[page]
	if !ok {
		r.logger.Error("Unknown page", zap.String("page", page))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("Failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
