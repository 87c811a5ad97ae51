package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/ui"
)

func TestRenderer_EscapesAndShowsFlashes(t *testing.T) {
	r, err := NewRenderer(ui.FS(), zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageLogin, LoginPage{
		Page: Page{
			Title:   "Login",
			Flashes: []auth.Flash{{Kind: auth.FlashError, Message: "<b>nope</b>"}},
		},
		Email: `"><script>`,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "flash-error")
	assert.Contains(t, body, "&lt;b&gt;nope&lt;/b&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestRenderer_UnknownPage(t *testing.T) {
	r, err := NewRenderer(ui.FS(), zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "nope", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRenderer_ExecutionErrorIsClean500(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/layout.html":   {Data: []byte(`{{define "layout"}}{{template "content" .}}{{end}}`)},
		"templates/login.html":    {Data: []byte(`{{define "content"}}{{.Missing.Field}}{{end}}`)},
		"templates/products.html": {Data: []byte(`{{define "content"}}{{end}}`)},
		"templates/detail.html":   {Data: []byte(`{{define "content"}}{{end}}`)},
	}
	r, err := NewRenderer(fsys, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageLogin, LoginPage{})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<")
}

func TestNewRenderer_MissingTemplate(t *testing.T) {
	_, err := NewRenderer(fstest.MapFS{}, zap.NewNop())
	assert.Error(t, err)
}
