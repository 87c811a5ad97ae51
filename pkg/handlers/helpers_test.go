package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/apiclient"
	"github.com/ekaya-inc/ekaya-admin/pkg/audit"
	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/pkg/authflow"
	"github.com/ekaya-inc/ekaya-admin/pkg/config"
	"github.com/ekaya-inc/ekaya-admin/pkg/models"
	"github.com/ekaya-inc/ekaya-admin/pkg/products"
	"github.com/ekaya-inc/ekaya-admin/pkg/services"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
	"github.com/ekaya-inc/ekaya-admin/ui"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "secret"
)

// fakeUpstream imitates the products API.
type fakeUpstream struct {
	mu sync.Mutex

	products     []models.Product
	listStatus   int
	logoutStatus int

	loginCalls  int
	logoutCalls int
	updates     []string
	authHeaders []string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		products: []models.Product{
			{UUID: "u-alpha", Name: "alpha", Status: models.StatusPending, Track: "Defi", WalletAddress: "0x1234567890abcdef"},
			{UUID: "u-beta", Name: "beta", Status: models.StatusPublished, Track: "Gaming", Description: "Beta description"},
		},
		listStatus:   http.StatusOK,
		logoutStatus: http.StatusOK,
	}
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.loginCalls++
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if req.Email != testEmail || req.Password != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"status":false,"message":"Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":true,"data":{"token":"T","refreshToken":"R"}}`)
	})

	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logoutCalls++
		status := f.logoutStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	})

	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))

		if f.listStatus != http.StatusOK {
			w.WriteHeader(f.listStatus)
			_, _ = io.WriteString(w, `{"status":false,"message":"boom"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "data": f.products})
	})

	mux.HandleFunc("PUT /api/products/{name}/status", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status models.ProductStatus `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		name := r.PathValue("name")
		f.updates = append(f.updates, name+"="+string(req.Status))
		for i := range f.products {
			if f.products[i].Name == name {
				f.products[i].Status = req.Status
			}
		}
		_, _ = io.WriteString(w, `{"status":true}`)
	})

	return mux
}

func (f *fakeUpstream) set(fn func(f *fakeUpstream)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// upstreamCounts is a consistent copy of what the fake upstream has seen.
type upstreamCounts struct {
	loginCalls  int
	logoutCalls int
	updates     []string
	lastAuth    string
}

func (f *fakeUpstream) counts() upstreamCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := upstreamCounts{
		loginCalls:  f.loginCalls,
		logoutCalls: f.logoutCalls,
		updates:     append([]string(nil), f.updates...),
	}
	if n := len(f.authHeaders); n > 0 {
		c.lastAuth = f.authHeaders[n-1]
	}
	return c
}

// testApp is a dashboard wired against a fake upstream, driven through a
// cookie-keeping client that does not follow redirects.
type testApp struct {
	server         *httptest.Server
	upstream       *fakeUpstream
	upstreamServer *httptest.Server
	store          *session.MemoryStore
	board          *products.Board
	client         *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	up := newFakeUpstream()
	upSrv := httptest.NewServer(up.handler())
	t.Cleanup(upSrv.Close)

	logger := zap.NewNop()
	store := session.NewMemoryStore()
	board := products.NewBoard(time.Hour)
	api := apiclient.NewClient(upSrv.URL, 2*time.Second, logger)
	auditor := audit.NewSecurityAuditor(logger)

	flow := authflow.New(api, store, auditor, authflow.Config{
		LoginTimeout:  2 * time.Second,
		RedirectDelay: time.Second,
	}, logger)
	productService := products.NewService(api, board, auditor, logger)
	browsers := auth.NewBrowserSessions("test-secret", auth.CookieSettings{}, time.Hour)
	authMiddleware := auth.NewMiddleware(browsers, store, logger)

	render, err := NewRenderer(ui.FS(), logger)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewAuthHandler(flow, productService, browsers, store, render, logger).RegisterRoutes(mux, authMiddleware, nil)
	NewProductsHandler(productService, browsers, store, services.NewNonceStore(0), render, logger).RegisterRoutes(mux, authMiddleware)

	NewHealthHandler(&config.Config{Version: "test"}, "memory", nil, logger).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	app := &testApp{
		server:         srv,
		upstream:       up,
		upstreamServer: upSrv,
		store:          store,
		board:          board,
	}
	app.client = app.newClient(t)
	return app
}

// newClient returns a client with its own cookie jar, i.e. another browser.
func (a *testApp) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.server.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	resp, _ := a.post(t, "/login", url.Values{"email": {testEmail}, "password": {testPassword}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1; url=/", resp.Header.Get("Refresh"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// nonceFor extracts the nonce rendered in the approve/decline form for uuid.
func nonceFor(t *testing.T, body, uuid, action string) string {
	t.Helper()
	re := regexp.MustCompile(`action="/products/` + regexp.QuoteMeta(uuid) + `/` + action + `">\s*<input type="hidden" name="nonce" value="([0-9a-f]+)"`)
	m := re.FindStringSubmatch(body)
	require.Len(t, m, 2, "no %s form for %s", action, uuid)
	return m[1]
}
