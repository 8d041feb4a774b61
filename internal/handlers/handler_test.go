package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cancionero/internal/config"
	"cancionero/internal/repository"
	"cancionero/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestHandler(t *testing.T, rdb *redis.Client) (*Handler, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.AutoMigrate(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		SessionSecret: "test-secret-12345678901234567890123456789012",
	}

	store := repository.NewStore(db)
	audit := services.NewAuditService(db, logger)
	catalog := services.NewCatalogService(store, rdb, logger)
	accounts := services.NewAccountService(store, catalog, audit, logger)
	favorites := services.NewFavoriteService(store, catalog, audit, logger)

	h := NewHandler(cfg, logger, db, rdb, accounts, favorites, catalog)
	return h, db
}

func setupTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return h.SetupRouter("", "")
}

// testClient replays the session cookie between requests like a browser.
type testClient struct {
	t       *testing.T
	r       *gin.Engine
	cookies map[string]*http.Cookie
}

func newTestClient(t *testing.T, r *gin.Engine) *testClient {
	return &testClient{t: t, r: r, cookies: make(map[string]*http.Cookie)}
}

func (c *testClient) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, path, body)
	require.NoError(c.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *testClient) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil)
}

func (c *testClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return c.do(http.MethodPost, path, form)
}

func (c *testClient) register(name, pass string) {
	c.t.Helper()
	w := c.post("/register/", url.Values{"nombre": {name}, "pass": {pass}})
	require.Equal(c.t, http.StatusFound, w.Code)
}

func (c *testClient) login(name, pass string) {
	c.t.Helper()
	w := c.post("/", url.Values{"nombre": {name}, "pass": {pass}})
	require.Equal(c.t, http.StatusFound, w.Code)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
