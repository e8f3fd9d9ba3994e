package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crosplit/internal/api/middleware"
	"crosplit/internal/apperr"
	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/models"
	"crosplit/internal/services/convert"
	"crosplit/internal/services/experiment"
	"crosplit/internal/services/notify"
	"crosplit/internal/services/shopify"
)

const testShop = "demo.myshopify.com"

type fakeSessions map[string]string

func (f fakeSessions) OfflineToken(ctx context.Context, shop string) (string, error) {
	if token, ok := f[shop]; ok {
		return token, nil
	}
	return "", apperr.NotFound("no offline session for %s", shop)
}

type nopSender struct{}

func (nopSender) Send(ctx context.Context, msg notify.Message) error { return nil }

// idleConvert answers every call with an empty result.
type idleConvert struct{}

func (idleConvert) AddLocation(ctx context.Context, location convert.Location) (convert.ID, error) {
	return "", apperr.Upstream("convert", http.StatusBadRequest, "", nil)
}
func (idleConvert) AddExperience(ctx context.Context, input convert.ExperienceInput) (*convert.Experience, error) {
	return nil, apperr.Upstream("convert", http.StatusBadRequest, "", nil)
}
func (idleConvert) GetExperience(ctx context.Context, id string) (*convert.Experience, error) {
	return nil, apperr.NotFound("experience %s not found", id)
}
func (idleConvert) UpdateExperienceStatus(ctx context.Context, id, status string) error { return nil }
func (idleConvert) DeleteExperience(ctx context.Context, id string) error               { return nil }
func (idleConvert) DeleteVariation(ctx context.Context, id, variationID string) error   { return nil }
func (idleConvert) AggregatedReport(ctx context.Context, id string) ([]convert.GoalReport, error) {
	return nil, nil
}
func (idleConvert) ConvertVariation(ctx context.Context, id, variationID string) error { return nil }

type testServer struct {
	store   *database.Database
	router  *gin.Engine
	shopify *http.ServeMux
	openai  *http.ServeMux
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	store := database.Wrap(db)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	ts := &testServer{store: store, shopify: http.NewServeMux(), openai: http.NewServeMux()}
	shopifyAPI := httptest.NewServer(ts.shopify)
	t.Cleanup(shopifyAPI.Close)
	openaiAPI := httptest.NewServer(ts.openai)
	t.Cleanup(openaiAPI.Close)

	cfg := &config.Config{
		AppURL:          "https://app.test",
		AllowedOrigins:  []string{"https://admin.shopify.com"},
		CronSecret:      "cron-secret",
		OpenAIBaseURL:   openaiAPI.URL,
		OpenAIModel:     "gpt-4o-mini",
		OpenAIMaxTokens: 200,
	}
	if mutate != nil {
		mutate(cfg)
	}

	deps := Dependencies{
		Sessions: fakeSessions{testShop: "shpat_test"},
		NewShopClient: func(shop, token string) *shopify.Client {
			return shopify.NewClient(shop, token, "2025-07", logger.Nop(), shopify.WithBaseURL(shopifyAPI.URL))
		},
		Sender: nopSender{},
		NewConvert: func(settings models.Setting) (experiment.ExperienceAPI, error) {
			return idleConvert{}, nil
		},
	}
	ts.router = New(cfg, logger.Nop(), store, deps).GetRouter()
	return ts
}

func (ts *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

var shopHeaders = map[string]string{middleware.ShopHeader: testShop}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors")
}

func TestAdminRoutesRequireShopSession(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/pages", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/pages", nil, map[string]string{middleware.ShopHeader: "unknown.myshopify.com"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/pages", nil, shopHeaders)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["total"])
}

func TestSettingsAreMaskedAndSecretsKept(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/settings", nil, shopHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["configured"])

	w = ts.do(http.MethodPut, "/api/settings", map[string]string{
		"convert_account_id": "10",
		"convert_project_id": "20",
		"convert_api_key":    "api-key-1234",
		"convert_secret_key": "secret-5678",
		"storefront_url":     "https://shop.test/",
	}, shopHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "********1234", data["convert_api_key"])
	assert.Equal(t, "https://shop.test", data["storefront_url"])

	// Resubmitting the masked form keeps the stored secrets.
	data["notify_email"] = "merchant@shop.test"
	w = ts.do(http.MethodPut, "/api/settings", data, shopHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	saved, err := ts.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "api-key-1234", saved.ConvertAPIKey)
	assert.Equal(t, "secret-5678", saved.ConvertSecretKey)
	assert.Equal(t, "merchant@shop.test", saved.NotifyEmail)
}

func TestCronRoutesCheckSecret(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.store.SaveSettings(context.Background(), models.Setting{
		ConvertAccountID: "10", ConvertProjectID: "20", ConvertAPIKey: "k", ConvertSecretKey: "s",
	})
	require.NoError(t, err)

	w := ts.do(http.MethodPost, "/api/cron/significance", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/cron/significance", nil, map[string]string{"Authorization": "Bearer cron-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = ts.do(http.MethodPost, "/api/cron/reconcile", nil, map[string]string{"Authorization": "Bearer cron-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCronRoutesClosedWithoutSecret(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.CronSecret = "" })
	w := ts.do(http.MethodPost, "/api/cron/reconcile", nil, map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestApprovalForm(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/app/variant/approve?goalId=g1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing goalId")

	w = ts.do(http.MethodGet, "/app/variant/approve?goalId=g1&variantId=v2&experienceId=e3", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="experienceId" value="e3"`)
	assert.Contains(t, w.Body.String(), "<strong>v2</strong>")
}

func TestApproveUnknownExperienceRendersError(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.store.SaveSettings(context.Background(), models.Setting{
		ConvertAccountID: "10", ConvertProjectID: "20", ConvertAPIKey: "k", ConvertSecretKey: "s",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/app/variant/approve", strings.NewReader("goalId=g1&variantId=v2&experienceId=e3"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Error:")
}

func TestSuggestReturnsPagesAndOriginal(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.store.SaveSettings(context.Background(), models.Setting{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)

	ts.shopify.HandleFunc("/pages.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "about-us", r.URL.Query().Get("handle"))
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		w.Write([]byte(`{"pages":[{"id":42,"title":"About us","handle":"about-us"}]}`))
	})
	ts.openai.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		reply := "```json\n{\"pages\":[{\"title\":\"Our Story\",\"handle\":\"our-story\"}]}\n```"
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	})

	w := ts.do(http.MethodPost, "/api/page", map[string]string{"page_url": "https://shop.test/pages/about-us"}, shopHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	pages := body["pages"].([]interface{})
	require.Len(t, pages, 1)
	assert.Equal(t, "our-story", pages[0].(map[string]interface{})["handle"])
	assert.EqualValues(t, 42, body["originalPage"].(map[string]interface{})["id"])
}

func TestSubmitValidatesBody(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/submit/pages", map[string]interface{}{"pages": []interface{}{}}, shopHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/submit/pages", map[string]interface{}{
		"pages": []map[string]string{{"title": "A", "handle": "a"}},
	}, shopHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUnknownPageIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.store.SaveSettings(context.Background(), models.Setting{
		ConvertAccountID: "10", ConvertProjectID: "20", ConvertAPIKey: "k", ConvertSecretKey: "s",
	})
	require.NoError(t, err)
	ts.shopify.HandleFunc("/pages/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected storefront call %s %s", r.Method, r.URL.Path)
	})

	w := ts.do(http.MethodPost, "/api/delete/page", map[string]interface{}{"pageId": 77}, shopHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["kind"])

	w = ts.do(http.MethodPost, "/api/delete/page", map[string]interface{}{}, shopHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/pages", nil)
	req.Header.Set("Origin", "https://admin.shopify.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.shopify.com", w.Header().Get("Access-Control-Allow-Origin"))
}
