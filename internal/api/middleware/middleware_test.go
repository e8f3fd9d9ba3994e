package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"crosplit/internal/apperr"
	"crosplit/internal/logger"
	"crosplit/internal/services/shopify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCronAuth(t *testing.T) {
	r := gin.New()
	r.GET("/cron", CronAuth("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"no scheme", "s3cret", http.StatusOK},
		{"bearer", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cron", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, serve(r, req).Code)
		})
	}
}

func TestFrameAncestors(t *testing.T) {
	r := gin.New()
	r.Use(FrameAncestors())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/?shop=demo", nil))
	assert.Equal(t, "frame-ancestors https://demo.myshopify.com https://admin.shopify.com", w.Header().Get("Content-Security-Policy"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "frame-ancestors https://admin.shopify.com", w.Header().Get("Content-Security-Policy"))
}

type tokenFunc func(ctx context.Context, shop string) (string, error)

func (f tokenFunc) OfflineToken(ctx context.Context, shop string) (string, error) { return f(ctx, shop) }

func TestShopSession(t *testing.T) {
	tokens := tokenFunc(func(ctx context.Context, shop string) (string, error) {
		switch shop {
		case "demo.myshopify.com":
			return "shpat_1", nil
		case "broken.myshopify.com":
			return "", errors.New("connection refused")
		}
		return "", apperr.NotFound("no session")
	})
	newClient := func(shop, token string) *shopify.Client {
		return shopify.NewClient(shop, token, "2025-07", logger.Nop())
	}

	r := gin.New()
	r.GET("/", ShopSession(tokens, newClient, logger.Nop()), func(c *gin.Context) {
		client := ShopClient(c)
		c.String(http.StatusOK, client.ShopDomain())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ShopHeader, "demo.myshopify.com")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "demo.myshopify.com", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/?shop=demo", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/?shop=other", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/?shop=broken", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecoveryAnswersJSON(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logger.Nop()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}
