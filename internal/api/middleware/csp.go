package middleware

import (
	"fmt"

	"crosplit/internal/services/shopify"

	"github.com/gin-gonic/gin"
)

// FrameAncestors allows the app to be embedded in the Shopify admin of the requesting shop.
func FrameAncestors() gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := "frame-ancestors https://admin.shopify.com"
		if shop := shopify.NormalizeShopDomain(c.Query("shop")); shop != "" {
			policy = fmt.Sprintf("frame-ancestors https://%s https://admin.shopify.com", shop)
		}
		c.Header("Content-Security-Policy", policy)
		c.Next()
	}
}
