package handlers

import (
	"net/http"

	"crosplit/internal/database"

	"github.com/gin-gonic/gin"
)

// Health pings the database.
func Health(store *database.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := store.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
