package shopify

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crosplit/internal/apperr"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestOfflineToken(t *testing.T) {
	db := openSQLite(t)
	_, err := db.Exec(`CREATE TABLE shopify_sessions (id TEXT PRIMARY KEY, shop TEXT, "accessToken" TEXT, "isOnline" BOOLEAN)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO shopify_sessions (id, shop, "accessToken", "isOnline") VALUES ('offline_demo.myshopify.com', 'demo.myshopify.com', 'shpat_1', 0)`)
	require.NoError(t, err)

	store := NewSessionStore(db)

	token, err := store.OfflineToken(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "shpat_1", token)

	_, err = store.OfflineToken(context.Background(), "other.myshopify.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = store.OfflineToken(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindUserInput))
}
