package shopify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crosplit/internal/apperr"

	"github.com/lib/pq"
)

// SessionStore reads offline access tokens from the table the platform's
// app-auth library maintains. It never writes.
type SessionStore struct {
	db *sql.DB
}

// OpenSessionStore connects to the postgres sessions table with lib/pq.
func OpenSessionStore(databaseURL string) (*SessionStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// NewSessionStore wraps an existing connection, e.g. the sqlite handle in development.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const offlineTokenQuery = `SELECT "accessToken" FROM shopify_sessions WHERE id = $1`

// OfflineToken returns the offline access token for a shop.
func (s *SessionStore) OfflineToken(ctx context.Context, shop string) (string, error) {
	shop = NormalizeShopDomain(shop)
	if shop == "" {
		return "", apperr.UserInput("shop is required")
	}

	var token sql.NullString
	err := s.db.QueryRowContext(ctx, offlineTokenQuery, "offline_"+shop).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !token.Valid) {
		return "", apperr.NotFound("no offline session for %s", shop)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
			return "", apperr.Configuration("session table shopify_sessions does not exist")
		}
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return token.String, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}
