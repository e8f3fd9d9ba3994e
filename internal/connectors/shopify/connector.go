package shopify

import (
	"context"
	"fmt"

	"crosplit/internal/apperr"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/services/shopify"
)

// pageBatchSize is the pages.json page size.
const pageBatchSize = 50

// PageLister is the part of the admin client sync needs.
type PageLister interface {
	ShopDomain() string
	ListPages(ctx context.Context, limit int, pageInfo string) (*shopify.PagesResponse, error)
}

type SyncResult struct {
	Fetched int `json:"fetched"`
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// ShopifyConnector mirrors a store's pages into the original_pages table.
type ShopifyConnector struct {
	store  *database.Database
	logger *logger.Logger
}

func New(store *database.Database, logger *logger.Logger) *ShopifyConnector {
	return &ShopifyConnector{
		store:  store,
		logger: logger,
	}
}

// SyncPages walks every page of the store, following rel="next" cursors, and
// upserts each one. Pages this app created as duplicates are skipped.
func (sc *ShopifyConnector) SyncPages(ctx context.Context, client PageLister) (*SyncResult, error) {
	sc.logger.Info("Syncing pages from Shopify store: %s", client.ShopDomain())

	var all []shopify.Page
	pageInfo := ""
	for {
		resp, err := client.ListPages(ctx, pageBatchSize, pageInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pages: %w", err)
		}
		all = append(all, resp.Pages...)
		if resp.NextPageInfo == "" || resp.NextPageInfo == pageInfo {
			break
		}
		pageInfo = resp.NextPageInfo
	}

	result := &SyncResult{Fetched: len(all)}
	for i := range all {
		page := &all[i]
		_, err := sc.store.GetDuplicatePageByPageID(ctx, page.GID())
		if err == nil {
			result.Skipped++
			continue
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return result, err
		}
		if _, err := sc.store.UpsertOriginalPage(ctx, shopify.ToOriginalPage(page)); err != nil {
			return result, err
		}
		result.Saved++
	}

	sc.logger.Debug("Shopify sync completed: %+v", *result)
	return result, nil
}
