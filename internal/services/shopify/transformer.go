package shopify

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"crosplit/internal/apperr"
	"crosplit/internal/models"
)

const pageGIDPrefix = "gid://shopify/Page/"

// PageGID builds the GraphQL id of a page.
func PageGID(id int64) string {
	return fmt.Sprintf("%s%d", pageGIDPrefix, id)
}

// ParsePageID accepts a numeric id or a page GID and returns the numeric id.
func ParsePageID(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, apperr.UserInput("page id is required")
	}
	raw := ref
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		raw = ref[i+1:]
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.UserInput("invalid page id %q", ref)
	}
	return id, nil
}

// NormalizeShopDomain turns "store" or "https://store.myshopify.com/" into "store.myshopify.com".
func NormalizeShopDomain(shop string) string {
	shop = strings.TrimSpace(strings.ToLower(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimRight(shop, "/")
	if shop != "" && !strings.Contains(shop, ".") {
		shop += ".myshopify.com"
	}
	return shop
}

var handlePathPattern = regexp.MustCompile(`^/pages/([^/]+)`)

// HandleFromURL extracts the page handle from a storefront URL like https://shop.com/pages/about.
func HandleFromURL(pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", apperr.UserInput("please enter a valid URL")
	}
	m := handlePathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", apperr.UserInput("%s is not a Shopify store page URL", pageURL)
	}
	return m[1], nil
}

// ToOriginalPage converts a Shopify page to the mirrored original row
func ToOriginalPage(page *Page) models.OriginalPage {
	suffix := ""
	if page.TemplateSuffix != nil {
		suffix = *page.TemplateSuffix
	}
	return models.OriginalPage{
		PageID:         page.GID(),
		Title:          page.Title,
		Handle:         page.Handle,
		BodyHTML:       page.BodyHTML,
		TemplateSuffix: suffix,
	}
}

// ToDuplicatePage converts a created Shopify page to the mirrored duplicate row
func ToDuplicatePage(page *Page, originalPageID string) models.DuplicatePage {
	return models.DuplicatePage{
		PageID:         page.GID(),
		Title:          page.Title,
		Handle:         page.Handle,
		BodyHTML:       page.BodyHTML,
		OriginalPageID: originalPageID,
	}
}

// HeadingMetafield is the custom.heading metafield the theme extension renders.
func HeadingMetafield(pageID int64, heading string) Metafield {
	return Metafield{
		Namespace:     "custom",
		Key:           "heading",
		Type:          "single_line_text_field",
		Value:         heading,
		OwnerResource: "page",
		OwnerID:       pageID,
	}
}
