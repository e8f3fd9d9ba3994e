package shopify

import (
	"time"
)

// Page represents a Shopify online store page
type Page struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Handle            string     `json:"handle"`
	BodyHTML          string     `json:"body_html"`
	TemplateSuffix    *string    `json:"template_suffix"`
	ShopID            int64      `json:"shop_id"`
	AdminGraphQLAPIID string     `json:"admin_graphql_api_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	PublishedAt       *time.Time `json:"published_at"`
}

// GID returns the page's GraphQL id, synthesising one when the API omitted it.
func (p Page) GID() string {
	if p.AdminGraphQLAPIID != "" {
		return p.AdminGraphQLAPIID
	}
	return PageGID(p.ID)
}

// PageInput is the writable subset of a page used on create.
type PageInput struct {
	Title          string  `json:"title"`
	Handle         string  `json:"handle"`
	BodyHTML       string  `json:"body_html"`
	TemplateSuffix *string `json:"template_suffix,omitempty"`
}

// Metafield represents a metafield attached to a resource
type Metafield struct {
	ID            int64  `json:"id,omitempty"`
	Namespace     string `json:"namespace"`
	Key           string `json:"key"`
	Type          string `json:"type"`
	Value         string `json:"value"`
	OwnerResource string `json:"owner_resource"`
	OwnerID       int64  `json:"owner_id"`
}

// PagesResponse represents one page of the pages API
type PagesResponse struct {
	Pages        []Page `json:"pages"`
	NextPageInfo string `json:"-"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type pagesByQueryResponse struct {
	Data struct {
		Pages struct {
			Nodes []struct {
				ID     string `json:"id"`
				Title  string `json:"title"`
				Handle string `json:"handle"`
			} `json:"nodes"`
		} `json:"pages"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

const pagesByHandleQuery = `query($query: String!) {
  pages(first: 1, query: $query) {
    nodes {
      id
      title
      handle
    }
  }
}`
