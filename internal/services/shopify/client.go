package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crosplit/internal/apperr"
	"crosplit/internal/logger"

	"github.com/tomnomnom/linkheader"
)

type Client struct {
	shopDomain  string
	accessToken string
	baseURL     string
	httpClient  *http.Client
	logger      *logger.Logger
}

type Option func(*Client)

// WithBaseURL overrides the admin API root, e.g. for a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(shopDomain, accessToken, apiVersion string, logger *logger.Logger, opts ...Option) *Client {
	shopDomain = NormalizeShopDomain(shopDomain)
	c := &Client{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", shopDomain, apiVersion),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShopDomain returns the myshopify domain the client talks to.
func (c *Client) ShopDomain() string {
	return c.shopDomain
}

// CreatePage creates a page in the online store
func (c *Client) CreatePage(ctx context.Context, input PageInput) (*Page, error) {
	payload := struct {
		Page PageInput `json:"page"`
	}{Page: input}

	var resp struct {
		Page Page `json:"page"`
	}
	if err := c.do(ctx, http.MethodPost, "/pages.json", nil, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Page.ID == 0 {
		return nil, apperr.Upstream("shopify", 0, "", fmt.Errorf("page create returned no id"))
	}
	return &resp.Page, nil
}

// CreateMetafield attaches a metafield to a resource
func (c *Client) CreateMetafield(ctx context.Context, metafield Metafield) error {
	payload := struct {
		Metafield Metafield `json:"metafield"`
	}{Metafield: metafield}
	return c.do(ctx, http.MethodPost, "/metafields.json", nil, payload, nil)
}

// DeletePage removes a page from the online store
func (c *Client) DeletePage(ctx context.Context, pageID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/pages/%d.json", pageID), nil, nil, nil)
}

// GetPageByHandle fetches the page with the given handle via REST
func (c *Client) GetPageByHandle(ctx context.Context, handle string) (*Page, error) {
	var resp PagesResponse
	q := url.Values{}
	q.Set("handle", handle)
	if err := c.do(ctx, http.MethodGet, "/pages.json", q, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Pages) == 0 {
		return nil, apperr.NotFound("page %q not found", handle)
	}
	return &resp.Pages[0], nil
}

// HandleTaken reports whether a page with this handle already exists, using the GraphQL admin API.
func (c *Client) HandleTaken(ctx context.Context, handle string) (bool, error) {
	req := graphQLRequest{
		Query:     pagesByHandleQuery,
		Variables: map[string]interface{}{"query": "handle:" + handle},
	}
	var resp pagesByQueryResponse
	if err := c.do(ctx, http.MethodPost, "/graphql.json", nil, req, &resp); err != nil {
		return false, err
	}
	if len(resp.Errors) > 0 {
		return false, apperr.Upstream("shopify", 0, resp.Errors[0].Message, fmt.Errorf("graphql error"))
	}
	for _, node := range resp.Data.Pages.Nodes {
		if node.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

// ListPages fetches one page of pages. pageInfo is the cursor from a previous call.
func (c *Client) ListPages(ctx context.Context, limit int, pageInfo string) (*PagesResponse, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	if pageInfo != "" {
		q.Set("page_info", pageInfo)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/pages.json", q, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("shopify", 0, "", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Upstream("shopify", resp.StatusCode, string(body), nil)
	}

	var pagesResp PagesResponse
	if err := json.Unmarshal(body, &pagesResp); err != nil {
		return nil, apperr.Upstream("shopify", resp.StatusCode, "", fmt.Errorf("failed to decode response: %w", err))
	}
	pagesResp.NextPageInfo = nextPageInfo(resp.Header.Get("Link"))
	return &pagesResp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Add authentication header
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	c.logger.Debug("shopify %s %s", method, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream("shopify", 0, "", fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Upstream("shopify", resp.StatusCode, string(respBody), nil)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apperr.Upstream("shopify", resp.StatusCode, "", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// nextPageInfo extracts the rel="next" cursor from a Link header.
func nextPageInfo(linkHeader string) string {
	for _, link := range linkheader.Parse(linkHeader).FilterByRel("next") {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		if cursor := u.Query().Get("page_info"); cursor != "" {
			return cursor
		}
	}
	return ""
}
