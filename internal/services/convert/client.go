// Package convert is a thin client for the Convert.com experimentation REST API.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crosplit/internal/apperr"
	"crosplit/internal/logger"
	"crosplit/internal/models"
)

type Credentials struct {
	AccountID string
	ProjectID string
	APIKey    string
	SecretKey string
}

// CredentialsFrom extracts Convert credentials from the settings row.
func CredentialsFrom(s models.Setting) (Credentials, error) {
	if !s.HasConvertCredentials() {
		return Credentials{}, apperr.Configuration("convert account, project and API credentials must be configured")
	}
	return Credentials{
		AccountID: s.ConvertAccountID,
		ProjectID: s.ConvertProjectID,
		APIKey:    s.ConvertAPIKey,
		SecretKey: s.ConvertSecretKey,
	}, nil
}

type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL string, creds Credentials, logger *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) projectPath(format string, args ...interface{}) string {
	return fmt.Sprintf("/v2/accounts/%s/projects/%s", c.creds.AccountID, c.creds.ProjectID) + fmt.Sprintf(format, args...)
}

// AddLocation registers a location and returns its id.
func (c *Client) AddLocation(ctx context.Context, location Location) (ID, error) {
	var resp struct {
		ID ID `json:"id"`
	}
	raw, err := c.do(ctx, http.MethodPost, c.projectPath("/locations/add"), location, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", apperr.Upstream("convert", 0, string(raw), fmt.Errorf("failed to create location: response has no id"))
	}
	return resp.ID, nil
}

// AddExperience registers an experience and returns it.
func (c *Client) AddExperience(ctx context.Context, input ExperienceInput) (*Experience, error) {
	var exp Experience
	raw, err := c.do(ctx, http.MethodPost, c.projectPath("/experiences/add"), input, &exp)
	if err != nil {
		return nil, err
	}
	if exp.ID == "" {
		return nil, apperr.Upstream("convert", 0, string(raw), fmt.Errorf("failed to create experience: response has no id"))
	}
	return &exp, nil
}

// GetExperience fetches an experience with its variations.
func (c *Client) GetExperience(ctx context.Context, experienceID string) (*Experience, error) {
	var exp Experience
	raw, err := c.do(ctx, http.MethodGet, c.projectPath("/experiences/%s?include[]=variations", experienceID), nil, &exp)
	if err != nil {
		return nil, err
	}
	if exp.ID == "" {
		return nil, apperr.Upstream("convert", 0, string(raw), fmt.Errorf("experience response has no id"))
	}
	for i, v := range exp.Variations {
		if v.ID == "" {
			return nil, apperr.Upstream("convert", 0, string(raw), fmt.Errorf("variation %d has no id", i))
		}
	}
	return &exp, nil
}

// UpdateExperienceStatus moves an experience to status.
func (c *Client) UpdateExperienceStatus(ctx context.Context, experienceID, status string) error {
	_, err := c.do(ctx, http.MethodPatch, c.projectPath("/experiences/%s/update", experienceID), map[string]string{"status": status}, nil)
	return err
}

// DeleteExperience removes an archived experience.
func (c *Client) DeleteExperience(ctx context.Context, experienceID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.projectPath("/experiences/%s/delete", experienceID), nil, nil)
	return err
}

// DeleteVariation removes one arm from an experience.
func (c *Client) DeleteVariation(ctx context.Context, experienceID, variationID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.projectPath("/experiences/%s/variations/%s/delete", experienceID, variationID), nil, nil)
	return err
}

// AggregatedReport fetches and validates the per-goal report of an experience.
func (c *Client) AggregatedReport(ctx context.Context, experienceID string) ([]GoalReport, error) {
	raw, err := c.do(ctx, http.MethodPost, c.projectPath("/experiences/%s/aggregated_report", experienceID), struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	goals, err := parseReport(raw)
	if err != nil {
		return nil, apperr.Upstream("convert", 0, string(raw), err)
	}
	return goals, nil
}

// ConvertVariation declares a variation the winner of a completed experience.
func (c *Client) ConvertVariation(ctx context.Context, experienceID, variationID string) error {
	_, err := c.do(ctx, http.MethodPatch, c.projectPath("/experiences/%s/variations/%s/convert", experienceID, variationID), map[string]string{"status": StatusCompleted}, nil)
	return err
}

// do issues an authenticated request and returns the raw body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s:%s", c.creds.APIKey, c.creds.SecretKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("convert", 0, "", fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Upstream("convert", resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Convert API call failed: %s %s -> %d %s", method, path, resp.StatusCode, string(raw))
		return raw, apperr.Upstream("convert", resp.StatusCode, string(raw), nil)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, apperr.Upstream("convert", resp.StatusCode, string(raw), fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return raw, nil
}
