package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"crosplit/internal/apperr"
	"crosplit/internal/config"
	"crosplit/internal/logger"
	"crosplit/internal/models"
)

// DefaultPromptTemplate is used when the settings row carries no template.
// {url} is replaced with the page URL.
const DefaultPromptTemplate = `You are an SEO expert for Shopify stores. Analyze the content at this URL: {url}. Suggest three creative, keyword-rich, SEO-optimized page titles that will help improve organic traffic. Reply only in valid JSON format with the key "pages" as an array, for example: {"pages": [{ "title": "First title", "handle": "first-handle" }, { "title": "Second title", "handle": "second-handle" }, { "title": "Third title", "handle": "third-handle" }]}`

const urlPlaceholder = "{url}"

// Suggestion is a candidate title and handle for a duplicate page.
type Suggestion struct {
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// OpenAI API structures
type OpenAIRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIResponse struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message Message `json:"message"`
}

// Suggester asks a chat-completion model for alternative page titles.
type Suggester struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *logger.Logger
}

func New(cfg *config.Config, logger *logger.Logger) *Suggester {
	return &Suggester{
		baseURL:    strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		model:      cfg.OpenAIModel,
		maxTokens:  cfg.OpenAIMaxTokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Suggest returns title suggestions for the page at pageURL. On any failure it
// returns an empty list and an error; there is no retry.
func (s *Suggester) Suggest(ctx context.Context, settings models.Setting, pageURL string) ([]Suggestion, error) {
	if settings.OpenAIAPIKey == "" {
		return []Suggestion{}, apperr.Configuration("OpenAI API key not configured")
	}

	template := settings.PromptTemplate
	if strings.TrimSpace(template) == "" {
		template = DefaultPromptTemplate
	}
	prompt := strings.ReplaceAll(template, urlPlaceholder, pageURL)

	content, err := s.callOpenAI(ctx, settings.OpenAIAPIKey, prompt)
	if err != nil {
		return []Suggestion{}, err
	}

	suggestions, err := ParseSuggestions(content)
	if err != nil {
		s.logger.Warn("discarding model response for %s: %v", pageURL, err)
		return []Suggestion{}, apperr.Upstream("openai", 0, content, err)
	}
	return suggestions, nil
}

var fencePattern = regexp.MustCompile("(?i)```(?:json)?")

// ParseSuggestions strips code fences from a model reply and extracts the
// pages array. Entries without a string title and handle are dropped.
func ParseSuggestions(content string) ([]Suggestion, error) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(content, ""))

	var reply struct {
		Pages []json.RawMessage `json:"pages"`
	}
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return []Suggestion{}, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if reply.Pages == nil {
		return []Suggestion{}, fmt.Errorf("model response has no pages array")
	}

	suggestions := make([]Suggestion, 0, len(reply.Pages))
	for _, raw := range reply.Pages {
		var entry map[string]interface{}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		title, okTitle := entry["title"].(string)
		handle, okHandle := entry["handle"].(string)
		if !okTitle || !okHandle {
			continue
		}
		suggestions = append(suggestions, Suggestion{Title: title, Handle: handle})
	}
	if len(suggestions) == 0 {
		return suggestions, fmt.Errorf("model response pages array has no valid entries")
	}
	return suggestions, nil
}

func (s *Suggester) callOpenAI(ctx context.Context, apiKey, prompt string) (string, error) {
	request := OpenAIRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperr.Upstream("openai", 0, "", fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Upstream("openai", resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("OpenAI API error: %d %s", resp.StatusCode, string(body))
		return "", apperr.Upstream("openai", resp.StatusCode, string(body), nil)
	}

	var openAIResp OpenAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return "", apperr.Upstream("openai", resp.StatusCode, string(body), fmt.Errorf("failed to parse response: %w", err))
	}

	if len(openAIResp.Choices) == 0 {
		return "", apperr.Upstream("openai", resp.StatusCode, string(body), fmt.Errorf("no response from OpenAI"))
	}

	return openAIResp.Choices[0].Message.Content, nil
}
