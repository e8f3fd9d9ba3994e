package models

import (
	"strings"
	"time"
)

// SettingID is the primary key of the singleton settings row.
const SettingID = 1

// Setting holds app-wide credentials and defaults. There is exactly one row.
type Setting struct {
	ID               uint      `json:"-" gorm:"primaryKey"`
	ConvertAccountID string    `json:"convert_account_id"`
	ConvertProjectID string    `json:"convert_project_id"`
	ConvertAPIKey    string    `json:"convert_api_key"`
	ConvertSecretKey string    `json:"convert_secret_key"`
	OpenAIAPIKey     string    `json:"openai_api_key"`
	PromptTemplate   string    `json:"prompt_template" gorm:"type:text"`
	StorefrontURL    string    `json:"storefront_url"`
	NotifyEmail      string    `json:"notify_email"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasConvertCredentials reports whether every Convert field is filled in.
func (s Setting) HasConvertCredentials() bool {
	return s.ConvertAccountID != "" && s.ConvertProjectID != "" &&
		s.ConvertAPIKey != "" && s.ConvertSecretKey != ""
}

// PageURL returns the public storefront URL of a page handle. When no storefront
// URL is configured the shop's myshopify domain is used.
func (s Setting) PageURL(shopDomain, handle string) string {
	base := strings.TrimRight(s.StorefrontURL, "/")
	if base == "" {
		base = "https://" + shopDomain
	}
	return base + "/pages/" + handle
}

// Masked returns a copy safe to send to the browser.
func (s Setting) Masked() Setting {
	s.ConvertAPIKey = MaskSecret(s.ConvertAPIKey)
	s.ConvertSecretKey = MaskSecret(s.ConvertSecretKey)
	s.OpenAIAPIKey = MaskSecret(s.OpenAIAPIKey)
	return s
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		if secret == "" {
			return ""
		}
		return "****"
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
