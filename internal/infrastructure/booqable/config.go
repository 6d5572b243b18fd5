package booqable

import (
	"errors"
	"strings"
)

// DefaultBaseURL is the boomerang API root of the production account.
const DefaultBaseURL = "https://bicicare.booqable.com/api/boomerang/"

// Errors for Booqable configuration
var (
	ErrConfigMissingAPIKey  = errors.New("booqable: api key is required")
	ErrConfigMissingBaseURL = errors.New("booqable: base url is required")
)

// Config holds configuration for the Booqable API.
type Config struct {
	// BaseURL is the API root, ending in a slash.
	BaseURL string
	// APIKey is sent as a bearer token.
	APIKey string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// PageSize is the number of orders requested per listing page.
	PageSize int
	// MaxPages bounds how many listing pages are followed.
	MaxPages int
}

// Validate validates the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	return nil
}
