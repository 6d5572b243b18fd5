package reeleezee

import (
	"errors"
	"strings"
)

// DefaultBaseURL is the API root; the administration id is appended to it.
const DefaultBaseURL = "https://apps.reeleezee.nl/api/v1/"

// DefaultClientVersion is sent in the x-client header.
const DefaultClientVersion = "A202509.2.3"

// Errors for Reeleezee configuration
var (
	ErrConfigMissingUsername = errors.New("reeleezee: username is required")
	ErrConfigMissingPassword = errors.New("reeleezee: password is required")
	ErrConfigMissingAdminID  = errors.New("reeleezee: administration id is required")
)

// Config holds configuration for the Reeleezee API.
type Config struct {
	BaseURL  string
	Username string
	Password string
	// AdminID selects the administration all requests are scoped to.
	AdminID string
	// ClientVersion is the value of the x-client header.
	ClientVersion  string
	TimeoutSeconds int
	// SearchLimit is the $top used by customer and invoice lookups.
	SearchLimit int
	// CustomerEntityTypeID is the entity type assigned to new customers.
	CustomerEntityTypeID string
}

// Validate validates the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.Username == "" {
		return ErrConfigMissingUsername
	}
	if c.Password == "" {
		return ErrConfigMissingPassword
	}
	if c.AdminID == "" {
		return ErrConfigMissingAdminID
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.ClientVersion == "" {
		c.ClientVersion = DefaultClientVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 10
	}
	if c.CustomerEntityTypeID == "" {
		c.CustomerEntityTypeID = "83b1d717-a669-4687-ace0-4de08ee58f93"
	}
	return nil
}

// AdministrationURL returns the base for all administration-scoped resources.
func (c Config) AdministrationURL() string {
	return c.BaseURL + c.AdminID + "/"
}
