// Package models defines API request and response types.
package models

// ScrapeRequest is the body of a POST /scrape-product request.
type ScrapeRequest struct {
	// URL is the absolute product page URL to extract from.
	// Marked optional in the schema so presence is validated by the handler,
	// which returns the documented 400 body instead of a schema error.
	URL string `json:"url,omitempty" doc:"Absolute product page URL"`
}
