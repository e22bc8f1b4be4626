package extractor

import "net/http"

// Option configures the HTTP extractor.
type Option func(*HTTP)

// WithHTTPClient replaces the default client, e.g. to add transport settings.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}
