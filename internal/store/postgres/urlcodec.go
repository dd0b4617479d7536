package postgres

import "net/url"

// parseURL parses a stored URL string back into a url.URL, used by every
// scan* helper that reads a text column holding a serialized URL.
func parseURL(raw string) (url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, err
	}
	return *parsed, nil
}
