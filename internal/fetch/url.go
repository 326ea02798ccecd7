package fetch

import (
	"fmt"
	"net/url"
)

// composeURL merges query parameters into rawURL before any strategy
// executes. Keys already present in the URL are overwritten so the
// recorded final URL always reflects the fully composed request target.
func composeURL(rawURL string, query map[string]string) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	values := parsed.Query()
	for key, value := range query {
		values.Set(key, value)
	}
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}
