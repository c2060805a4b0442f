package download

import (
	"fmt"
	"net/url"
	"strings"
)

// DomainRoot strips path, query and fragment from rawURL, keeping scheme and
// host. A URL without a scheme is taken to be https.
func DomainRoot(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
