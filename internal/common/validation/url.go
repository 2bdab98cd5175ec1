package validation

import (
	"net/url"
	"strings"
)

// NormalizeMoodleURL trims the input, adds https:// when no scheme is given and
// strips one trailing slash.
func NormalizeMoodleURL(raw string) string {
	normalized := strings.TrimSpace(raw)

	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}

	return strings.TrimSuffix(normalized, "/")
}

// IsValidURL accepts http(s) URLs with a host. A missing scheme is read as https.
func IsValidURL(raw string) bool {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return false
	}
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	return host != "" && !strings.ContainsAny(host, " \t\r\n")
}

// ExtractDomain returns the host of a URL without a leading "www.". Unparseable
// input is returned unchanged.
func ExtractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
