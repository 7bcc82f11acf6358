package controllers

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	tumblrURL    = regexp.MustCompile(`^(?:https?://)[\w.-]+\.tumblr\.com/?$`)
	tumblrURLNew = regexp.MustCompile(`^(?:https?://)www\.tumblr\.com/[^/]+$`)
	genericURL   = regexp.MustCompile(`^(?:https?://)[\w.-]+(?:\.[\w.-]+)+/?$`)
)

func hasProtocolNoSpace(url string, minLength int) bool {
	if url == "" || len(url) <= minLength {
		return false
	}
	if strings.IndexFunc(url, unicode.IsSpace) >= 0 {
		return false
	}
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsValidTumblrURL accepts blog URLs of the form https://name.tumblr.com
// and https://www.tumblr.com/name. Media hosts are rejected.
func IsValidTumblrURL(url string) bool {
	return hasProtocolNoSpace(url, 18) &&
		!strings.Contains(url, ".media.tumblr.com") &&
		(tumblrURL.MatchString(url) || tumblrURLNew.MatchString(url))
}

// IsValidURL accepts any http(s) URL of a dotted host without a path.
func IsValidURL(url string) bool {
	return hasProtocolNoSpace(url, 0) && genericURL.MatchString(url)
}

// AddHTTPSProtocol prefixes bare host names with https://.
func AddHTTPSProtocol(url string) string {
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "http") {
		return "https://" + url
	}
	return url
}
