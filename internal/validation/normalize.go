package validation

import (
	"html"
	"regexp"
	"strings"
)

var (
	schemePrefix   = regexp.MustCompile(`^[a-zA-Z]+:`)
	knownSchemeURL = regexp.MustCompile(`^[a-zA-Z]+://([^:@\s]+:[^@\s]+@)?[a-zA-Z0-9_.\-]+(:[0-9]+)?(/[^#]*)?(#.*)?$`)
	anySchemeURL   = regexp.MustCompile(`^[a-zA-Z]+://..+$`)
	hierarchical   = regexp.MustCompile(`^[a-zA-Z]+://`)
	entityRef      = regexp.MustCompile(`&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)
)

// DecodeEntities decodes HTML character references. Only terminated
// references count, so query strings such as "&region=eu" survive.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityRef.ReplaceAllStringFunc(s, html.UnescapeString)
}

// NormalizeURL repairs a URL typed by an author so they see the fixed value
// next time they edit it. It never rejects input and does no XSS filtering.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)

	// Keep the raw URI, not its HTML-encoded form. Decoding runs until the
	// value is stable so that normalizing a normalized URL changes nothing.
	for {
		decoded := strings.TrimSpace(DecodeEntities(u))
		if decoded == u {
			break
		}
		u = decoded
	}

	// relative links are not allowed, /xx/yy links are
	if !schemePrefix.MatchString(u) && !strings.HasPrefix(u, "/") {
		u = "http://" + u
	}

	return u
}

// HasKnownScheme reports whether u is rooted at "/" or uses http, https or
// ftp. Scheme matching is ASCII case-insensitive.
func HasKnownScheme(u string) bool {
	return strings.HasPrefix(u, "/") ||
		HasPrefixFold(u, "http:") ||
		HasPrefixFold(u, "https:") ||
		HasPrefixFold(u, "ftp:")
}

// HasPrefixFold is strings.HasPrefix ignoring ASCII case. prefix must be
// lowercase.
func HasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != prefix[i] {
			return false
		}
	}
	return true
}

// AppearsValidURL does weak URL validation, looking for severely malformed
// URLs only. Web and ftp URLs get a host shape check; any other scheme only
// needs "scheme://" and something after it.
func AppearsValidURL(candidate string) bool {
	if HasKnownScheme(candidate) {
		return knownSchemeURL.MatchString(candidate)
	}
	return anySchemeURL.MatchString(candidate)
}

const invalidURLMsg = "Entered URL is invalid"

// ValidateSubmittedURL is the form-side check run before a link is saved.
// General URIs such as mailto: or teamspeak: are accepted as they are.
func ValidateSubmittedURL(raw string) (bool, string) {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		return false, "URL is required"
	case strings.HasPrefix(u, "/"):
		return true, ""
	case hierarchical.MatchString(u) || HasKnownScheme(u):
		if !AppearsValidURL(u) {
			return false, invalidURLMsg
		}
		return true, ""
	case schemePrefix.MatchString(u):
		return true, ""
	default:
		// saving prefixes http://, so check that result
		if !AppearsValidURL("http://" + u) {
			return false, invalidURLMsg
		}
		return true, ""
	}
}
