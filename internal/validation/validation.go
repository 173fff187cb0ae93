package validation

import (
	"net"
	"net/url"
	"strings"
)

// metadataIPs are cloud metadata endpoints (AWS/GCP, Azure) that a link
// checker must never reach.
var metadataIPs = []net.IP{
	net.ParseIP("169.254.169.254"),
	net.ParseIP("168.63.129.16"),
}

// IsWebURL reports whether urlStr is an absolute http(s) URL with a host.
// Only those targets are probed by the link health checker.
func IsWebURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// IsPrivateIP checks if an IP address is in a private/reserved range.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	for _, m := range metadataIPs {
		if ip.Equal(m) {
			return true
		}
	}
	return false
}

// Resolver looks up host addresses.
type Resolver interface {
	LookupIP(host string) ([]net.IP, error)
}

type systemResolver struct{}

func (systemResolver) LookupIP(host string) ([]net.IP, error) { return net.LookupIP(host) }

// DefaultResolver uses the system resolver.
var DefaultResolver Resolver = systemResolver{}

// IsPrivateHost reports whether host (optionally with a port) resolves to
// any private address. Unresolvable hosts count as private.
func IsPrivateHost(r Resolver, host string) (bool, error) {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return IsPrivateIP(ip), nil
	}

	ips, err := r.LookupIP(hostname)
	if err != nil {
		return true, err
	}

	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return true, nil
		}
	}
	return false, nil
}

// ValidateURLForHealthCheck validates that a stored link is safe to probe
// from the server: web URLs only, never private or metadata addresses.
func ValidateURLForHealthCheck(r Resolver, urlStr string) (bool, string) {
	valid, msg := IsWebURL(urlStr)
	if !valid {
		return false, msg
	}

	u, _ := url.Parse(urlStr)

	isPrivate, err := IsPrivateHost(r, u.Host)
	if err != nil {
		return false, "Cannot resolve hostname"
	}
	if isPrivate {
		return false, "URL points to a private or reserved IP address"
	}

	return true, ""
}
