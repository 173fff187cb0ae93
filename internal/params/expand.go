package params

import (
	"fmt"
	"net/url"
	"strings"

	"url2/internal/models"
	"url2/internal/validation"
)

// Expand appends the resolved template parameters to base and encodes every
// "&" as "&amp;". Variables missing from values are dropped.
func Expand(base string, tmpl models.ParameterTemplate, values map[string]string) string {
	full := base

	// Names are unique: the first occurrence keeps its place, the last
	// binding wins.
	var unique models.ParameterTemplate
	for _, p := range tmpl {
		unique.Set(p.Name, p.Variable)
	}

	pairs := make([]string, 0, len(unique))
	for _, p := range unique {
		v, ok := values[p.Variable]
		if !ok {
			continue
		}
		pairs = append(pairs, rawURLEncode(p.Name)+"="+rawURLEncode(v))
	}

	if len(pairs) > 0 {
		if validation.HasPrefixFold(full, "teamspeak://") {
			full += "?" + strings.Join(pairs, "?")
		} else {
			join := "&"
			if !strings.Contains(full, "?") {
				join = "?"
			}
			full += join + strings.Join(pairs, "&")
		}
	}

	return strings.ReplaceAll(full, "&", "&amp;")
}

// FullURL prepares a stored URL for output and expands its parameters. The
// result has "&" encoded as "&amp;" and no XSS filtering applied.
func FullURL(raw string, tmpl models.ParameterTemplate, values map[string]string) string {
	full := validation.DecodeEntities(raw)

	if validation.HasKnownScheme(full) {
		full = encodeUnsafeBytes(full)
	} else {
		full = specialChars.Replace(full)
	}

	return Expand(full, tmpl, values)
}

// Raw undoes the "&amp;" encoding of a full URL, for redirects and href
// attributes rendered by an escaping template.
func Raw(full string) string {
	return strings.ReplaceAll(full, "&amp;", "&")
}

var specialChars = strings.NewReplacer(`"`, "%22", `'`, "%27", " ", "%20", "<", "%3C", ">", "%3E")

// encodeUnsafeBytes percent-encodes every byte outside the URL-safe set.
// Multi-byte characters are encoded byte by byte.
func encodeUnsafeBytes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if urlSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func urlSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte(";/?:@=&$_.+!*(),-#%", c) >= 0
}

// rawURLEncode is RFC 3986 percent-encoding: only A-Z a-z 0-9 - _ . ~ stay
// literal and a space becomes %20.
func rawURLEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
