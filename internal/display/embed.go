package display

import (
	"fmt"
	"strings"
)

// Default popup window size in pixels.
const (
	DefaultPopupWidth  = 620
	DefaultPopupHeight = 450
)

// Embed kinds select the markup used for an embedded link.
const (
	KindImage  = "image"
	KindVideo  = "video"
	KindAudio  = "audio"
	KindObject = "object"
)

// EmbedKind picks the element used to embed content of the given MIME type.
func EmbedKind(mimetype string) string {
	switch {
	case mimetype == "image/gif" || mimetype == "image/jpeg" || mimetype == "image/png":
		return KindImage
	case strings.HasPrefix(mimetype, "video/"):
		return KindVideo
	case strings.HasPrefix(mimetype, "audio/"):
		return KindAudio
	default:
		return KindObject
	}
}

// PopupFeatures builds the window.open feature list. Zero sizes fall back to
// the defaults.
func PopupFeatures(width, height int) string {
	if width <= 0 {
		width = DefaultPopupWidth
	}
	if height <= 0 {
		height = DefaultPopupHeight
	}
	return fmt.Sprintf("width=%d,height=%d,toolbar=no,location=no,menubar=no,copyhistory=no,status=no,directories=no,scrollbars=yes,resizable=yes", width, height)
}

// IsScriptURL reports whether url would run code in the browser when
// followed. Browsers ignore whitespace and control characters inside the
// scheme, so those are dropped before comparing.
func IsScriptURL(url string) bool {
	scheme, _, ok := strings.Cut(url, ":")
	if !ok {
		return false
	}
	scheme = strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, scheme)
	switch strings.ToLower(scheme) {
	case "javascript", "vbscript", "data":
		return true
	}
	return false
}

// PopupOnClick is the onclick handler opening url in a popup window. Script
// URLs get no handler.
func PopupOnClick(url string, width, height int) string {
	if IsScriptURL(url) {
		return ""
	}
	return fmt.Sprintf("window.open('%s', '', '%s'); return false;", escapeJS(url), PopupFeatures(width, height))
}

// NewWindowOnClick is the onclick handler opening url in a new window.
// Script URLs get no handler.
func NewWindowOnClick(url string) string {
	if IsScriptURL(url) {
		return ""
	}
	return fmt.Sprintf("window.open('%s'); return false;", escapeJS(url))
}

var jsEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "</", `<\/`)

// escapeJS makes s safe inside a single-quoted JavaScript string literal.
func escapeJS(s string) string {
	return jsEscaper.Replace(s)
}
