// Package display decides how an external link resource is rendered.
package display

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is a rendering strategy for a link resource. The numeric values are
// stored in the display column and written to backups, so they never change.
type Mode int

const (
	Automatic Mode = 0
	Embed     Mode = 1
	Frame     Mode = 2
	NewWindow Mode = 3
	Download  Mode = 4
	Open      Mode = 5
	Popup     Mode = 6
)

var modeNames = map[Mode]string{
	Automatic: "automatic",
	Embed:     "embed",
	Frame:     "frame",
	NewWindow: "new",
	Download:  "download",
	Open:      "open",
	Popup:     "popup",
}

// String returns the short name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode accepts either a short name ("popup") or a legacy number ("6").
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		m := Mode(n)
		if !m.Valid() {
			return Automatic, fmt.Errorf("unknown display mode %d", n)
		}
		return m, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return Automatic, fmt.Errorf("unknown display mode %q", s)
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode from its name or legacy number.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

var downloadTypes = map[string]bool{
	"application/zip":   true,
	"application/x-tar": true,
	"application/g-zip": true,
	// known to cause trouble when linked externally
	"application/pdf": true,
	"text/html":       true,
}

var embedTypes = map[string]bool{
	"image/gif":                     true,
	"image/jpeg":                    true,
	"image/png":                     true,
	"image/svg+xml":                 true,
	"application/x-shockwave-flash": true,
	"video/x-flv":                   true,
	"video/x-ms-wm":                 true,
	"video/quicktime":               true,
	"video/mpeg":                    true,
	"video/mp4":                     true,
	"audio/mp3":                     true,
	"audio/x-realaudio-plugin":      true,
	"x-realaudio-plugin":            true,
}

// Resolve turns a stored display preference into a concrete mode. An explicit
// choice always wins; Automatic is decided from the URL.
func Resolve(mode Mode, url, siteRoot string) Mode {
	if mode != Automatic {
		return mode
	}

	// Pages of this site come with their own navigation, never frame them.
	if siteRoot != "" && strings.HasPrefix(url, siteRoot) {
		if !strings.Contains(url, "file.php") && strings.Contains(strings.ToLower(url), ".php") {
			return Open
		}
	}

	mimetype := GuessMimeType(url)
	if downloadTypes[mimetype] {
		return Download
	}
	if embedTypes[mimetype] {
		return Embed
	}

	// let the browser deal with it
	return Open
}
