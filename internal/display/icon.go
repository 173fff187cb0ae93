package display

import (
	"strconv"
	"strings"
)

// GuessIcon returns the file-type icon for a link, or "" when the generic
// module icon fits better: bare hosts, directories, HTML and unknown types.
func GuessIcon(url string, size int) string {
	if strings.Count(url, "/") < 3 || strings.HasSuffix(url, "/") {
		return ""
	}

	ft, ok := fileTypes[Extension(url)]
	if !ok || ft.icon == "html" {
		return ""
	}

	icon := "f/" + ft.icon
	if size > 0 {
		icon += "-" + strconv.Itoa(size)
	}
	return icon
}
