package display

import (
	"path"
	"regexp"
	"strings"
)

// UnknownMimeType is returned for URLs without a recognised extension.
const UnknownMimeType = "document/unknown"

type fileType struct {
	mime string
	icon string
}

// fileTypes is deliberately a fixed table: classification must not change
// with the operating system's MIME registry.
var fileTypes = map[string]fileType{
	"3gp":   {"video/quicktime", "quicktime"},
	"aac":   {"audio/aac", "audio"},
	"aif":   {"audio/x-aiff", "audio"},
	"aiff":  {"audio/x-aiff", "audio"},
	"avi":   {"video/x-ms-wm", "avi"},
	"bmp":   {"image/bmp", "bmp"},
	"csv":   {"text/csv", "spreadsheet"},
	"doc":   {"application/msword", "document"},
	"docx":  {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "document"},
	"epub":  {"application/epub+zip", "epub"},
	"flv":   {"video/x-flv", "flash"},
	"gif":   {"image/gif", "gif"},
	"gtar":  {"application/x-gtar", "archive"},
	"gz":    {"application/g-zip", "archive"},
	"gzip":  {"application/g-zip", "archive"},
	"htm":   {"text/html", "html"},
	"html":  {"text/html", "html"},
	"ico":   {"image/vnd.microsoft.icon", "image"},
	"jpe":   {"image/jpeg", "jpeg"},
	"jpeg":  {"image/jpeg", "jpeg"},
	"jpg":   {"image/jpeg", "jpeg"},
	"js":    {"application/x-javascript", "text"},
	"json":  {"application/json", "text"},
	"m4a":   {"audio/mp4", "mpeg"},
	"m4v":   {"video/mp4", "mpeg"},
	"mov":   {"video/quicktime", "quicktime"},
	"mp3":   {"audio/mp3", "mp3"},
	"mp4":   {"video/mp4", "mpeg"},
	"mpe":   {"video/mpeg", "mpeg"},
	"mpeg":  {"video/mpeg", "mpeg"},
	"mpg":   {"video/mpeg", "mpeg"},
	"odp":   {"application/vnd.oasis.opendocument.presentation", "writer"},
	"ods":   {"application/vnd.oasis.opendocument.spreadsheet", "calc"},
	"odt":   {"application/vnd.oasis.opendocument.text", "writer"},
	"oga":   {"audio/ogg", "audio"},
	"ogg":   {"audio/ogg", "audio"},
	"ogv":   {"video/ogg", "video"},
	"pdf":   {"application/pdf", "pdf"},
	"php":   {"text/html", "html"},
	"png":   {"image/png", "png"},
	"ppt":   {"application/vnd.ms-powerpoint", "powerpoint"},
	"pptx":  {"application/vnd.openxmlformats-officedocument.presentationml.presentation", "powerpoint"},
	"qt":    {"video/quicktime", "quicktime"},
	"ra":    {"audio/x-realaudio-plugin", "audio"},
	"ram":   {"audio/x-pn-realaudio-plugin", "audio"},
	"rm":    {"audio/x-pn-realaudio-plugin", "audio"},
	"rtf":   {"text/rtf", "text"},
	"rv":    {"audio/x-pn-realaudio-plugin", "audio"},
	"svg":   {"image/svg+xml", "image"},
	"svgz":  {"image/svg+xml", "image"},
	"swf":   {"application/x-shockwave-flash", "flash"},
	"swfl":  {"application/x-shockwave-flash", "flash"},
	"tar":   {"application/x-tar", "archive"},
	"tgz":   {"application/g-zip", "archive"},
	"tif":   {"image/tiff", "tiff"},
	"tiff":  {"image/tiff", "tiff"},
	"txt":   {"text/plain", "text"},
	"wav":   {"audio/wav", "wav"},
	"webm":  {"video/webm", "video"},
	"wmv":   {"video/x-ms-wm", "wmv"},
	"xhtml": {"application/xhtml+xml", "html"},
	"xls":   {"application/vnd.ms-excel", "spreadsheet"},
	"xlsx":  {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "spreadsheet"},
	"xml":   {"application/xml", "markup"},
	"zip":   {"application/zip", "archive"},
}

// fileServingHack matches the legacy .../file.php?file=/path/to/file URLs.
var fileServingHack = regexp.MustCompile(`^(.*)/[a-z]*file\.php(\?file=)?(/[^&?#]*)`)

// Extension returns the lowercased file extension of the URL path, with the
// legacy file serving script, the fragment and the query removed.
func Extension(url string) string {
	if m := fileServingHack.FindStringSubmatch(url); m != nil {
		url = m[1] + m[3]
	}
	if i := strings.Index(url, "#"); i >= 0 {
		url = url[:i]
	}
	if i := strings.Index(url, "?"); i >= 0 {
		url = url[:i]
	}
	// A bare host ("http://example.com") has no path to take an extension from.
	if i := strings.Index(url, "//"); i >= 0 && !strings.Contains(url[i+2:], "/") {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(url)), ".")
}

// GuessMimeType guesses the MIME type of a URL from its extension only.
func GuessMimeType(url string) string {
	if ft, ok := fileTypes[Extension(url)]; ok {
		return ft.mime
	}
	return UnknownMimeType
}
