// Package views holds the HTML templates rendered by the server.
package views

import "embed"

// FS contains the page templates.
//
//go:embed *.html layouts/*.html view/*.html
var FS embed.FS
