// Package ui provides the embedded upload page served at the site root.
package ui

import (
	_ "embed"
)

// IndexHTML is the spreadsheet upload and batch progress page.
// It talks to /api/v1 and follows progress over /api/v1/batches/stream.
//
//go:embed index.html
var IndexHTML []byte
