// Package asset holds the static files served by the chart server.
package asset

import (
	"embed"
	"io/fs"
)

//go:embed data
var data embed.FS

// Data returns the static files, rooted at the data directory.
func Data() fs.FS {
	data1, err := fs.Sub(data, "data")
	if err != nil {
		panic(err)
	}
	return data1
}
