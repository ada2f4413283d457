// Package web holds the page served by the monitor.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
)

//go:embed dist/*
var staticAssets embed.FS

// Assets returns the files of the page. An empty dir selects the copy built
// into the binary; otherwise files are read from dir on every request, so a
// page can be edited while the monitor runs.
func Assets(dir string) http.FileSystem {
	if dir != "" {
		fmt.Fprintf(os.Stderr, "Monitor serving page from %s\n", dir)
		return http.Dir(dir)
	}

	sub, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

// SourceDir returns the dist directory next to this file in the source tree.
func SourceDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the monitor page sources")
	}

	return path.Join(path.Dir(file), "dist")
}
