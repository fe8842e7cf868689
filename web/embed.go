// web/embed.go
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

func StaticFS() http.FileSystem {
	fsys, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}

func GetFile(name string) ([]byte, error) {
	content, err := staticFiles.ReadFile("static/" + name)
	if err != nil {
		return nil, fmt.Errorf("reading embedded file %s: %w", name, err)
	}
	return content, nil
}
