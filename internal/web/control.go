package web

import (
	"embed"
	"io/fs"
	"net/http"
)

// The control page speaks the websocket protocol served at /ws.
//
//go:embed control
var controlFiles embed.FS

func controlHandler() http.Handler {
	sub, err := fs.Sub(controlFiles, "control")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return http.StripPrefix("/control/", http.FileServer(http.FS(sub)))
}
