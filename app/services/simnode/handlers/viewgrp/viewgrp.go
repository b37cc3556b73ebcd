// Package viewgrp serves a page that follows governance activity on the node.
package viewgrp

import (
	"context"
	"embed"
	"net/http"
)

//go:embed assets/index.html
var assets embed.FS

// Index writes the viewer page. The page subscribes to the events socket of
// the node it was served from.
func Index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	page, err := assets.ReadFile("assets/index.html")
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(page)

	return err
}
