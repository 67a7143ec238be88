// Package dashboard provides the embedded web UI assets for votewatch.
//
// This package uses Go's embed directive to include the dashboard HTML, CSS,
// and JavaScript at compile time. This enables single-binary deployment
// without external asset files.
//
// The embedded assets are served by the server package at the root path ("/").
// The page subscribes to "/events" and charts every snapshot it receives.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Main dashboard page with inline CSS and JavaScript
//
// The "{{.Title}}" marker in index.html is replaced with the configured
// title at serve time.
//
//go:embed assets/*
var Assets embed.FS
