// Package web embeds the dashboard templates and static assets.
package web

import "embed"

// TemplatesFS embeds the page template and its htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and the toast script.
//
//go:embed static/*
var StaticFS embed.FS
