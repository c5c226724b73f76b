package web

import "embed"

// TemplatesFS embeds the calculator page and its HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds stylesheets and the Chart.js bootstrap script.
//
//go:embed static/*
var StaticFS embed.FS
