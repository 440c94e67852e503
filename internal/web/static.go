package web

import "embed"

// staticFiles holds the status page and its script.
//
//go:embed static/*
var staticFiles embed.FS
