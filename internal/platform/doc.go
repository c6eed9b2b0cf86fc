package platform

// Package platform provides filesystem helpers and URL-parsing utilities
// used by the fetcher and the configuration layer.
