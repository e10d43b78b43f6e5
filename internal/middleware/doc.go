// Package middleware provides HTTP middleware for the book library API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
//
// Metrics should be installed with mux.Router.Use so the matched route is
// known; logging and compression wrap the whole router.
package middleware
