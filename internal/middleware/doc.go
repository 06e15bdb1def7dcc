// Package middleware provides the HTTP middleware chain for paper-reader.
//
// It includes:
//   - Request logging in W3C Extended Log Format with request IDs
//   - gzip compression for JSON and UI assets
//   - Prometheus request metrics labelled by route template
//   - Panic recovery and CORS
package middleware
