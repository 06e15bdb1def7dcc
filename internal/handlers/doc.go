// Package handlers provides the HTTP handlers for the paper-reader API.
//
// It includes handlers for:
//   - Listing, fetching and deleting papers
//   - Multipart uploads of a PDF with an optional PNG cover
//   - Serving covers, generated on demand, and the stored PDF
//   - Health, liveness, readiness and version endpoints
package handlers
