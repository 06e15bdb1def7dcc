// Package library ties the document store, the index and the cover resolver
// together into the operations the HTTP API exposes: upload, get, list,
// delete and PDF download.
//
// Errors fall into three groups. *ValidationError carries the 4xx status
// and reason to report. ErrNotFound and ErrInvalidID map to 404 and 400.
// Anything else is a storage failure that callers report as a generic 500.
// A failed upload never leaves its document directory behind.
package library
