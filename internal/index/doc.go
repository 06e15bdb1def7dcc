// Package index maintains the catalog of stored documents as a single JSON
// array, newest first.
//
// Inserts and removals are read-modify-write cycles serialized by one mutex,
// and each cycle replaces the file through a temporary file and a rename, so
// readers never observe a partial index and need no lock. Entries that fail
// to decode are skipped rather than failing the whole listing.
package index
