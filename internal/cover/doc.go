// Package cover decides which bytes a cover read returns.
//
// A stored cover is served as-is unless it is missing or is the 1×1 sentinel
// PNG. In those cases the Resolver takes the per-document generation lock,
// re-checks, asks a Renderer for a first-page image unless the document is in
// the failure set, and falls back to the generated placeholder. Reads never
// write the placeholder to disk.
package cover
