// Package storage keeps each document in its own directory under the papers
// root:
//
//	<root>/<id>/paper.pdf
//	<root>/<id>/cover.png
//	<root>/<id>/metadata.json
//
// Every file is written through a temporary file and a rename, so a reader
// never sees a partial PDF, cover or metadata record. Uploads are streamed
// with a byte limit and a leading-signature check.
package storage
