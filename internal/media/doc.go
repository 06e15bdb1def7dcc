// Package media holds the in-process image work around covers: an optional
// libvips rasterizer for the first page of a PDF and aspect-preserving
// downscaling of rendered covers with imaging.
package media
