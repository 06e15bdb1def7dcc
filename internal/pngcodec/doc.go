// Package pngcodec reads and writes the small subset of PNG that covers need.
//
// DecodeHeader is a cheap sniff: it checks the 8-byte signature and the IHDR
// chunk type and reads width and height, without verifying CRCs or any later
// chunk. EncodeRGBA writes an 8-bit RGBA image as a single IDAT chunk with
// filter type 0 on every scanline and no interlacing.
package pngcodec
