// Package download fetches a single image, fingerprints its content and
// writes it to disk unless identical content was already kept.
//
// # Content fingerprint
//
// The fingerprint identifies images that look the same even when their
// bytes differ (re-encoded, different container, metadata stripped):
//
//  1. decode (JPEG, PNG, GIF, BMP, TIFF, WebP)
//  2. convert to 8-bit grayscale
//  3. scale to 16x16 with a Catmull-Rom kernel
//  4. keep the top 5 bits of every pixel
//  5. SHA3-256 of the 256 quantized pixels, hex encoded
//
// Bodies that do not decode as an image are rejected with ErrNotImage and
// never written.
//
// # Writes
//
// A kept image is written to a temporary file in the destination directory,
// synced, and renamed into place, so a crash never leaves a partial image
// under its final name.
package download
