// Package storage provides a minimal persistence layer for flat text blobs.
//
// A blob is addressed by a fileId, a plain basename used directly as a file
// name. Blobs live in a working area and can be moved into an archive area
// under a timestamped name (see StampName).
//
// Drivers:
//   - "file": afero-backed directories (<root>/DataStorage, <root>/Archive)
//   - "sqlite": a single SQLite database file (blobs + archive tables)
package storage
