// Package logx is the structured logging layer, a thin wrapper over zerolog.
//
// Console output stays human readable with a short caller while file output
// is JSON. Records at or above a minimum level can also be forwarded to a
// host Sink through a rate-limited background worker.
package logx
