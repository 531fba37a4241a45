// Package server hosts the Fiber diagnostics service: recover and request-ID
// middleware plus the narrow interfaces route packages depend on. It never
// writes caches; the export pipeline stays independent of whether the server
// is running.
package server
