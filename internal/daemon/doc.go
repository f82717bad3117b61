// Package daemon composes the HTTP API, websocket event streaming, metrics,
// and the run manager into a single lifecycle with flock-based locking to
// prevent multiple instances.
package daemon
