//go:build !linux

package comprez

// prefaultRegion is a no-op outside Linux.
func prefaultRegion([]byte) {}
