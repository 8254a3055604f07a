//go:build !linux

package comprez

// fadviseSequential is a no-op outside Linux.
func fadviseSequential(int, int64, int64) {}
