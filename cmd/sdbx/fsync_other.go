//go:build !linux && !darwin && !freebsd

package main

// syncDir is a no-op where directory sync is unavailable.
func syncDir(dir string) error {
	return nil
}
