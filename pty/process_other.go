//go:build !linux && !darwin

package pty

import "os"

// Foreground process probes are best-effort; unsupported platforms
// report nothing.

func foregroundProcessGroup(master *os.File) int {
	return 0
}

func foregroundProcessName(master *os.File) string {
	return ""
}
