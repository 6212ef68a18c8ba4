//go:build !linux

package bplus

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}
