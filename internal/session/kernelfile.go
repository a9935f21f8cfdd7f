// internal/session/kernelfile.go
// Kernel binaries ship next to the executable; this is the session's only
// file input.

package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"pcmflash/pkg/vpw"
)

// ReadKernelFile loads a kernel binary. Relative names resolve against the
// directory holding the executable, not the working directory.
func ReadKernelFile(name string) vpw.Response[[]byte] {
	path := name
	if !filepath.IsAbs(path) {
		exe, err := os.Executable()
		if err == nil {
			path = filepath.Join(filepath.Dir(exe), name)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return vpw.Failf[[]byte](vpw.Error, fmt.Sprintf("kernel file not found: %s", path))
		case errors.Is(err, os.ErrPermission):
			return vpw.Failf[[]byte](vpw.Error, fmt.Sprintf("kernel file not readable: %s", path))
		case errors.Is(err, syscall.ENAMETOOLONG):
			return vpw.Failf[[]byte](vpw.Error, fmt.Sprintf("kernel file path too long: %s", path))
		}
		return vpw.Failf[[]byte](vpw.Error, fmt.Sprintf("kernel file: %v", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return vpw.Failf[[]byte](vpw.Error, fmt.Sprintf("kernel file: %v", err))
	}

	data := make([]byte, info.Size())
	n, err := io.ReadFull(f, data)
	if err != nil {
		return vpw.Failf[[]byte](vpw.Truncated,
			fmt.Sprintf("kernel file short read: %d of %d bytes", n, info.Size()))
	}
	return vpw.OK(data)
}
