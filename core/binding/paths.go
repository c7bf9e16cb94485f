package binding

import (
	"os"
	"path/filepath"
)

// EnvAccelerator names an explicit accelerator path, tried first.
const EnvAccelerator = "FASTRT_ACCELERATOR"

// ModuleName is the file name of a built accelerator plugin.
const ModuleName = "accelerator.so"

// DefaultSearchPaths lists the candidate locations in priority order.
func DefaultSearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvAccelerator); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, filepath.Join(".", ModuleName))
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ModuleName))
	}
	return append(paths, filepath.Join("/usr/local/lib/fast-runtime", ModuleName))
}
