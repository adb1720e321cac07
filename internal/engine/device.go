package engine

import (
	"os"
	"runtime"
)

// SelectDevice picks the compute device reported in status output.
// SEALD_DEVICE overrides detection; otherwise a GPU device node wins,
// Apple Silicon maps to mps, and everything else runs on cpu.
func SelectDevice() string {
	if dev := os.Getenv("SEALD_DEVICE"); dev != "" {
		return dev
	}
	for _, node := range []string{"/dev/nvidia0", "/dev/kfd"} {
		if _, err := os.Stat(node); err == nil {
			return "cuda"
		}
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "mps"
	}
	return "cpu"
}
