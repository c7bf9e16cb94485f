package optimize

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Features describes the vector extensions available to the running process.
type Features struct {
	Arch  string `json:"arch"`
	AVX2  bool   `json:"avx2"`
	SSE42 bool   `json:"sse42"`
	NEON  bool   `json:"neon"`
}

var detected = Features{
	Arch:  runtime.GOARCH,
	AVX2:  cpu.X86.HasAVX2,
	SSE42: cpu.X86.HasSSE42,
	// ARM64: NEON is standard on ARMv8 (ASIMD = Advanced SIMD)
	NEON: cpu.ARM64.HasASIMD,
}

// Detect returns the CPU features detected at startup.
func Detect() Features {
	return detected
}
