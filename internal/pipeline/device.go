package pipeline

import (
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Device identifiers understood by the model backends.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Compute precision identifiers passed to the model backends.
const (
	ComputeFloat16 = "float16"
	ComputeFloat32 = "float32"
	ComputeInt8    = "int8"
)

// cudaAvailable probes whether an NVIDIA GPU runtime is usable on this host.
// Declared as a variable so tests can substitute the probe.
var cudaAvailable = func() bool {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

// ResolveDevice maps the requested device onto one the host can actually
// serve. An empty or "auto" request selects CUDA when available and CPU
// otherwise. "cpu", "cuda", and "cuda:N" are honored verbatim, except that a
// CUDA request without a usable GPU falls back to CPU with a warning. Any
// unrecognised value also falls back to CPU with a warning. The returned
// value is threaded explicitly through every model load; nothing downstream
// re-probes the host.
func ResolveDevice(requested string) string {
	req := strings.ToLower(strings.TrimSpace(requested))
	switch {
	case req == "" || req == "auto":
		if cudaAvailable() {
			return DeviceCUDA
		}
		return DeviceCPU
	case req == DeviceCPU:
		return DeviceCPU
	case req == DeviceCUDA || isCUDAOrdinal(req):
		if !cudaAvailable() {
			slog.Warn("CUDA requested but no usable GPU found, falling back to CPU", "requested", requested)
			return DeviceCPU
		}
		return req
	default:
		slog.Warn("unrecognised device, falling back to CPU", "requested", requested)
		return DeviceCPU
	}
}

// isCUDAOrdinal reports whether req names a specific GPU, e.g. "cuda:1".
func isCUDAOrdinal(req string) bool {
	rest, ok := strings.CutPrefix(req, DeviceCUDA+":")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(rest)
	return err == nil && n >= 0
}

// ASRCompute returns the weight precision for speech recognition on the
// given device. Reduced precision on GPU, int8 quantisation on CPU.
func ASRCompute(device string) string {
	if strings.HasPrefix(device, DeviceCUDA) {
		return ComputeFloat16
	}
	return ComputeInt8
}

// AlignCompute returns the weight precision for forced alignment on the
// given device. The alignment model has no int8 variant, so CPU runs use
// full precision.
func AlignCompute(device string) string {
	if strings.HasPrefix(device, DeviceCUDA) {
		return ComputeFloat16
	}
	return ComputeFloat32
}
