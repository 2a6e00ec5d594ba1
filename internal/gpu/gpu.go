// Package gpu declares the backend surface a future CUDA implementation
// would satisfy, matching the original scheme's CUDA_interface.h. No
// code path constructs a Backend today; ccc's onDevice field and every
// kernel in the root package always take the CPU path.
package gpu

// Backend performs the CCC kernels on device memory. Copy moves a host
// payload to the device and returns an opaque device handle; Free
// releases one. Add, Multiply, Decrypt, and Permute mirror the CPU
// kernels of the same name but operate on device handles rather than
// Go slices.
type Backend interface {
	CopyToDevice(payload []uint64) (handle uint64, err error)
	CopyToHost(handle uint64, l uint64) (payload []uint64, err error)
	Free(handle uint64) error

	Add(a, b uint64, deflenA, deflenB, l uint64) (result uint64, err error)
	Multiply(a, b uint64, deflenA, deflenB, l uint64) (result uint64, err error)
	Decrypt(handle uint64, deflen, l uint64, mask []uint64) (bit bool, err error)
	Permute(handle uint64, deflen, l uint64, transpositions []uint64) error
}
