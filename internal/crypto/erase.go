package crypto

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// eraseNoop absorbs a value derived from every erased buffer so the
// compiler cannot prove the zeroing writes are dead.
var eraseNoop atomic.Uint64

// SecureErase overwrites b with zeros in a way the compiler cannot
// optimize away. Remnants may still live in registers, caches, or swap;
// this is best effort, not a guarantee.
func SecureErase(b []byte) {
	if len(b) == 0 {
		return
	}

	p := (*byte)(unsafe.Pointer(&b[0]))
	for i := 0; i < len(b); i++ {
		*(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(i))) = 0
	}
	runtime.KeepAlive(b)

	var sum uint64
	for i := 0; i < len(b); i++ {
		sum += uint64(b[i])
	}
	eraseNoop.Add(sum)
}
