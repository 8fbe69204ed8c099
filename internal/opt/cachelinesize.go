//go:build !kobj_cachelinesize_32 && !kobj_cachelinesize_64 && !kobj_cachelinesize_128 && !kobj_cachelinesize_256

package opt

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize_ is used in structure padding to prevent false sharing.
// It's automatically calculated using the `golang.org/x/sys` package.
// Build with -tags=kobj_cachelinesize_N to pin it instead.
const CacheLineSize_ = unsafe.Sizeof(cpu.CacheLinePad{})
