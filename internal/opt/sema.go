package opt

import (
	_ "unsafe" // for linkname
)

// Sema is a zero-allocation parking word.
// It is a direct wrapper around runtime.semacquire/semrelease: Acquire
// parks the goroutine until a matching Release, and a Release that comes
// first is not lost.
type Sema uint32

func (s *Sema) Acquire() {
	runtime_semacquire((*uint32)(s))
}

func (s *Sema) Release() {
	runtime_semrelease((*uint32)(s), false, 0)
}

//go:linkname runtime_semacquire sync.runtime_Semacquire
func runtime_semacquire(s *uint32)

//go:linkname runtime_semrelease sync.runtime_Semrelease
func runtime_semrelease(s *uint32, handoff bool, skipframes int)
