// Package kobj implements blocking kernel objects for a microhypervisor
// core: a counting semaphore (Sm) with a FIFO wait queue and timeouts,
// the execution contexts (Ec) that block on it, and the slab cache the
// objects are allocated from. Kernel puts a handle table in front of them.
package kobj
