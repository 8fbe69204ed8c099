//go:build kobj_cachelinesize_32

package opt

const CacheLineSize_ = 32
