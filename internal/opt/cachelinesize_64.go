//go:build kobj_cachelinesize_64

package opt

const CacheLineSize_ = 64
