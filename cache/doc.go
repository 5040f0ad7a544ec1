// Package cache provides quill.Cache implementations: Memory, an LRU held
// in process, and Redis, shared between processes.
//
//	client := quill.NewClient(drv, registry,
//	    quill.WithCache(cache.NewMemory(4096), time.Minute),
//	)
package cache
