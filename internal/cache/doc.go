// Package cache provides a namespaced content cache with per-entry expiry.
//
// Keys are derived deterministically from a namespace prefix and an
// identifier (see Key), so namespaces sharing one backend never collide and
// concurrent writers of the same key always store an equally valid value.
//
// Backend failures are soft: Get reports a miss, Put and Invalidate report
// false, and the failure is logged. Callers proceed uncached. A nil *Cache
// behaves as a disabled cache.
//
// Two backends are provided: RedisBackend for a shared network cache and
// MemoryBackend for single-process use.
package cache
