// Package ratelimit bounds the request rate for arbitrary string keys
// using fixed, non-overlapping time windows.
//
// The algorithm is intentionally simple: the first hit on a key opens a
// window and sets the counter to 1; later hits increment it; once the
// window elapses the next hit opens a fresh window. This is O(1) per
// check and needs no cross-request coordination beyond the counter
// store itself, trading the precision of sliding-window or token-bucket
// schemes for implementation simplicity.
//
// Counter state lives behind the [Store] interface. [MemoryStore] serves
// a single process and performs each read-compare-increment under a
// lock, so concurrent hits on the same key cannot under-count.
// [RedisStore] serves horizontally scaled deployments, where INCR gives
// the same atomicity across instances.
package ratelimit
