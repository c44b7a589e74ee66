// Package session caches resolved authorization contexts between requests.
//
// Cache keys are fingerprints (SHA-256) of the bearer credential, never the raw
// token. Entries expire after a fixed TTL measured from when they were stored:
// Get drops an expired entry on sight and Sweep removes the rest periodically.
// The cache is also bounded by entry count with least-recently-used eviction.
//
// Authenticator is the request path: extract the credential, serve from cache
// or resolve principal and context, then cache the result. Concurrent misses
// for the same credential share one resolution. Failures are never cached.
//
// Invalidations (logout, role changes) go through an Invalidator. Bus publishes
// them on a Redis channel so every replica drops the entry; LocalInvalidator
// serves single-replica deployments.
package session
