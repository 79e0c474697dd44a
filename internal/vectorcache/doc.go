// Package vectorcache maps embedding vectors back to filesystem paths.
//
// Vectors are stored under the integer id the metadata store assigned to
// their path; several vectors (name prompts, paragraph groups) may share an
// id. Nearest translates ids back to paths through the store.
//
// Two tiers are queried together:
//
//   - the exact tier, a KDTree filled at runtime by the background scheduler
//   - the approximate tier, an optional read-only Forest produced by the
//     offline builder and loaded from a bbolt file at startup
//
// Both tiers report squared Euclidean distance, so their hits are merged by
// a plain sort.
package vectorcache
