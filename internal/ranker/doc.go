// Package ranker implements the interactive result aggregator.
//
// GetResults merges four match sources, keyed by canonical path:
//
//	exact path        score 0
//	prefix sibling    score 1
//	directory child   score 2
//	semantic match    score 3 + distance
//
// A later stage only ever lowers a path's score. Semantic hits on a path that
// already has a structural score are blended (score - 1 + distance) instead of
// added, and semantic-only hits are kept only under the working directory.
// The semantic stage never runs on a session's first query.
//
// Each call also walks outward from its results and queues embedding tasks
// for the scheduler, so later queries find more semantic matches. The
// constants live in Policy.
package ranker
